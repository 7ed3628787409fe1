package hermes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/claudex/internal/progress"
)

func progressSubject(prefix, documentID string) string {
	return prefix + ".document." + documentID + ".progress"
}

func indexRequestSubject(prefix string) string {
	return prefix + ".document.index.requested"
}

// IndexRequest is the payload on the index request subject.
type IndexRequest struct {
	DocumentID string `json:"document_id"`
}

// ProgressMessage is published for every progress event of a document.
type ProgressMessage struct {
	DocumentID string `json:"document_id"`
	progress.Event
}

// DecodeIndexRequest parses an index request payload.
func DecodeIndexRequest(data []byte) (IndexRequest, error) {
	var req IndexRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode index request: %w", err)
	}
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.DocumentID == "" {
		return req, errors.New("decode index request: missing document_id")
	}
	return req, nil
}
