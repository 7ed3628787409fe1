package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformedStructured is reported when input looks like a structured export
// but cannot be decoded or has the wrong shape. The cascade swallows it.
var ErrMalformedStructured = errors.New("malformed structured input")

// exportSchema only checks the top-level shape: a bare array of sessions or
// an object with a sessions array. Items and metadata are checked one by one
// so a single odd element never discards the whole export.
const exportSchema = `{
  "oneOf": [
    {"type": "array"},
    {
      "type": "object",
      "properties": {
        "sessions": {"type": "array"}
      },
      "required": ["sessions"]
    }
  ]
}`

var exportValidator = jsonschema.MustCompileString("export.json", exportSchema)

type exportDoc struct {
	Title    json.RawMessage   `json:"title"`
	Platform json.RawMessage   `json:"platform"`
	Sessions []json.RawMessage `json:"sessions"`
}

func parseStructured(text string) *Outcome {
	out, err := decodeStructured(text)
	if err != nil || out == nil || len(out.Turns) == 0 {
		return nil
	}
	return out
}

// decodeStructured returns (nil, nil) when text does not look structured at all.
func decodeStructured(text string) (*Outcome, error) {
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return nil, nil
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStructured, err)
	}
	if err := exportValidator.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStructured, err)
	}

	if strings.HasPrefix(text, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(text), &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedStructured, err)
		}
		return &Outcome{Turns: sessionTurns(items), Platform: PlatformUnknown}, nil
	}

	var obj exportDoc
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStructured, err)
	}
	out := &Outcome{
		Turns:    sessionTurns(obj.Sessions),
		Title:    rawString(obj.Title),
		Platform: rawString(obj.Platform),
	}
	if out.Platform == "" {
		out.Platform = PlatformUnknown
	}
	return out, nil
}

// sessionTurns keeps object items with a non-empty question and answer,
// numbering the survivors in source order. Anything else is dropped.
func sessionTurns(items []json.RawMessage) []Turn {
	var pairs [][2]string
	for _, raw := range items {
		var item map[string]json.RawMessage
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		q := stringField(item, "question")
		a := stringField(item, "answer")
		if q == "" || a == "" {
			continue
		}
		pairs = append(pairs, [2]string{q, a})
	}
	return numberTurns(pairs)
}

// rawString yields the trimmed string value, or "" for null and non-strings.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func stringField(item map[string]json.RawMessage, key string) string {
	return rawString(item[key])
}
