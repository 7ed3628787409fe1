package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MikeSquared-Agency/claudex/internal/indexer"
	"github.com/MikeSquared-Agency/claudex/internal/progress"
)

// sseEvent is the payload of each "data:" line in the index stream.
type sseEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

func toSSE(e progress.Event) sseEvent {
	typ := "progress"
	switch e.Stage {
	case progress.StageComplete:
		typ = "complete"
	case progress.StageError:
		typ = "error"
	}
	return sseEvent{Type: typ, Message: e.Message, Current: e.Current, Total: e.Total}
}

// streamIndex starts the indexer and streams its progress as Server-Sent
// Events until the run ends. The run continues if the client goes away.
func (s *Server) streamIndex(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if _, err := s.repo.GetDocument(r.Context(), id); err != nil {
		s.storeError(w, "get document", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	terminal := false
	send := func(ev sseEvent) {
		if ev.Type != "progress" {
			terminal = true
		}
		data, _ := json.Marshal(ev)
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}

	stream := progress.ReporterFunc(func(e progress.Event) { send(toSSE(e)) })
	done, err := s.indexer.Start(id, progress.Multi(stream, s.eventsFor(id)))
	if err == nil {
		err = <-done
	}
	if err != nil && !terminal {
		msg := err.Error()
		switch {
		case errors.Is(err, indexer.ErrIndexInProgress):
			msg = "Indexing is already in progress for this document."
		case errors.Is(err, indexer.ErrShuttingDown):
			msg = "The server is shutting down. Please try again shortly."
		}
		send(sseEvent{Type: "error", Message: msg})
	}
}
