package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/claudex/internal/indexer"
	"github.com/MikeSquared-Agency/claudex/internal/parser"
	"github.com/MikeSquared-Agency/claudex/internal/progress"
	"github.com/MikeSquared-Agency/claudex/internal/store"
)

const (
	recentDocumentsLimit = 10
	minContentChars      = 10
	maxTitleChars        = 255
	maxBodyBytes         = 20 << 20
)

const (
	msgContentTooShort = "Chat content is too short. Please paste your full chat."
	msgTitleTooLong    = "Title must be at most 255 characters."
)

type createDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type documentResponse struct {
	Document store.Document  `json:"document"`
	Sessions []store.Session `json:"sessions"`
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.repo.ListRecentDocuments(r.Context(), recentDocumentsLimit)
	if err != nil {
		s.logger.Error("list documents failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if utf8.RuneCountInString(req.Title) > maxTitleChars {
		writeError(w, http.StatusBadRequest, msgTitleTooLong)
		return
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Content)) < minContentChars {
		writeError(w, http.StatusBadRequest, msgContentTooShort)
		return
	}

	doc, err := s.repo.CreateDocument(r.Context(), req.Title, req.Content)
	if err != nil {
		s.logger.Error("create document failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}
	s.logger.Info("document uploaded", "document_id", doc.ID, "bytes", len(req.Content))
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	doc, err := s.repo.GetDocument(r.Context(), id)
	if err != nil {
		s.storeError(w, "get document", err)
		return
	}
	sessions, err := s.repo.ListSessions(r.Context(), id)
	if err != nil {
		s.storeError(w, "list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, documentResponse{Document: doc, Sessions: sessions})
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	if s.indexer.Running(id) {
		writeError(w, http.StatusConflict, "document is being indexed")
		return
	}
	if err := s.repo.DeleteDocument(r.Context(), id); err != nil {
		s.storeError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// startIndex kicks off indexing in the background; progress goes to the
// configured event reporter only.
func (s *Server) startIndex(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	if _, err := s.repo.GetDocument(r.Context(), id); err != nil {
		s.storeError(w, "get document", err)
		return
	}

	if _, err := s.indexer.Start(id, s.eventsFor(id)); err != nil {
		switch {
		case errors.Is(err, indexer.ErrIndexInProgress):
			writeError(w, http.StatusConflict, "document is already being indexed")
		case errors.Is(err, indexer.ErrShuttingDown):
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		default:
			writeError(w, http.StatusInternalServerError, "could not start indexing")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "indexing", "document_id": id.String()})
}

// parse runs the cascade over the raw request body without storing anything.
func (s *Server) parse(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	outcome := s.parser.Parse(string(body))
	if err := parser.Validate(outcome); err != nil {
		writeError(w, http.StatusUnprocessableEntity, parser.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) eventsFor(id uuid.UUID) progress.Reporter {
	if s.events == nil {
		return nil
	}
	return s.events(id)
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	s.logger.Error(op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, op+" failed")
}

func documentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return uuid.Nil, false
	}
	return id, true
}
