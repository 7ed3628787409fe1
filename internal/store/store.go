// Package store persists uploaded chat documents and the sessions parsed
// from them, on Postgres (pgx) or a local SQLite file.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document statuses, in pipeline order.
const (
	StatusUploaded  = "uploaded"
	StatusParsing   = "parsing"
	StatusLabeling  = "labeling"
	StatusCompleted = "completed"
	StatusError     = "error"
)

var ErrNotFound = errors.New("not found")

type Document struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Platform        string     `json:"platform"`
	OriginalContent string     `json:"original_content,omitempty"`
	Status          string     `json:"status"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	UploadedAt      time.Time  `json:"uploaded_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	SessionCount    int        `json:"session_count"`
	LabeledCount    int        `json:"labeled_count"`
}

// DisplayTitle falls back to a generic name for untitled documents.
func (d Document) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return "Chat " + d.ID.String()[:8]
}

// Session is one stored question/answer turn of a document.
type Session struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Order      int       `json:"order"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Label      string    `json:"label"`
}

// Repository is implemented by both backends.
type Repository interface {
	CreateDocument(ctx context.Context, title, content string) (Document, error)
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	ListRecentDocuments(ctx context.Context, limit int) ([]Document, error)
	UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error
	// SetDocumentMetadata records the platform and fills the title only when
	// the document has none.
	SetDocumentMetadata(ctx context.Context, id uuid.UUID, title, platform string) error
	CompleteDocument(ctx context.Context, id uuid.UUID) error
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	DeleteDocumentsExcept(ctx context.Context, keep uuid.UUID) (int, error)
	// ReplaceSessions atomically swaps a document's sessions for the given
	// ones and returns them with IDs assigned.
	ReplaceSessions(ctx context.Context, documentID uuid.UUID, sessions []Session) ([]Session, error)
	ListSessions(ctx context.Context, documentID uuid.UUID) ([]Session, error)
	UpdateSessionLabel(ctx context.Context, sessionID uuid.UUID, label string) error
	Close() error
}

// IsPostgresURL reports whether dsn addresses Postgres rather than a SQLite file.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to Postgres for postgres:// URLs and otherwise opens dsn as
// a SQLite database path.
func Open(ctx context.Context, dsn string) (Repository, error) {
	if IsPostgresURL(dsn) {
		return New(ctx, dsn)
	}
	return NewSQLite(ctx, dsn)
}
