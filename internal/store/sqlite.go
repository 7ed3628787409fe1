package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	platform         TEXT NOT NULL DEFAULT '',
	original_content TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'uploaded',
	error_message    TEXT NOT NULL DEFAULT '',
	uploaded_at      DATETIME NOT NULL,
	completed_at     DATETIME
);
CREATE INDEX IF NOT EXISTS documents_uploaded_at_idx ON documents (uploaded_at DESC);
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	turn_order  INTEGER NOT NULL,
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	label       TEXT NOT NULL DEFAULT '',
	UNIQUE (document_id, turn_order)
);`

const sqliteDocumentColumns = `
	d.id, d.title, d.platform, d.original_content, d.status, d.error_message, d.uploaded_at, d.completed_at,
	(SELECT COUNT(*) FROM sessions s WHERE s.document_id = d.id),
	(SELECT COUNT(*) FROM sessions s WHERE s.document_id = d.id AND s.label <> '')`

// SQLiteStore is the single-file backend used for local runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path. "~" expands to
// the home directory and ":memory:" gives a private in-memory database.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	path = expandPath(path)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps pragmas and in-memory databases consistent.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateDocument(ctx context.Context, title, content string) (Document, error) {
	d := Document{
		ID:              uuid.New(),
		Title:           title,
		OriginalContent: content,
		Status:          StatusUploaded,
		UploadedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, original_content, status, uploaded_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID.String(), d.Title, d.OriginalContent, d.Status, d.UploadedAt,
	)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteDocumentColumns+` FROM documents d WHERE d.id = ?`, id.String())
	d, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (s *SQLiteStore) ListRecentDocuments(ctx context.Context, limit int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteDocumentColumns+`
		FROM documents d ORDER BY d.uploaded_at DESC, d.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.OriginalContent = ""
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	return s.execOne(ctx, "update document status", `
		UPDATE documents SET status = ?, error_message = ? WHERE id = ?`,
		status, errorMessage, id.String())
}

func (s *SQLiteStore) SetDocumentMetadata(ctx context.Context, id uuid.UUID, title, platform string) error {
	return s.execOne(ctx, "set document metadata", `
		UPDATE documents
		SET title = CASE WHEN title = '' THEN ? ELSE title END, platform = ?
		WHERE id = ?`,
		title, platform, id.String())
}

func (s *SQLiteStore) CompleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, "complete document", `
		UPDATE documents SET status = ?, error_message = '', completed_at = ? WHERE id = ?`,
		StatusCompleted, time.Now().UTC(), id.String())
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, "delete document", `DELETE FROM documents WHERE id = ?`, id.String())
}

func (s *SQLiteStore) DeleteDocumentsExcept(ctx context.Context, keep uuid.UUID) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id <> ?`, keep.String())
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) ReplaceSessions(ctx context.Context, documentID uuid.UUID, sessions []Session) ([]Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE document_id = ?`, documentID.String()); err != nil {
		return nil, fmt.Errorf("clear sessions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sessions (id, document_id, turn_order, question, answer, label)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	out := make([]Session, len(sessions))
	for i, sess := range sessions {
		sess.ID = uuid.New()
		sess.DocumentID = documentID
		if _, err := stmt.ExecContext(ctx, sess.ID.String(), documentID.String(), sess.Order, sess.Question, sess.Answer, sess.Label); err != nil {
			return nil, fmt.Errorf("insert session %d: %w", sess.Order, err)
		}
		out[i] = sess
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, documentID uuid.UUID) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, turn_order, question, answer, label
		FROM sessions WHERE document_id = ? ORDER BY turn_order`, documentID.String())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.DocumentID, &sess.Order, &sess.Question, &sess.Answer, &sess.Label); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateSessionLabel(ctx context.Context, sessionID uuid.UUID, label string) error {
	return s.execOne(ctx, "update session label", `UPDATE sessions SET label = ? WHERE id = ?`, label, sessionID.String())
}

func (s *SQLiteStore) execOne(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDocument(row rowScanner) (Document, error) {
	var (
		d           Document
		completedAt sql.NullTime
	)
	err := row.Scan(&d.ID, &d.Title, &d.Platform, &d.OriginalContent, &d.Status, &d.ErrorMessage,
		&d.UploadedAt, &completedAt, &d.SessionCount, &d.LabeledCount)
	if err != nil {
		return d, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		d.CompletedAt = &t
	}
	return d, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
