package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id               UUID PRIMARY KEY,
	title            TEXT NOT NULL DEFAULT '',
	platform         TEXT NOT NULL DEFAULT '',
	original_content TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'uploaded',
	error_message    TEXT NOT NULL DEFAULT '',
	uploaded_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS documents_uploaded_at_idx ON documents (uploaded_at DESC);
CREATE TABLE IF NOT EXISTS sessions (
	id          UUID PRIMARY KEY,
	document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	turn_order  INTEGER NOT NULL,
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	label       TEXT NOT NULL DEFAULT '',
	UNIQUE (document_id, turn_order)
);`

const pgDocumentColumns = `
	d.id, d.title, d.platform, d.original_content, d.status, d.error_message, d.uploaded_at, d.completed_at,
	(SELECT COUNT(*) FROM sessions s WHERE s.document_id = d.id),
	(SELECT COUNT(*) FROM sessions s WHERE s.document_id = d.id AND s.label <> '')`

// Store is the Postgres backend.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, title, content string) (Document, error) {
	d := Document{
		ID:              uuid.New(),
		Title:           title,
		OriginalContent: content,
		Status:          StatusUploaded,
		UploadedAt:      time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, title, original_content, status, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.Title, d.OriginalContent, d.Status, d.UploadedAt,
	)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return d, nil
}

func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgDocumentColumns+` FROM documents d WHERE d.id = $1`, id)
	d, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

// ListRecentDocuments returns the newest documents first, without content.
func (s *Store) ListRecentDocuments(ctx context.Context, limit int) ([]Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgDocumentColumns+`
		FROM documents d ORDER BY d.uploaded_at DESC, d.id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.OriginalContent = ""
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	return s.execOne(ctx, "update document status", `
		UPDATE documents SET status = $1, error_message = $2 WHERE id = $3`,
		status, errorMessage, id)
}

func (s *Store) SetDocumentMetadata(ctx context.Context, id uuid.UUID, title, platform string) error {
	return s.execOne(ctx, "set document metadata", `
		UPDATE documents
		SET title = CASE WHEN title = '' THEN $1 ELSE title END, platform = $2
		WHERE id = $3`,
		title, platform, id)
}

func (s *Store) CompleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, "complete document", `
		UPDATE documents SET status = $1, error_message = '', completed_at = $2 WHERE id = $3`,
		StatusCompleted, time.Now().UTC(), id)
}

func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return s.execOne(ctx, "delete document", `DELETE FROM documents WHERE id = $1`, id)
}

func (s *Store) DeleteDocumentsExcept(ctx context.Context, keep uuid.UUID) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id <> $1`, keep)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ReplaceSessions(ctx context.Context, documentID uuid.UUID, sessions []Session) ([]Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM sessions WHERE document_id = $1`, documentID); err != nil {
		return nil, fmt.Errorf("clear sessions: %w", err)
	}

	out := make([]Session, len(sessions))
	batch := &pgx.Batch{}
	for i, sess := range sessions {
		sess.ID = uuid.New()
		sess.DocumentID = documentID
		out[i] = sess
		batch.Queue(`
			INSERT INTO sessions (id, document_id, turn_order, question, answer, label)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			sess.ID, sess.DocumentID, sess.Order, sess.Question, sess.Answer, sess.Label,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("insert sessions: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *Store) ListSessions(ctx context.Context, documentID uuid.UUID) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, turn_order, question, answer, label
		FROM sessions WHERE document_id = $1 ORDER BY turn_order`, documentID)
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

func (s *Store) UpdateSessionLabel(ctx context.Context, sessionID uuid.UUID, label string) error {
	return s.execOne(ctx, "update session label", `UPDATE sessions SET label = $1 WHERE id = $2`, label, sessionID)
}

func (s *Store) execOne(ctx context.Context, op, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Title, &d.Platform, &d.OriginalContent, &d.Status, &d.ErrorMessage,
		&d.UploadedAt, &d.CompletedAt, &d.SessionCount, &d.LabeledCount)
	return d, err
}
