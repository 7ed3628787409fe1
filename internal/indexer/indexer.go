// Package indexer runs the document pipeline: parse the stored transcript,
// validate it, replace the document's sessions and label each one.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/claudex/internal/labeler"
	"github.com/MikeSquared-Agency/claudex/internal/llm"
	"github.com/MikeSquared-Agency/claudex/internal/parser"
	"github.com/MikeSquared-Agency/claudex/internal/progress"
	"github.com/MikeSquared-Agency/claudex/internal/store"
)

var (
	// ErrIndexInProgress is returned when the document is already being indexed.
	ErrIndexInProgress = errors.New("index already in progress")
	// ErrShuttingDown is returned by Start once Shutdown has begun.
	ErrShuttingDown = errors.New("indexer shutting down")
)

const msgInterrupted = "Indexing was interrupted. Please run it again."

// Labeler produces a label for one turn.
type Labeler interface {
	Generate(ctx context.Context, question, answer string) (string, error)
}

type Indexer struct {
	repo    store.Repository
	parser  *parser.Parser
	labeler Labeler
	logger  *slog.Logger

	mu      sync.Mutex
	running map[uuid.UUID]struct{}
	closed  bool

	// background runs started with Start
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

func New(repo store.Repository, p *parser.Parser, l Labeler, logger *slog.Logger) *Indexer {
	bgCtx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		repo:     repo,
		parser:   p,
		labeler:  l,
		logger:   logger,
		running:  make(map[uuid.UUID]struct{}),
		bgCtx:    bgCtx,
		bgCancel: cancel,
	}
}

// Start indexes documentID in the background. The document is claimed before
// Start returns, so a busy document fails with ErrIndexInProgress right away.
// The channel receives the result of the run and is then closed.
func (ix *Indexer) Start(documentID uuid.UUID, reporter progress.Reporter) (<-chan error, error) {
	ix.mu.Lock()
	if ix.closed {
		ix.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if _, ok := ix.running[documentID]; ok {
		ix.mu.Unlock()
		return nil, ErrIndexInProgress
	}
	ix.running[documentID] = struct{}{}
	ix.bg.Add(1)
	ix.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		defer ix.bg.Done()
		err := ix.run(ix.bgCtx, documentID, reporter)
		ix.release(documentID)
		done <- err
		close(done)
	}()
	return done, nil
}

// Shutdown cancels background runs and waits until each has recorded its
// final document status, or until ctx expires.
func (ix *Indexer) Shutdown(ctx context.Context) error {
	ix.mu.Lock()
	ix.closed = true
	ix.mu.Unlock()
	ix.bgCancel()

	waited := make(chan struct{})
	go func() {
		ix.bg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for background index runs: %w", ctx.Err())
	}
}

// Index (re)builds the sessions of a document, reporting progress as it goes.
// Validation failures return parser.ErrEmptyResult or
// parser.ErrAllQuestionsEmpty after marking the document as errored.
func (ix *Indexer) Index(ctx context.Context, documentID uuid.UUID, reporter progress.Reporter) error {
	if !ix.acquire(documentID) {
		return ErrIndexInProgress
	}
	defer ix.release(documentID)
	return ix.run(ctx, documentID, reporter)
}

func (ix *Indexer) run(ctx context.Context, documentID uuid.UUID, reporter progress.Reporter) error {
	r := progress.OrDiscard(reporter)
	log := ix.logger.With("document_id", documentID)

	doc, err := ix.repo.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	if err := ix.repo.UpdateDocumentStatus(ctx, doc.ID, store.StatusParsing, ""); err != nil {
		return ix.fail(ctx, doc.ID, r, err)
	}
	r.Report(progress.Event{Stage: progress.StageParsing, Current: 0, Total: 1, Message: "Parsing chat..."})

	outcome := ix.parser.Parse(doc.OriginalContent)
	if err := parser.Validate(outcome); err != nil {
		log.Warn("parsed transcript rejected", "stage", outcome.Stage, "error", err)
		ix.markError(ctx, doc.ID, r, parser.UserMessage(err))
		return err
	}

	total := len(outcome.Turns)
	log.Info("transcript parsed", "stage", outcome.Stage, "sessions", total, "platform", outcome.Platform)

	if err := ix.repo.SetDocumentMetadata(ctx, doc.ID, outcome.Title, outcome.Platform); err != nil {
		return ix.fail(ctx, doc.ID, r, err)
	}
	r.Report(progress.Event{
		Stage:   progress.StageParsed,
		Current: 0,
		Total:   total,
		Message: fmt.Sprintf("Found %d sessions. Creating...", total),
	})

	pending := make([]store.Session, total)
	for i, t := range outcome.Turns {
		pending[i] = store.Session{Order: t.Order, Question: t.Question, Answer: t.Answer}
	}
	sessions, err := ix.repo.ReplaceSessions(ctx, doc.ID, pending)
	if err != nil {
		return ix.fail(ctx, doc.ID, r, err)
	}

	if err := ix.repo.UpdateDocumentStatus(ctx, doc.ID, store.StatusLabeling, ""); err != nil {
		return ix.fail(ctx, doc.ID, r, err)
	}

	for i, sess := range sessions {
		r.Report(progress.Event{
			Stage:   progress.StageLabeling,
			Current: i + 1,
			Total:   total,
			Message: fmt.Sprintf("Labeling session %d/%d...", i+1, total),
		})

		label, err := ix.labeler.Generate(ctx, sess.Question, sess.Answer)
		if err != nil {
			if llm.IsMissingCredential(err) || ctx.Err() != nil {
				return ix.fail(ctx, doc.ID, r, err)
			}
			log.Warn("labeling failed", "order", sess.Order, "error", err)
			label = labeler.FallbackLabel
		}

		if err := ix.repo.UpdateSessionLabel(ctx, sess.ID, label); err != nil {
			return ix.fail(ctx, doc.ID, r, err)
		}
	}

	if err := ix.repo.CompleteDocument(ctx, doc.ID); err != nil {
		return ix.fail(ctx, doc.ID, r, err)
	}
	r.Report(progress.Event{Stage: progress.StageComplete, Current: total, Total: total, Message: "Done!"})
	log.Info("document indexed", "sessions", total)
	return nil
}

// Running reports whether documentID is being indexed right now.
func (ix *Indexer) Running(documentID uuid.UUID) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, ok := ix.running[documentID]
	return ok
}

func (ix *Indexer) fail(ctx context.Context, id uuid.UUID, r progress.Reporter, err error) error {
	ix.logger.Error("indexing failed", "document_id", id, "error", err)
	msg := err.Error()
	if ctx.Err() != nil {
		msg = msgInterrupted
	}
	ix.markError(ctx, id, r, msg)
	return err
}

// markError records msg on the document even when ctx is already cancelled.
func (ix *Indexer) markError(ctx context.Context, id uuid.UUID, r progress.Reporter, msg string) {
	if err := ix.repo.UpdateDocumentStatus(context.WithoutCancel(ctx), id, store.StatusError, msg); err != nil {
		ix.logger.Error("failed to record document error", "document_id", id, "error", err)
	}
	r.Report(progress.Event{Stage: progress.StageError, Message: msg})
}

func (ix *Indexer) acquire(id uuid.UUID) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.running[id]; ok {
		return false
	}
	ix.running[id] = struct{}{}
	return true
}

func (ix *Indexer) release(id uuid.UUID) {
	ix.mu.Lock()
	delete(ix.running, id)
	ix.mu.Unlock()
}
