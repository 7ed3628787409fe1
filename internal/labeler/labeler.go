// Package labeler assigns short topic labels to question/answer turns by
// delegating to an llm.Generator.
package labeler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/MikeSquared-Agency/claudex/internal/llm"
	"github.com/MikeSquared-Agency/claudex/internal/parser"
)

// FallbackLabel is stored for a turn whose label could not be generated.
const FallbackLabel = "Session (labeling failed)"

// MaxLabelLen is the hard ceiling on a label, in characters.
const MaxLabelLen = 100

const ellipsis = "..."

var labelPrefixes = []string{"label:", "topic:", "title:"}

type Config struct {
	MaxQuestionChars int
	MaxAnswerChars   int
	MaxTokens        int
	// RetryBackoff is the single wait before retrying a rate-limited call.
	RetryBackoff time.Duration
	// MinInterval spaces provider calls. Zero disables spacing.
	MinInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxQuestionChars: 500,
		MaxAnswerChars:   1000,
		MaxTokens:        50,
		RetryBackoff:     20 * time.Second,
		MinInterval:      13 * time.Second,
	}
}

// ProviderError wraps any generation failure other than a missing credential.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return "label provider: " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// Labeler is safe for concurrent use. All callers share one limiter, so the
// provider budget is respected across documents.
type Labeler struct {
	gen     llm.Generator
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger
}

func New(gen llm.Generator, cfg Config, logger *slog.Logger) *Labeler {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &Labeler{
		gen:     gen,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Generate produces a label or reports why it could not. Errors are either
// llm.ErrMissingCredential or a *ProviderError.
func (l *Labeler) Generate(ctx context.Context, question, answer string) (string, error) {
	prompt := fmt.Sprintf(labelPrompt,
		truncate(question, l.cfg.MaxQuestionChars),
		truncate(answer, l.cfg.MaxAnswerChars),
	)

	if err := l.limiter.Wait(ctx); err != nil {
		return "", &ProviderError{Err: err}
	}

	var raw string
	err := retry.Do(
		func() error {
			out, err := l.gen.Generate(ctx, prompt, l.cfg.MaxTokens)
			if err != nil {
				return err
			}
			raw = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(l.cfg.RetryBackoff),
		retry.DelayType(retry.FixedDelay),
		retry.RetryIf(llm.IsRateLimited),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			l.logger.Warn("label call rate limited, retrying once", "backoff", l.cfg.RetryBackoff, "error", err)
		}),
	)
	if err != nil {
		if llm.IsMissingCredential(err) {
			return "", err
		}
		return "", &ProviderError{Err: err}
	}

	label := Clean(raw)
	if label == "" {
		return "", &ProviderError{Err: errors.New("empty label")}
	}
	return label, nil
}

// Label never fails: any error yields FallbackLabel.
func (l *Labeler) Label(ctx context.Context, question, answer string) string {
	label, err := l.Generate(ctx, question, answer)
	if err != nil {
		l.logger.Warn("labeling failed", "error", err)
		return FallbackLabel
	}
	return label
}

// LabelBatch labels turns strictly in order, one provider call at a time.
// each, when non-nil, is invoked as every label completes. A provider failure
// yields FallbackLabel for that turn only; a missing credential or a cancelled
// context stops the batch and returns the labels produced so far.
func (l *Labeler) LabelBatch(ctx context.Context, turns []parser.Turn, each func(i int, label string)) ([]string, error) {
	labels := make([]string, 0, len(turns))
	for i, t := range turns {
		if err := ctx.Err(); err != nil {
			return labels, err
		}

		label, err := l.Generate(ctx, t.Question, t.Answer)
		if err != nil {
			if llm.IsMissingCredential(err) {
				return labels, err
			}
			l.logger.Warn("labeling failed", "order", t.Order, "error", err)
			label = FallbackLabel
		}

		labels = append(labels, label)
		if each != nil {
			each(i, label)
		}
	}
	return labels, nil
}

// Clean normalises raw provider output into a label.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = trimDecoration(s)

	for _, p := range labelPrefixes {
		if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
			s = trimDecoration(s[len(p):])
			break
		}
	}

	if utf8.RuneCountInString(s) > MaxLabelLen {
		s = strings.TrimSpace(string([]rune(s)[:MaxLabelLen]))
	}
	return s
}

func trimDecoration(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`“”‘’*_")
	s = strings.TrimRight(s, ".,;:!")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + ellipsis
}
