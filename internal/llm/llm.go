// Package llm defines the text-generation capability the labeler depends on,
// and the failure kinds a provider implementation reports through it.
package llm

import (
	"context"
	"errors"
)

// ErrMissingCredential is returned when no API credential is configured.
// It is fatal for a whole labeling run and must not be retried.
var ErrMissingCredential = errors.New("missing API credential")

// ErrRateLimited marks a provider refusal due to rate limiting (HTTP 429 or equivalent).
var ErrRateLimited = errors.New("rate limited")

// Generator turns a single prompt into generated text.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return f(ctx, prompt, maxTokens)
}

// IsRateLimited reports whether err carries a rate-limit signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsMissingCredential reports whether err is a missing-credential failure.
func IsMissingCredential(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}
