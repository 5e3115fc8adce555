// Package transform produces canonical documents from arbitrary CRM source
// payloads via a single call to an external generation collaborator.
//
// The engine performs no structural validation of the collaborator's reply
// against the canonical schema: conformance is advisory. Any JSON-parseable
// reply is returned verbatim.
package transform

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/moisesoliveira-dev/ServiceCustomerIA/internal/schema"
)

// Generator is the external generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Engine maps source documents to canonical documents.
type Engine struct {
	generator Generator
	logger    *slog.Logger

	// maxPromptTokens rejects oversized prompts before the network call.
	// Zero disables the guard.
	maxPromptTokens int
}

// Option configures the engine.
type Option func(*Engine)

// WithMaxPromptTokens sets the prompt size guard.
func WithMaxPromptTokens(n int) Option {
	return func(e *Engine) {
		e.maxPromptTokens = n
	}
}

// NewEngine creates an engine. A nil generator is allowed and makes every
// Transform call fail with ErrGenerationUnavailable.
func NewEngine(generator Generator, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		generator: generator,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available reports whether a generation collaborator is configured.
func (e *Engine) Available() bool {
	return e != nil && e.generator != nil
}

// Transform produces a canonical document from the source document, the
// canonical schema and free-text mapping instructions. The result is surfaced
// for preview; the caller decides whether to store it.
func (e *Engine) Transform(ctx context.Context, source string, canonicalSchema schema.Document, instructions string) (schema.Document, error) {
	if !e.Available() {
		return nil, ErrGenerationUnavailable
	}

	prompt, err := buildPrompt(source, canonicalSchema, instructions)
	if err != nil {
		return nil, err
	}

	tokens := estimateTokens(prompt)
	if e.maxPromptTokens > 0 && tokens > e.maxPromptTokens {
		return nil, &PromptTooLargeError{Tokens: tokens, Limit: e.maxPromptTokens}
	}
	e.logger.Debug("transform prompt built", slog.Int("prompt_tokens", tokens))

	reply, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	cleaned := stripCodeFence(reply)
	var doc schema.Document
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, &MalformedResponseError{Reply: reply, Err: err}
	}
	return doc, nil
}
