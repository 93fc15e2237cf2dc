package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/theimaginaryfoundation/recap-o-bot/recap/fileutils"
)

// DefaultMaxAttempts is the hard ceiling on generator calls per Generate.
const DefaultMaxAttempts = 3

var (
	// ErrUnavailable means the generator is disabled or unreachable. It is an expected
	// branch, callers route to their fallback without treating it as a fault.
	ErrUnavailable = errors.New("narrative generator unavailable")
	// ErrPromptTooLong is a caller error detected before any generator call.
	ErrPromptTooLong = errors.New("prompt exceeds character budget")
	// ErrGeneration means every attempt failed.
	ErrGeneration = errors.New("narrative generation failed")
	// ErrParse means the response did not decode into the call site's schema.
	ErrParse = errors.New("narrative response did not match schema")
)

// Request is what a Generator receives for one attempt.
type Request struct {
	Name            string
	Instructions    string
	Prompt          string
	Schema          map[string]any
	MaxOutputTokens int64
}

// Generator is the external text-generation collaborator. Generate returns raw model
// text which may embed the JSON payload in surrounding prose.
type Generator interface {
	Available(ctx context.Context) bool
	Generate(ctx context.Context, req Request) (string, error)
}

// Call describes one call site: its prompt, its character budget and its decode target
// schema.
type Call struct {
	// Name identifies the decode target, e.g. "MonthlyNarrative" or "TopicList".
	Name            string
	Instructions    string
	Prompt          string
	MaxPromptChars  int
	Schema          map[string]any
	MaxOutputTokens int64
}

type PromptTooLongError struct {
	Name  string
	Chars int
	Max   int
}

func (e *PromptTooLongError) Error() string {
	return fmt.Sprintf("%s: prompt is %d chars, budget %d", e.Name, e.Chars, e.Max)
}

func (e *PromptTooLongError) Unwrap() error { return ErrPromptTooLong }

type GenerationError struct {
	Name     string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: failed after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Err} }

type ParseError struct {
	Name   string
	Output string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: decode response: %v (model_output_prefix=%q)", e.Name, e.Err, fileutils.Truncate(e.Output, 200))
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }

// NarrativeClient owns the availability, length, retry and parsing policy around a
// Generator so call sites only supply a prompt and a decode target.
type NarrativeClient struct {
	Generator Generator

	// MaxAttempts defaults to DefaultMaxAttempts and is clamped to it.
	MaxAttempts int
	// BaseBackoff is multiplied by 2^attempt between attempts (default 1s: 2s, 4s).
	BaseBackoff time.Duration
	// Sleep waits between attempts; tests replace it. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *slog.Logger
}

func NewNarrativeClient(g Generator, logger *slog.Logger) *NarrativeClient {
	return &NarrativeClient{Generator: g, Logger: logger}
}

// Available reports whether a call would be attempted at all.
func (c *NarrativeClient) Available(ctx context.Context) bool {
	return c != nil && c.Generator != nil && c.Generator.Available(ctx)
}

// Generate sends call to the generator and decodes the response into out.
//
// Returned errors match exactly one of ErrUnavailable, ErrPromptTooLong, ErrGeneration or
// ErrParse (or the context error when ctx ends while waiting to retry).
func (c *NarrativeClient) Generate(ctx context.Context, call Call, out any) error {
	logger := c.logger().With("call", call.Name)

	if !c.Available(ctx) {
		logger.Debug("narrative generator unavailable, using fallback")
		return fmt.Errorf("%s: %w", call.Name, ErrUnavailable)
	}
	if n := utf8.RuneCountInString(call.Prompt); call.MaxPromptChars > 0 && n > call.MaxPromptChars {
		return &PromptTooLongError{Name: call.Name, Chars: n, Max: call.MaxPromptChars}
	}

	req := Request{
		Name:            call.Name,
		Instructions:    call.Instructions,
		Prompt:          call.Prompt,
		Schema:          call.Schema,
		MaxOutputTokens: call.MaxOutputTokens,
	}

	attempts := c.maxAttempts()
	var (
		text    string
		lastErr error
		ok      bool
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		t, err := c.Generator.Generate(ctx, req)
		if err == nil {
			text, ok = t, true
			break
		}
		lastErr = err
		if ctx.Err() != nil {
			return &GenerationError{Name: call.Name, Attempts: attempt, Err: err}
		}
		if attempt == attempts {
			break
		}
		wait := c.backoff(attempt)
		logger.Warn("narrative generation attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"kind", classifyError(err),
			"wait", wait,
			"error", err)
		if err := c.sleep(ctx, wait); err != nil {
			return &GenerationError{Name: call.Name, Attempts: attempt, Err: err}
		}
	}
	if !ok {
		return &GenerationError{Name: call.Name, Attempts: attempts, Err: lastErr}
	}

	if err := fileutils.DecodeModelJSON(text, out); err != nil {
		return &ParseError{Name: call.Name, Output: text, Err: err}
	}
	return nil
}

func (c *NarrativeClient) maxAttempts() int {
	if c.MaxAttempts <= 0 || c.MaxAttempts > DefaultMaxAttempts {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

func (c *NarrativeClient) backoff(attempt int) time.Duration {
	base := c.BaseBackoff
	if base <= 0 {
		base = time.Second
	}
	return base << attempt
}

func (c *NarrativeClient) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *NarrativeClient) logger() *slog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func classifyError(err error) string {
	switch {
	case isRateLimitError(err):
		return "rate_limit"
	case isServerError(err):
		return "server"
	default:
		return "other"
	}
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}
