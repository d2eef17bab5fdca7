// Package remotemodel implements the streaming LM backends that call out to
// a hosted provider instead of decoding locally. Each dialect
// (Chat-Completion, Anthropic, Gemini) marshals outgoing messages/tools/docs
// into that provider's wire format and unmarshals incoming SSE events back
// into value.MessageDeltaOutput, so a RemoteLM is interchangeable with a
// LocalLM from the orchestrator's point of view.
package remotemodel

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/ailoy-go/ailoy/internal/value"
)

// RemoteLM streams deltas for one generation against a hosted provider.
type RemoteLM interface {
	InferDelta(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document, cfg Config) (<-chan value.MessageDeltaOutput, error)
}

// DefaultMaxTokens and the retry defaults are the fallback values applied
// when a caller leaves Config's corresponding fields unset.
const (
	DefaultMaxTokens  = 4096
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Config configures one InferDelta call against a remote provider.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64

	MaxRetries int
	RetryDelay time.Duration
}

func (c Config) resolve() Config {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// Infer runs a RemoteLM's InferDelta to completion and returns the
// finalized message. Agent.Run does not call it; the agent aggregates
// InferDelta streams itself.
func Infer(ctx context.Context, lm RemoteLM, messages []value.Message, tools []value.ToolDesc, docs []value.Document, cfg Config) (value.MessageOutput, error) {
	stream, err := lm.InferDelta(ctx, messages, tools, docs, cfg)
	if err != nil {
		return value.MessageOutput{}, err
	}
	var acc value.MessageDelta
	var finish value.FinishReason
	for out := range stream {
		acc, err = value.Accumulate(acc, out.Delta)
		if err != nil {
			return value.MessageOutput{}, err
		}
		if out.FinishReason != nil {
			finish = *out.FinishReason
		}
	}
	msg, err := acc.Finish()
	if err != nil {
		return value.MessageOutput{}, err
	}
	return value.MessageOutput{Message: msg, FinishReason: finish}, nil
}

// retryWithBackoff retries fn with exponential backoff. Only transient
// transport errors are retried; application-level finish reasons are
// never routed through here.
func retryWithBackoff(ctx context.Context, maxRetries int, baseDelay time.Duration, isRetryable func(error) bool, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}
	return &MaxRetriesError{Cause: lastErr}
}

// isTransientTransportError classifies an error as retryable purely from
// its message text, since each provider SDK wraps HTTP failures
// differently and exposes no common retryable-error type.
func isTransientTransportError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"rate_limit", "429", "too many requests",
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
		"timeout", "deadline exceeded",
		"connection reset", "connection refused", "no such host",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// MaxRetriesError is returned once the retry budget for a dialect call is
// exhausted without a non-retryable terminal result.
type MaxRetriesError struct{ Cause error }

func (e *MaxRetriesError) Error() string { return "remotemodel: max retries exceeded: " + e.Cause.Error() }
func (e *MaxRetriesError) Unwrap() error  { return e.Cause }

// DialectError wraps a failure that occurred while marshaling a request or
// unmarshaling a response for a specific dialect.
type DialectError struct {
	Dialect string
	Cause   error
}

func (e *DialectError) Error() string { return "remotemodel: " + e.Dialect + ": " + e.Cause.Error() }
func (e *DialectError) Unwrap() error  { return e.Cause }
