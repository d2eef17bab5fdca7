// Package localmodel binds the chat template renderer, tokenizer, paged KV
// cache, and opaque inferencer into the on-device streaming decode state
// machine: prompt assembly, prefill, and a decode loop that demultiplexes
// tokens into content / reasoning / tool-call segments and detects the
// model's stop conditions.
//
// A LocalLM is single-owner: KV cache state is not re-entrant, so all
// requests are serialized through one worker goroutine per instance,
// enforcing "at most one concurrent decode per model instance" without a
// lock on the hot path.
package localmodel

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/ailoy-go/ailoy/internal/chattemplate"
	"github.com/ailoy-go/ailoy/internal/inference"
	"github.com/ailoy-go/ailoy/internal/kvcache"
	"github.com/ailoy-go/ailoy/internal/tokenizer"
	"github.com/ailoy-go/ailoy/internal/value"
)

// IDSource generates tool-call ids. The default draws 8 random bytes
// (hex-encoded); tests inject a deterministic source for reproducibility.
type IDSource func() string

func defaultIDSource() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

// TemplateRenderer is the subset of chattemplate.Renderer that LocalLM
// needs, factored out so tests can drive the decode loop without a real
// Jinja template asset.
type TemplateRenderer interface {
	Apply(ctx context.Context, modelKey string, messages []value.Message, tools []value.ToolDesc, docs []value.Document, think chattemplate.ThinkEffort, addGenerationPrompt bool) (string, error)
}

// TokenCodec is the subset of tokenizer.Tokenizer that LocalLM needs.
type TokenCodec interface {
	tokenizer.Decoder
	Encode(text string, addSpecialTokens bool) ([]uint32, error)
}

// LocalLM drives on-device inference for one model instance.
type LocalLM struct {
	modelKey   string
	renderer   TemplateRenderer
	tok        TokenCodec
	kv         *kvcache.KVCache
	inferencer inference.Inferencer
	idSource   IDSource

	reqCh chan decodeRequest
	done  chan struct{}
}

// New constructs a LocalLM and starts its single-owner worker goroutine.
func New(modelKey string, renderer TemplateRenderer, tok TokenCodec, kv *kvcache.KVCache, inferencer inference.Inferencer, opts ...Option) *LocalLM {
	m := &LocalLM{
		modelKey:   modelKey,
		renderer:   renderer,
		tok:        tok,
		kv:         kv,
		inferencer: inferencer,
		idSource:   defaultIDSource,
		reqCh:      make(chan decodeRequest),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.worker()
	return m
}

// Option configures a LocalLM at construction.
type Option func(*LocalLM)

// WithIDSource overrides tool-call id generation, for deterministic tests.
func WithIDSource(src IDSource) Option {
	return func(m *LocalLM) { m.idSource = src }
}

// Close stops the worker goroutine and releases KV sequence 0.
func (m *LocalLM) Close() {
	close(m.done)
	m.kv.RemoveSequence(0)
}

type decodeRequest struct {
	ctx      context.Context
	messages []value.Message
	tools    []value.ToolDesc
	docs     []value.Document
	cfg      Config
	replyCh  chan value.MessageDeltaOutput
}

func (m *LocalLM) worker() {
	for {
		select {
		case req := <-m.reqCh:
			m.runDecode(req)
			close(req.replyCh)
		case <-m.done:
			return
		}
	}
}

// InferDelta streams MessageDeltaOutput events for one generation. The
// request is serialized onto the worker; the returned channel is closed
// when the generation terminates (finish reason emitted) or fails. A
// failure is not delivered as an event: the channel closes without a
// finish reason, so callers observe it only as a stream that ends early.
func (m *LocalLM) InferDelta(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document, cfg Config) (<-chan value.MessageDeltaOutput, error) {
	replyCh := make(chan value.MessageDeltaOutput)
	req := decodeRequest{ctx: ctx, messages: messages, tools: tools, docs: docs, cfg: cfg.resolve(), replyCh: replyCh}
	select {
	case m.reqCh <- req:
		return replyCh, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, &ClosedError{}
	}
}

// Infer runs InferDelta to completion and returns the finalized message.
// Agent.Run does not call it; the agent aggregates InferDelta streams
// itself.
func (m *LocalLM) Infer(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document, cfg Config) (value.MessageOutput, error) {
	stream, err := m.InferDelta(ctx, messages, tools, docs, cfg)
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

// ClosedError is returned when a request is made to a LocalLM after Close.
type ClosedError struct{}

func (e *ClosedError) Error() string { return "localmodel: model instance closed" }
