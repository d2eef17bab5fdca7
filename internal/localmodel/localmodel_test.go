package localmodel

import (
	"context"
	"testing"

	"github.com/ailoy-go/ailoy/internal/chattemplate"
	"github.com/ailoy-go/ailoy/internal/inference"
	"github.com/ailoy-go/ailoy/internal/kvcache"
	"github.com/ailoy-go/ailoy/internal/value"
)

type fakeRenderer struct{}

func (fakeRenderer) Apply(ctx context.Context, modelKey string, messages []value.Message, tools []value.ToolDesc, docs []value.Document, think chattemplate.ThinkEffort, addGenerationPrompt bool) (string, error) {
	return "<prompt>", nil
}

// fakeTokenCodec maps single tokens to fixed fragments, so every decode
// call resolves in one step (never ends in a replacement char).
type fakeTokenCodec struct {
	fragments map[uint32]string
}

func (f fakeTokenCodec) Encode(text string, addSpecialTokens bool) ([]uint32, error) {
	return []uint32{0}, nil
}

func (f fakeTokenCodec) Decode(tokens []uint32, skipSpecialTokens bool) (string, error) {
	out := ""
	for _, t := range tokens {
		out += f.fragments[t]
	}
	return out, nil
}

func newTestModel(t *testing.T, tokens []uint32, fragments map[uint32]string, opts ...Option) *LocalLM {
	t.Helper()
	kv := kvcache.New(kvcache.Config{}, kvcache.ModelDefaults{})
	m := New("test-model", fakeRenderer{}, fakeTokenCodec{fragments: fragments}, kv, &inference.Scripted{Tokens: tokens}, opts...)
	t.Cleanup(m.Close)
	return m
}

func TestSimpleChatEndsInStop(t *testing.T) {
	tokens := []uint32{1, 2, 3}
	fragments := map[uint32]string{1: "Hello", 2: "!", 3: "<|im_end|>"}
	m := newTestModel(t, tokens, fragments)

	out, err := m.Infer(context.Background(), []value.Message{
		{Role: value.RoleUser, Contents: []value.Part{value.NewTextPart("hi")}},
	}, nil, nil, Config{})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if out.FinishReason != value.FinishStop {
		t.Fatalf("finish reason = %v, want stop", out.FinishReason)
	}
	if out.Message.Text() != "Hello!" {
		t.Fatalf("text = %q, want %q", out.Message.Text(), "Hello!")
	}
	if len(out.Message.ToolCalls) != 0 {
		t.Fatalf("expected no tool calls")
	}
}

func TestToolCallEndsInToolCallFinish(t *testing.T) {
	tokens := []uint32{10, 11, 12, 13}
	fragments := map[uint32]string{
		10: "<tool_call>",
		11: `{"name":"temperature","arguments":{"location":"Dubai","unit":"Celsius"}}`,
		12: "</tool_call>",
	}
	m := newTestModel(t, tokens[:3], fragments, WithIDSource(func() string { return "abc123" }))

	out, err := m.Infer(context.Background(), []value.Message{
		{Role: value.RoleUser, Contents: []value.Part{value.NewTextPart("how hot is dubai")}},
	}, []value.ToolDesc{{Name: "temperature"}}, nil, Config{})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if out.FinishReason != value.FinishToolCall {
		t.Fatalf("finish reason = %v, want tool_call", out.FinishReason)
	}
	if len(out.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(out.Message.ToolCalls))
	}
	id, name, args, ok := out.Message.ToolCalls[0].Function()
	if !ok || id != "abc123" || name != "temperature" {
		t.Fatalf("function = (%q,%q), want (abc123,temperature)", id, name)
	}
	m2, _ := args.AsMap()
	loc, _ := m2.Get("location")
	if s, _ := loc.AsString(); s != "Dubai" {
		t.Fatalf("location = %q, want Dubai", s)
	}
}

func TestMaxTokensEmitsLength(t *testing.T) {
	tokens := []uint32{1, 1, 1}
	fragments := map[uint32]string{1: "x"}
	m := newTestModel(t, tokens, fragments)

	out, err := m.Infer(context.Background(), []value.Message{
		{Role: value.RoleUser, Contents: []value.Part{value.NewTextPart("go")}},
	}, nil, nil, Config{MaxTokens: 2})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if out.FinishReason != value.FinishLength {
		t.Fatalf("finish reason = %v, want length", out.FinishReason)
	}
}

func TestReasoningTagsAreNotEmittedVerbatim(t *testing.T) {
	tokens := []uint32{1, 2, 3, 4, 5}
	fragments := map[uint32]string{
		1: "<think>",
		2: "pondering",
		3: "</think>",
		4: "answer",
		5: "<|im_end|>",
	}
	m := newTestModel(t, tokens, fragments)

	out, err := m.Infer(context.Background(), []value.Message{
		{Role: value.RoleUser, Contents: []value.Part{value.NewTextPart("hi")}},
	}, nil, nil, Config{})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if out.Message.Thinking != "pondering" {
		t.Fatalf("thinking = %q, want %q", out.Message.Thinking, "pondering")
	}
	if out.Message.Text() != "answer" {
		t.Fatalf("text = %q, want %q", out.Message.Text(), "answer")
	}
}
