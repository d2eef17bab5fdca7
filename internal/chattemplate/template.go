// Package chattemplate renders a conversation (plus tool schemas, retrieved
// documents, and reasoning-effort configuration) into a model's
// tokenizer-ready prompt string using the Jinja-style chat templates every
// model provider distributes alongside their tokenizer.
package chattemplate

import (
	"context"
	"sync"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"

	"github.com/ailoy-go/ailoy/internal/assetcache"
	"github.com/ailoy-go/ailoy/internal/value"
)

// ThinkEffort is the requested reasoning effort level for a generation.
type ThinkEffort int

const (
	ThinkDisable ThinkEffort = iota
	ThinkLow
	ThinkMedium
	ThinkHigh
)

func (t ThinkEffort) tag() (string, bool) {
	switch t {
	case ThinkLow:
		return "low", true
	case ThinkMedium:
		return "medium", true
	case ThinkHigh:
		return "high", true
	default:
		return "", false
	}
}

// Renderer loads and applies chat templates, memoizing compiled templates
// process-globally by model key (the environment here is scoped to one
// Renderer rather than a true process global, which makes it test-friendly
// without losing the "compile once per key" behavior).
type Renderer struct {
	cache *assetcache.Cache

	mu        sync.Mutex
	templates map[string]*exec.Template
}

// NewRenderer constructs a Renderer backed by c for loading chat_template.j2
// assets.
func NewRenderer(c *assetcache.Cache) *Renderer {
	return &Renderer{cache: c, templates: make(map[string]*exec.Template)}
}

// Apply renders the chat template registered for modelKey against messages,
// tools, documents, and the thinking configuration. add_generation_prompt
// controls whether the template appends the assistant-turn preamble.
func (r *Renderer) Apply(
	ctx context.Context,
	modelKey string,
	messages []value.Message,
	tools []value.ToolDesc,
	documents []value.Document,
	think ThinkEffort,
	addGenerationPrompt bool,
) (string, error) {
	tpl, err := r.templateFor(ctx, modelKey)
	if err != nil {
		return "", err
	}

	vars := exec.NewContext(map[string]any{
		"messages":              renderMessages(messages),
		"tools":                 renderTools(tools),
		"documents":             renderDocuments(documents),
		"add_generation_prompt": addGenerationPrompt,
		"enable_thinking":       think != ThinkDisable,
	})
	if tag, ok := think.tag(); ok {
		vars.Set("reasoning_effort", tag)
	}

	out, err := tpl.ExecuteToString(vars)
	if err != nil {
		return "", &RenderError{ModelKey: modelKey, Cause: err}
	}
	return out, nil
}

func (r *Renderer) templateFor(ctx context.Context, modelKey string) (*exec.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.templates[modelKey]; ok {
		return tpl, nil
	}

	dirname := assetcache.DirnameForModelKey(modelKey)
	src, err := r.cache.Get(ctx, assetcache.Entry{Dirname: dirname, Filename: "chat_template.j2"})
	if err != nil {
		return nil, err
	}
	tpl, err := gonja.FromBytes(src)
	if err != nil {
		return nil, &CompileError{ModelKey: modelKey, Cause: err}
	}
	r.templates[modelKey] = tpl
	return tpl, nil
}

func renderMessages(messages []value.Message) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		entry := map[string]any{
			"role":    string(m.Role),
			"content": m.Text(),
		}
		if m.ID != "" {
			entry["id"] = m.ID
		}
		if m.Thinking != "" {
			entry["reasoning"] = m.Thinking
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				id, name, args, ok := tc.Function()
				if !ok {
					continue
				}
				calls = append(calls, map[string]any{
					"id":        id,
					"name":      name,
					"arguments": args,
				})
			}
			entry["tool_calls"] = calls
		}
		out = append(out, entry)
	}
	return out
}

func renderTools(tools []value.ToolDesc) []map[string]any {
	if len(tools) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		out = append(out, map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters":  t.Parameters,
		})
	}
	return out
}

func renderDocuments(docs []value.Document) []map[string]any {
	if len(docs) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, map[string]any{
			"text":     d.Text,
			"metadata": d.Metadata,
		})
	}
	return out
}

// CompileError wraps a template parse failure.
type CompileError struct {
	ModelKey string
	Cause    error
}

func (e *CompileError) Error() string {
	return "chattemplate: compile " + e.ModelKey + ": " + e.Cause.Error()
}
func (e *CompileError) Unwrap() error { return e.Cause }

// RenderError wraps a template execution failure.
type RenderError struct {
	ModelKey string
	Cause    error
}

func (e *RenderError) Error() string {
	return "chattemplate: render " + e.ModelKey + ": " + e.Cause.Error()
}
func (e *RenderError) Unwrap() error { return e.Cause }
