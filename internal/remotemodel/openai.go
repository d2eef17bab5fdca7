package remotemodel

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ailoy-go/ailoy/internal/value"
)

// ChatCompletionLM implements RemoteLM against any Chat-Completion-dialect
// endpoint. xAI's Grok API speaks the identical wire format (per the
// dialect table, "xAI: same as Chat-Completion"), so NewXAI below just
// points the same type at a different base URL.
type ChatCompletionLM struct {
	client *openai.Client
}

// NewChatCompletion constructs a dialect adapter against api.openai.com (or
// any OpenAI-compatible base URL set in cfg).
func NewChatCompletion(apiKey string, baseURL string) *ChatCompletionLM {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ChatCompletionLM{client: openai.NewClientWithConfig(cfg)}
}

// xaiBaseURL is xAI's OpenAI-compatible endpoint.
const xaiBaseURL = "https://api.x.ai/v1"

// NewXAI constructs a dialect adapter against xAI's Grok API, which is
// wire-compatible with Chat-Completion.
func NewXAI(apiKey string) *ChatCompletionLM {
	return NewChatCompletion(apiKey, xaiBaseURL)
}

func (m *ChatCompletionLM) InferDelta(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document, cfg Config) (<-chan value.MessageDeltaOutput, error) {
	cfg = cfg.resolve()
	out := make(chan value.MessageDeltaOutput)

	go func() {
		defer close(out)

		req, err := m.buildRequest(messages, tools, docs, cfg)
		if err != nil {
			return
		}

		var stream *openai.ChatCompletionStream
		retryErr := retryWithBackoff(ctx, cfg.MaxRetries, cfg.RetryDelay, isTransientTransportError, func() error {
			s, err := m.client.CreateChatCompletionStream(ctx, req)
			if err != nil {
				return err
			}
			stream = s
			return nil
		})
		if retryErr != nil {
			return
		}
		defer stream.Close()

		m.consumeStream(ctx, stream, out)
	}()

	return out, nil
}

func (m *ChatCompletionLM) consumeStream(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- value.MessageDeltaOutput) {
	var builder toolCallBuilder
	opened := false

	emit := func(d value.MessageDeltaOutput) bool {
		select {
		case out <- d:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{Contents: []value.PartDelta{value.NewTextDelta(delta.Content)}}}) {
				return
			}
		}

		for _, tc := range delta.ToolCalls {
			if tc.ID != "" {
				if opened {
					if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{ToolCalls: []value.PartDelta{builder.closeCall()}}}) {
						return
					}
				}
				opened = true
				if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{ToolCalls: []value.PartDelta{builder.openCall(tc.ID, tc.Function.Name)}}}) {
					return
				}
				if tc.Function.Arguments != "" {
					if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{ToolCalls: []value.PartDelta{builder.appendArgs(tc.Function.Arguments)}}}) {
						return
					}
				}
				continue
			}
			if opened && tc.Function.Arguments != "" {
				if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{ToolCalls: []value.PartDelta{builder.appendArgs(tc.Function.Arguments)}}}) {
					return
				}
			}
		}

		if choice.FinishReason == "" {
			continue
		}

		if opened {
			if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{ToolCalls: []value.PartDelta{builder.closeCall()}}}) {
				return
			}
			opened = false
		}

		finish := chatCompletionFinishReason(choice.FinishReason)
		emit(value.MessageDeltaOutput{FinishReason: &finish})
		return
	}
}

// chatCompletionFinishReason maps OpenAI's (and xAI's) finish reason per
// the dialect table.
func chatCompletionFinishReason(r openai.FinishReason) value.FinishReason {
	switch r {
	case openai.FinishReasonLength:
		return value.FinishLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return value.FinishToolCall
	case openai.FinishReasonContentFilter:
		return value.FinishContentFilter
	default:
		return value.FinishStop
	}
}

func (m *ChatCompletionLM) buildRequest(messages []value.Message, tools []value.ToolDesc, docs []value.Document, cfg Config) (openai.ChatCompletionRequest, error) {
	msgs, err := convertMessagesChatCompletion(messages, docs)
	if err != nil {
		return openai.ChatCompletionRequest{}, &DialectError{Dialect: "chat-completion", Cause: err}
	}
	req := openai.ChatCompletionRequest{
		Model:       cfg.Model,
		Messages:    msgs,
		MaxTokens:   cfg.MaxTokens,
		Temperature: float32(cfg.Temperature),
		TopP:        float32(cfg.TopP),
		Stream:      true,
	}
	if len(tools) > 0 {
		req.Tools = convertToolsChatCompletion(tools)
	}
	return req, nil
}

// convertMessagesChatCompletion implements the dialect table's roles:
// system/user/assistant map directly; Tool messages become role "tool"
// with ToolCallID set to the correlating function id; documents with no
// native slot in this dialect are folded into a leading system message.
func convertMessagesChatCompletion(messages []value.Message, docs []value.Document) ([]openai.ChatCompletionMessage, error) {
	var out []openai.ChatCompletionMessage
	if len(docs) > 0 {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: joinDocuments(docs)})
	}

	for _, msg := range messages {
		switch msg.Role {
		case value.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: msg.Text()})
		case value.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: convertContentParts(msg.Contents)})
		case value.RoleTool:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleTool, Content: msg.Text(), ToolCallID: msg.ID})
		case value.RoleAssistant:
			m := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Text()}
			for _, p := range msg.ToolCalls {
				id, name, args, ok := p.Function()
				if !ok {
					continue
				}
				argsJSON, err := value.ToJSON(args)
				if err != nil {
					return nil, err
				}
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   id,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      name,
						Arguments: string(argsJSON),
					},
				})
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func convertContentParts(parts []value.Part) []openai.ChatMessagePart {
	var out []openai.ChatMessagePart
	for _, p := range parts {
		switch p.Kind() {
		case value.PartKindText:
			if t, ok := p.Text(); ok {
				out = append(out, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: t})
			}
		case value.PartKindImageURL:
			if u, ok := p.ImageURL(); ok {
				out = append(out, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: u}})
			}
		case value.PartKindImageData:
			if media, data, ok := p.ImageData(); ok {
				out = append(out, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: "data:" + media + ";base64," + data}})
			}
		}
	}
	return out
}

func joinDocuments(docs []value.Document) string {
	var out string
	for i, d := range docs {
		if i > 0 {
			out += "\n\n"
		}
		out += d.Text
	}
	return out
}

func convertToolsChatCompletion(tools []value.ToolDesc) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		params, _ := value.ToJSON(t.Parameters)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
