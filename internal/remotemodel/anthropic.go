package remotemodel

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/ailoy-go/ailoy/internal/value"
)

// AnthropicLM implements RemoteLM against the Messages streaming API.
type AnthropicLM struct {
	client *anthropic.Client
}

func NewAnthropic(apiKey, baseURL string) *AnthropicLM {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicLM{client: &client}
}

func (m *AnthropicLM) InferDelta(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document, cfg Config) (<-chan value.MessageDeltaOutput, error) {
	cfg = cfg.resolve()
	out := make(chan value.MessageDeltaOutput)

	go func() {
		defer close(out)

		params, err := m.buildParams(messages, tools, docs, cfg)
		if err != nil {
			return
		}

		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		retryErr := retryWithBackoff(ctx, cfg.MaxRetries, cfg.RetryDelay, isTransientTransportError, func() error {
			stream = m.client.Messages.NewStreaming(ctx, params)
			return stream.Err()
		})
		if retryErr != nil {
			return
		}

		m.consumeStream(ctx, stream, out)
	}()

	return out, nil
}

func (m *AnthropicLM) consumeStream(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- value.MessageDeltaOutput) {
	var builder toolCallBuilder
	inThinking := false

	emit := func(d value.MessageDeltaOutput) bool {
		select {
		case out <- d:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "content_block_start":
			block := event.AsContentBlockStart().ContentBlock
			switch block.Type {
			case "thinking":
				inThinking = true
			case "tool_use":
				toolUse := block.AsToolUse()
				if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{ToolCalls: []value.PartDelta{builder.openCall(toolUse.ID, toolUse.Name)}}}) {
					return
				}
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{Contents: []value.PartDelta{value.NewTextDelta(delta.Text)}}}) {
						return
					}
				}
			case "thinking_delta":
				if delta.Thinking != "" {
					if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{Thinking: strPtr(delta.Thinking)}}) {
						return
					}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{ToolCalls: []value.PartDelta{builder.appendArgs(delta.PartialJSON)}}}) {
						return
					}
				}
			}

		case "content_block_stop":
			if inThinking {
				inThinking = false
			} else if builder.open {
				if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{ToolCalls: []value.PartDelta{builder.closeCall()}}}) {
					return
				}
			}

		case "message_delta":
			stopReason := string(event.AsMessageDelta().Delta.StopReason)
			if stopReason == "" {
				continue
			}
			finish := anthropicFinishReason(stopReason)
			emit(value.MessageDeltaOutput{FinishReason: &finish})
			return

		case "message_stop":
			finish := value.FinishStop
			emit(value.MessageDeltaOutput{FinishReason: &finish})
			return

		case "error":
			return
		}
	}
}

// anthropicFinishReason maps Anthropic's stop_reason per the dialect table.
func anthropicFinishReason(reason string) value.FinishReason {
	switch reason {
	case "max_tokens":
		return value.FinishLength
	case "tool_use":
		return value.FinishToolCall
	case "refusal":
		return value.FinishContentFilter
	default: // end_turn, stop_sequence
		return value.FinishStop
	}
}

func strPtr(s string) *string { return &s }

func (m *AnthropicLM) buildParams(messages []value.Message, tools []value.ToolDesc, docs []value.Document, cfg Config) (anthropic.MessageNewParams, error) {
	msgs, system, err := convertMessagesAnthropic(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, &DialectError{Dialect: "anthropic", Cause: err}
	}
	if len(docs) > 0 {
		system = joinDocuments(docs) + "\n\n" + system
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Model),
		Messages:  msgs,
		MaxTokens: int64(cfg.MaxTokens),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		toolParams, err := convertToolsAnthropic(tools)
		if err != nil {
			return anthropic.MessageNewParams{}, &DialectError{Dialect: "anthropic", Cause: err}
		}
		params.Tools = toolParams
	}
	return params, nil
}

// convertMessagesAnthropic implements the dialect table: tool results are a
// user-role block of type tool_result; system messages are pulled out into
// the separate System field per the Anthropic API's shape.
func convertMessagesAnthropic(messages []value.Message) (out []anthropic.MessageParam, system string, err error) {
	for _, msg := range messages {
		if msg.Role == value.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Text()
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if t := msg.Text(); t != "" {
			content = append(content, anthropic.NewTextBlock(t))
		}
		content = append(content, imageBlocksAnthropic(msg.Contents)...)

		switch msg.Role {
		case value.RoleTool:
			content = append(content, anthropic.NewToolResultBlock(msg.ID, msg.Text(), false))
			out = append(out, anthropic.NewUserMessage(content...))
		case value.RoleAssistant:
			for _, p := range msg.ToolCalls {
				id, name, args, ok := p.Function()
				if !ok {
					continue
				}
				var input map[string]any
				argsJSON, jerr := value.ToJSON(args)
				if jerr != nil {
					return nil, "", jerr
				}
				if jerr := json.Unmarshal(argsJSON, &input); jerr != nil {
					return nil, "", jerr
				}
				content = append(content, anthropic.NewToolUseBlock(id, input, name))
			}
			out = append(out, anthropic.NewAssistantMessage(content...))
		default: // user
			out = append(out, anthropic.NewUserMessage(content...))
		}
	}
	return out, system, nil
}

func imageBlocksAnthropic(parts []value.Part) []anthropic.ContentBlockParamUnion {
	var out []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		if media, data, ok := p.ImageData(); ok {
			out = append(out, anthropic.NewImageBlockBase64(media, data))
		}
	}
	return out
}

func convertToolsAnthropic(tools []value.ToolDesc) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		paramsJSON, err := value.ToJSON(t.Parameters)
		if err != nil {
			return nil, err
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(paramsJSON, &schema); err != nil {
			return nil, err
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, toolParam)
	}
	return out, nil
}
