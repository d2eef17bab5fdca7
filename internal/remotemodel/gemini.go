package remotemodel

import (
	"context"
	"iter"
	"strings"

	"google.golang.org/genai"

	"github.com/ailoy-go/ailoy/internal/value"
)

// GeminiLM implements RemoteLM against the Gen AI Go SDK's streaming
// generateContent call.
type GeminiLM struct {
	client *genai.Client
}

func NewGemini(ctx context.Context, apiKey string) (*GeminiLM, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &DialectError{Dialect: "gemini", Cause: err}
	}
	return &GeminiLM{client: client}, nil
}

func (m *GeminiLM) InferDelta(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document, cfg Config) (<-chan value.MessageDeltaOutput, error) {
	cfg = cfg.resolve()
	out := make(chan value.MessageDeltaOutput)

	contents, system := convertMessagesGemini(messages)
	genConfig := buildConfigGemini(tools, docs, system, cfg)

	go func() {
		defer close(out)

		emit := func(d value.MessageDeltaOutput) bool {
			select {
			case out <- d:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// Retry only covers establishing the stream (pulling its first
		// event). Once any event has been emitted downstream, a transient
		// error must end the stream rather than re-run the request, or
		// deltas already forwarded on out would be emitted a second time.
		var next func() (*genai.GenerateContentResponse, error, bool)
		var stop func()
		var first *genai.GenerateContentResponse
		var firstOK bool

		retryErr := retryWithBackoff(ctx, cfg.MaxRetries, cfg.RetryDelay, isTransientTransportError, func() error {
			if stop != nil {
				stop()
			}
			stream := m.client.Models.GenerateContentStream(ctx, cfg.Model, contents, genConfig)
			next, stop = iter.Pull2(stream)
			resp, err, ok := next()
			first, firstOK = resp, ok
			return err
		})
		if stop != nil {
			defer stop()
		}
		if retryErr != nil {
			return
		}

		sawFunctionCall := false
		inThinking := false
		m.consumeStream(ctx, first, firstOK, next, emit, &sawFunctionCall, &inThinking)
	}()

	return out, nil
}

func (m *GeminiLM) consumeStream(ctx context.Context, first *genai.GenerateContentResponse, firstOK bool, next func() (*genai.GenerateContentResponse, error, bool), emit func(value.MessageDeltaOutput) bool, sawFunctionCall, inThinking *bool) {
	resp, ok := first, firstOK
	for ok {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if resp != nil && m.handleResponse(resp, emit, sawFunctionCall, inThinking) {
			return
		}

		var err error
		resp, err, ok = next()
		if err != nil {
			return
		}
	}
}

// handleResponse processes a single streamed response, emitting deltas for
// its parts and the terminal finish-reason delta if the candidate carries
// one. It reports whether the stream has reached its terminal event.
func (m *GeminiLM) handleResponse(resp *genai.GenerateContentResponse, emit func(value.MessageDeltaOutput) bool, sawFunctionCall, inThinking *bool) bool {
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				*inThinking = part.Thought
				if part.Thought {
					if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{Thinking: strPtr(part.Text)}}) {
						return true
					}
				} else if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{Contents: []value.PartDelta{value.NewTextDelta(part.Text)}}}) {
					return true
				}
			}
			if part.FunctionCall != nil {
				*sawFunctionCall = true
				*inThinking = false
				args := value.Null()
				if part.FunctionCall.Args != nil {
					args = mapToValue(part.FunctionCall.Args)
				}
				if !emit(value.MessageDeltaOutput{Delta: value.MessageDelta{ToolCalls: []value.PartDelta{
					value.NewFunctionParsedDelta(generateCallID(part.FunctionCall.Name), part.FunctionCall.Name, args),
				}}}) {
					return true
				}
			}
		}
		if candidate.FinishReason != "" {
			finish := geminiFinishReason(candidate.FinishReason, *sawFunctionCall, *inThinking)
			emit(value.MessageDeltaOutput{FinishReason: &finish})
			return true
		}
	}
	return false
}

// geminiFinishReason maps Gemini's finish reason per the dialect table:
// STOP becomes ToolCall if a functionCall part was emitted this turn,
// otherwise Stop; MAX_TOKENS only becomes Length once the model is not
// still inside a thought part (part.Thought), since a thinking segment
// truncated by the token budget is not the same as the final answer
// being cut off — the carve-out the dialect table calls out.
func geminiFinishReason(reason genai.FinishReason, sawFunctionCall, stillThinking bool) value.FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		if sawFunctionCall {
			return value.FinishToolCall
		}
		return value.FinishStop
	case genai.FinishReasonMaxTokens:
		if stillThinking {
			return value.FinishStop
		}
		return value.FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return value.FinishContentFilter
	default:
		return value.FinishStop
	}
}

// convertMessagesGemini implements the dialect table: tool results become
// "function" role responses; system messages are pulled out for
// SystemInstruction.
func convertMessagesGemini(messages []value.Message) (contents []*genai.Content, system string) {
	for _, msg := range messages {
		if msg.Role == value.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Text()
			continue
		}

		content := &genai.Content{}
		switch msg.Role {
		case value.RoleAssistant:
			content.Role = genai.RoleModel
		default:
			content.Role = genai.RoleUser
		}

		if t := msg.Text(); t != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: t})
		}
		content.Parts = append(content.Parts, imageParts(msg.Contents)...)

		for _, p := range msg.ToolCalls {
			_, name, args, ok := p.Function()
			if !ok {
				continue
			}
			argsMap, _ := valueToMap(args)
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: name, Args: argsMap},
			})
		}

		if msg.Role == value.RoleTool {
			responseMap, ok := valueToMap(toolResultValue(msg))
			if !ok {
				responseMap = map[string]any{"result": msg.Text()}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: msg.ID, Response: responseMap},
			})
		}

		if len(content.Parts) > 0 {
			contents = append(contents, content)
		}
	}
	return contents, system
}

// toolResultValue extracts the single Value part of a Tool message, the
// convention Agent.RunDelta uses when synthesizing tool results.
func toolResultValue(msg value.Message) value.Value {
	for _, p := range msg.Contents {
		if v, ok := p.Value(); ok {
			return v
		}
	}
	return value.Null()
}

func imageParts(parts []value.Part) []*genai.Part {
	var out []*genai.Part
	for _, p := range parts {
		if media, data, ok := p.ImageData(); ok {
			if blob, ok := decodeBase64(data); ok {
				out = append(out, &genai.Part{InlineData: &genai.Blob{Data: blob, MIMEType: media}})
			}
		}
	}
	return out
}

func buildConfigGemini(tools []value.ToolDesc, docs []value.Document, system string, cfg Config) *genai.GenerateContentConfig {
	out := &genai.GenerateContentConfig{}
	if len(docs) > 0 {
		if system != "" {
			system += "\n\n"
		}
		system += joinDocuments(docs)
	}
	if system != "" {
		out.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if cfg.MaxTokens > 0 {
		out.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	if cfg.Temperature > 0 {
		t := float32(cfg.Temperature)
		out.Temperature = &t
	}
	if cfg.TopP > 0 {
		p := float32(cfg.TopP)
		out.TopP = &p
	}
	if len(tools) > 0 {
		out.Tools = convertToolsGemini(tools)
	}
	return out
}

// convertToolsGemini turns a JSON-Schema parameter description into a
// Gemini Schema, operating directly on value.Value instead of a decoded
// map[string]any, since ToolDesc.Parameters is already a value.Value.
func convertToolsGemini(tools []value.ToolDesc) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  valueToGeminiSchema(t.Parameters),
		})
	}
	if len(declarations) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func valueToGeminiSchema(v value.Value) *genai.Schema {
	m, ok := v.AsMap()
	if !ok {
		return nil
	}
	schema := &genai.Schema{}

	if t, ok := m.Get("type"); ok {
		if s, ok := t.AsString(); ok {
			schema.Type = genai.Type(strings.ToUpper(s))
		}
	}
	if d, ok := m.Get("description"); ok {
		if s, ok := d.AsString(); ok {
			schema.Description = s
		}
	}
	if e, ok := m.Get("enum"); ok {
		if seq, ok := e.AsSeq(); ok {
			for _, item := range seq {
				if s, ok := item.AsString(); ok {
					schema.Enum = append(schema.Enum, s)
				}
			}
		}
	}
	if p, ok := m.Get("properties"); ok {
		if propsMap, ok := p.AsMap(); ok {
			schema.Properties = make(map[string]*genai.Schema)
			for _, key := range propsMap.Keys() {
				propVal, _ := propsMap.Get(key)
				schema.Properties[key] = valueToGeminiSchema(propVal)
			}
		}
	}
	if r, ok := m.Get("required"); ok {
		if seq, ok := r.AsSeq(); ok {
			for _, item := range seq {
				if s, ok := item.AsString(); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
	}
	if i, ok := m.Get("items"); ok {
		schema.Items = valueToGeminiSchema(i)
	}
	return schema
}

func valueToMap(v value.Value) (map[string]any, bool) {
	raw, err := value.ToJSON(v)
	if err != nil {
		return nil, false
	}
	m, ok := mapFromJSON(raw)
	return m, ok
}

func mapToValue(m map[string]any) value.Value {
	raw, err := jsonMarshal(m)
	if err != nil {
		return value.Null()
	}
	v, err := value.FromJSON(raw)
	if err != nil {
		return value.Null()
	}
	return v
}

// generateCallID synthesizes a tool-call id for Gemini, whose functionCall
// events carry no id of their own (unlike Chat-Completion/Anthropic); the
// name is reused verbatim since Gemini addresses function responses by
// name, not id (see toolResultValue/FunctionResponse.Name above).
func generateCallID(name string) string { return name }
