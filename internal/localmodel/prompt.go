package localmodel

import "github.com/ailoy-go/ailoy/internal/value"

// assemblePrompt renders the chat template for this decode request: if
// DocumentPolyfill is set, it folds documents into the message list and
// renders without a documents argument; otherwise it renders with
// documents passed through directly.
func (m *LocalLM) assemblePrompt(req decodeRequest) (string, error) {
	messages := req.messages
	docs := req.docs

	if req.cfg.DocumentPolyfill && len(docs) > 0 {
		messages = polyfillDocuments(messages, docs)
		docs = nil
	}

	return m.renderer.Apply(req.ctx, m.modelKey, messages, req.tools, docs, req.cfg.ThinkEffort, true)
}

// polyfillDocuments appends retrieved documents as a synthetic system
// message directly preceding generation, for chat templates that have no
// native `documents` variable.
func polyfillDocuments(messages []value.Message, docs []value.Document) []value.Message {
	var text string
	for i, d := range docs {
		if i > 0 {
			text += "\n\n"
		}
		text += d.Text
	}
	polyfilled := value.Message{
		Role:     value.RoleSystem,
		Contents: []value.Part{value.NewTextPart(text)},
	}
	out := make([]value.Message, 0, len(messages)+1)
	out = append(out, messages...)
	out = append(out, polyfilled)
	return out
}
