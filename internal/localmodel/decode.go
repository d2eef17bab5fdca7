package localmodel

import (
	"github.com/ailoy-go/ailoy/internal/inference"
	"github.com/ailoy-go/ailoy/internal/tokenizer"
	"github.com/ailoy-go/ailoy/internal/value"
)

type segmentMode int

const (
	modeContent segmentMode = iota
	modeReasoning
	modeToolCall
)

func roleRef(r value.Role) *value.Role { return &r }

func finishRef(f value.FinishReason) *value.FinishReason { return &f }

// runDecode assembles the prompt, tokenizes, prefills, then runs the
// per-token decode loop until a stop condition fires. Emitted events are
// best-effort delivered to req.replyCh; if the request context is
// cancelled mid-stream, the loop stops without delivering further events.
func (m *LocalLM) runDecode(req decodeRequest) {
	prompt, err := m.assemblePrompt(req)
	if err != nil {
		return
	}

	promptTokens, err := m.tok.Encode(prompt, true)
	if err != nil {
		return
	}

	if err := m.kv.BeginForward(0, len(promptTokens)); err != nil {
		return
	}
	if err := m.inferencer.Prefill(req.ctx, promptTokens); err != nil {
		m.kv.EndForward()
		return
	}
	m.kv.EndForward()

	if !m.emit(req, value.MessageDeltaOutput{Delta: value.MessageDelta{Role: roleRef(value.RoleAssistant)}}) {
		return
	}

	mode := modeContent
	buf := tokenizer.NewIncrementalBuffer(m.tok)
	lastEmitted := ""
	lastToken := promptTokens[len(promptTokens)-1]
	openToolCallID := ""

	stop := req.cfg.StopTags
	params := inference.SamplingParams{Temperature: req.cfg.Temperature, TopP: req.cfg.TopP}

	for step := 1; ; step++ {
		if step > req.cfg.MaxTokens {
			m.emit(req, value.MessageDeltaOutput{FinishReason: finishRef(value.FinishLength)})
			return
		}

		token, err := m.inferencer.Decode(req.ctx, lastToken, params)
		if err != nil {
			return
		}
		lastToken = token

		m.kv.BeginForward(0, 1)
		m.kv.EndForward()

		s, ok, err := buf.Push(token)
		if err != nil {
			return
		}
		if !ok {
			continue
		}

		switch {
		case s == stop.EndOfTurn:
			if !m.emit(req, value.MessageDeltaOutput{FinishReason: finishRef(value.FinishStop)}) {
				return
			}
			return

		case s == stop.ToolCallOpen:
			mode = modeToolCall
			openToolCallID = m.idSource()
			if !m.emit(req, value.MessageDeltaOutput{Delta: value.MessageDelta{
				ToolCalls: []value.PartDelta{value.NewFunctionVerbatimDelta(openToolCallID, "")},
			}}) {
				return
			}

		case s == stop.ToolCallClose:
			if !m.emit(req, value.MessageDeltaOutput{FinishReason: finishRef(value.FinishToolCall)}) {
				return
			}
			return

		case s == stop.ThinkOpen:
			mode = modeReasoning

		case s == stop.ThinkClose:
			mode = modeContent

		case lastEmitted == stop.ToolCallClose && s == "\n":
			// the newline immediately following a tool-call close tag is a
			// template artifact, not generated content; suppress it

		default:
			if !m.emit(req, segmentDelta(mode, openToolCallID, s)) {
				return
			}
		}

		lastEmitted = s
	}
}

func segmentDelta(mode segmentMode, openToolCallID, s string) value.MessageDeltaOutput {
	switch mode {
	case modeReasoning:
		return value.MessageDeltaOutput{Delta: value.MessageDelta{Contents: []value.PartDelta{value.NewThinkingDelta(s)}}}
	case modeToolCall:
		return value.MessageDeltaOutput{Delta: value.MessageDelta{
			ToolCalls: []value.PartDelta{value.NewFunctionVerbatimDelta("", s)},
		}}
	default:
		return value.MessageDeltaOutput{Delta: value.MessageDelta{Contents: []value.PartDelta{value.NewTextDelta(s)}}}
	}
}

// emit delivers out to req.replyCh, returning false if the request context
// was cancelled first (the decode loop must stop and not be resumed).
func (m *LocalLM) emit(req decodeRequest, out value.MessageDeltaOutput) bool {
	select {
	case req.replyCh <- out:
		return true
	case <-req.ctx.Done():
		return false
	}
}
