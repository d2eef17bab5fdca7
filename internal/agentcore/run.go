package agentcore

import (
	"context"

	"github.com/ailoy-go/ailoy/internal/value"
)

// MessageEvent is one item of a Run stream: either a finalized
// MessageOutput (assistant turn or synthesized tool-result turn) or the
// first fatal error, which always ends the stream.
type MessageEvent struct {
	Output value.MessageOutput
	Err    error
}

// Run is the blocking-aggregate counterpart of RunDelta: the same loop,
// but yielding finalized MessageOutputs instead of deltas, using the
// blocking infer form of the backend. Each model turn and each tool
// dispatch is accumulated to completion before being yielded, rather
// than forwarded incrementally.
func (a *Agent) Run(ctx context.Context, messages []value.Message, cfg Config) <-chan MessageEvent {
	out := make(chan MessageEvent)
	history := append([]value.Message(nil), messages...)
	go a.run(ctx, history, cfg, out)
	return out
}

func (a *Agent) run(ctx context.Context, messages []value.Message, cfg Config, out chan<- MessageEvent) {
	defer close(out)

	docs, err := a.retrieveDocs(ctx, messages, cfg)
	if err != nil {
		sendMsgErr(ctx, out, err)
		return
	}

	for {
		descriptors := a.filterDescriptors(a.tools.Descriptors())

		assistantOut, err := a.infer(ctx, messages, descriptors, docs)
		if err != nil {
			sendMsgErr(ctx, out, err)
			return
		}
		if !sendMsg(ctx, out, MessageEvent{Output: assistantOut}) {
			return
		}
		messages = append(messages, assistantOut.Message)

		if len(assistantOut.Message.ToolCalls) == 0 {
			return
		}

		for _, call := range assistantOut.Message.ToolCalls {
			id, name, args, ok := call.Function()
			if !ok {
				continue
			}
			result, err := a.dispatchTool(ctx, name, args)
			if err != nil {
				sendMsgErr(ctx, out, &ToolError{Tool: name, Cause: err})
				return
			}
			toolMsg := value.Message{Role: value.RoleTool, ID: id, Contents: []value.Part{value.NewValuePart(result)}}
			toolOut := value.MessageOutput{Message: toolMsg, FinishReason: value.FinishStop}
			if !sendMsg(ctx, out, MessageEvent{Output: toolOut}) {
				return
			}
			messages = append(messages, toolMsg)
		}
	}
}

// infer drives one model turn's InferDelta stream to completion and
// returns the finalized MessageOutput, the blocking `infer` primitive
// Run is built on.
func (a *Agent) infer(ctx context.Context, messages []value.Message, tools []value.ToolDesc, docs []value.Document) (value.MessageOutput, error) {
	stream, err := a.model.InferDelta(ctx, messages, tools, docs)
	if err != nil {
		return value.MessageOutput{}, err
	}
	var acc value.MessageDelta
	var finish value.FinishReason
	finished := false
	for output := range stream {
		acc, err = value.Accumulate(acc, output.Delta)
		if err != nil {
			return value.MessageOutput{}, &AggregationError{Cause: err}
		}
		if output.FinishReason != nil {
			finish = *output.FinishReason
			finished = true
		}
	}
	if !finished {
		return value.MessageOutput{}, &IncompleteStreamError{}
	}
	msg, err := acc.Finish()
	if err != nil {
		return value.MessageOutput{}, &AggregationError{Cause: err}
	}
	return value.MessageOutput{Message: msg, FinishReason: finish}, nil
}

func sendMsg(ctx context.Context, out chan<- MessageEvent, ev MessageEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func sendMsgErr(ctx context.Context, out chan<- MessageEvent, err error) {
	sendMsg(ctx, out, MessageEvent{Err: err})
}
