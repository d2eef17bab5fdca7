package agentcore

import (
	"context"

	"github.com/ailoy-go/ailoy/internal/value"
)

// DeltaEvent is one item of a RunDelta stream. Exactly one of Output or
// Err is meaningful; an Err event is always the last event delivered —
// the stream surfaces the first error and ends.
type DeltaEvent struct {
	Output value.MessageDeltaOutput
	Err    error
}

// RunDelta runs the streaming agent loop: retrieve → snapshot tool
// descriptors → infer → forward every delta → dispatch any tool calls →
// repeat until the assistant finishes without a tool call. The returned
// channel is closed once the run completes or a fatal error is
// delivered. Cancelling ctx propagates: pending downloads, tool calls,
// and the decode loop are not resumed past the next suspension point
// once ctx is done.
func (a *Agent) RunDelta(ctx context.Context, messages []value.Message, cfg Config) <-chan DeltaEvent {
	out := make(chan DeltaEvent)
	history := append([]value.Message(nil), messages...)
	go a.runDelta(ctx, history, cfg, out)
	return out
}

func (a *Agent) runDelta(ctx context.Context, messages []value.Message, cfg Config, out chan<- DeltaEvent) {
	defer close(out)

	docs, err := a.retrieveDocs(ctx, messages, cfg)
	if err != nil {
		sendErr(ctx, out, err)
		return
	}

	for {
		descriptors := a.filterDescriptors(a.tools.Descriptors())

		stream, err := a.model.InferDelta(ctx, messages, descriptors, docs)
		if err != nil {
			sendErr(ctx, out, err)
			return
		}

		var acc value.MessageDelta
		finished := false
		for output := range stream {
			if !send(ctx, out, DeltaEvent{Output: output}) {
				return
			}
			acc, err = value.Accumulate(acc, output.Delta)
			if err != nil {
				sendErr(ctx, out, &AggregationError{Cause: err})
				return
			}
			if output.FinishReason != nil {
				finished = true
			}
		}
		if !finished {
			sendErr(ctx, out, &IncompleteStreamError{})
			return
		}

		assistantMsg, err := acc.Finish()
		if err != nil {
			sendErr(ctx, out, &AggregationError{Cause: err})
			return
		}
		messages = append(messages, assistantMsg)

		if len(assistantMsg.ToolCalls) == 0 {
			return
		}

		toolMsgs, ok := a.dispatchToolCalls(ctx, assistantMsg, out)
		if !ok {
			return
		}
		messages = append(messages, toolMsgs...)
	}
}

// dispatchToolCalls runs every function part of assistantMsg's tool
// calls in order, to preserve deterministic message order, emitting a
// Tool-role delta per result and returning the finalized Tool messages to
// append to history. ok is false if a fatal error was already sent to out.
func (a *Agent) dispatchToolCalls(ctx context.Context, assistantMsg value.Message, out chan<- DeltaEvent) ([]value.Message, bool) {
	toolMsgs := make([]value.Message, 0, len(assistantMsg.ToolCalls))
	for _, call := range assistantMsg.ToolCalls {
		id, name, args, ok := call.Function()
		if !ok {
			continue
		}
		result, err := a.dispatchTool(ctx, name, args)
		if err != nil {
			sendErr(ctx, out, &ToolError{Tool: name, Cause: err})
			return nil, false
		}

		delta := value.MessageDelta{
			Role:     roleRef(value.RoleTool),
			Contents: []value.PartDelta{value.NewValueDelta(result)},
		}
		if id != "" {
			delta.ID = &id
		}
		if !send(ctx, out, DeltaEvent{Output: value.MessageDeltaOutput{Delta: delta, FinishReason: finishRef(value.FinishStop)}}) {
			return nil, false
		}

		toolMsg, err := delta.Finish()
		if err != nil {
			sendErr(ctx, out, &AggregationError{Cause: err})
			return nil, false
		}
		toolMsgs = append(toolMsgs, toolMsg)
	}
	return toolMsgs, true
}

func send(ctx context.Context, out chan<- DeltaEvent, ev DeltaEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func sendErr(ctx context.Context, out chan<- DeltaEvent, err error) {
	send(ctx, out, DeltaEvent{Err: err})
}
