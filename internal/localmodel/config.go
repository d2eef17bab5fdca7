package localmodel

import "github.com/ailoy-go/ailoy/internal/chattemplate"

// StopTags are the tokenizer fragments the decode state machine uses to
// transition modes or terminate. Defaults match the Qwen family; callers
// override per model.
type StopTags struct {
	EndOfTurn     string
	ToolCallOpen  string
	ToolCallClose string
	ThinkOpen     string
	ThinkClose    string
}

// DefaultStopTags returns the Qwen-family defaults.
func DefaultStopTags() StopTags {
	return StopTags{
		EndOfTurn:     "<|im_end|>",
		ToolCallOpen:  "<tool_call>",
		ToolCallClose: "</tool_call>",
		ThinkOpen:     "<think>",
		ThinkClose:    "</think>",
	}
}

// DefaultMaxTokens is the default generation length cap.
const DefaultMaxTokens = 16384

// Config configures one InferDelta call.
type Config struct {
	MaxTokens   int
	Temperature float64
	TopP        float64

	// DocumentPolyfill, when true, folds retrieved documents into the
	// message list (as one system message appended after the conversation)
	// and renders
	// the template without a documents variable; otherwise documents are
	// passed to the template directly.
	DocumentPolyfill bool

	ThinkEffort chattemplate.ThinkEffort
	StopTags    StopTags
}

func (c Config) resolve() Config {
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.StopTags == (StopTags{}) {
		c.StopTags = DefaultStopTags()
	}
	return c
}
