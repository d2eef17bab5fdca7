// Package inference defines the opaque local inferencer boundary: the
// tensor runtime that actually runs prefill/decode is treated as a black
// box behind this interface, so GGML, native-GPU, and browser-GPU
// backends are interchangeable implementations.
package inference

import "context"

// SamplingParams configures nucleus sampling for one decode step. Zero
// values are replaced with the package defaults by ResolveSamplingParams.
type SamplingParams struct {
	Temperature float64
	TopP        float64
}

// DefaultTemperature and DefaultTopP are the nucleus-sampling defaults.
const (
	DefaultTemperature = 0.6
	DefaultTopP        = 0.9
)

// Inferencer hides the underlying tensor runtime. Implementations on
// browser-GPU backends perform both operations asynchronously; on native
// backends they may block the calling goroutine but must still honor ctx
// cancellation.
type Inferencer interface {
	// Prefill runs a forward pass over the full prompt, populating the KV
	// cache without producing a token.
	Prefill(ctx context.Context, tokens []uint32) error

	// Decode samples the next token given the previous one and sampling
	// parameters.
	Decode(ctx context.Context, lastToken uint32, params SamplingParams) (uint32, error)
}

// ResolveSamplingParams fills in zero fields with spec defaults.
func ResolveSamplingParams(p SamplingParams) SamplingParams {
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	if p.TopP == 0 {
		p.TopP = DefaultTopP
	}
	return p
}
