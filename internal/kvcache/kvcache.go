// Package kvcache implements paged-attention KV cache bookkeeping:
// per-sequence key/value memory, allocated in fixed-size pages on demand,
// supporting fast sequence insertion/removal across prefill and decode.
//
// KVCache is not thread-safe: it is owned exclusively by one LocalLM
// instance for its lifetime, and all public methods assume single-owner,
// single-goroutine access (enforced upstream by the local model's
// single-owner worker).
package kvcache

import "fmt"

// pageSize is a fixed constant of the paging scheme.
const pageSize = 16

// Config overrides model-metadata-derived defaults. Nil fields inherit
// from the model.
type Config struct {
	ContextWindowSize *int
	PrefillChunkSize  *int
	SlidingWindowSize *int
}

type sequence struct {
	length int
	pages  int
}

// KVCache tracks page allocation per sequence id.
type KVCache struct {
	contextWindowSize int
	prefillChunkSize  int
	slidingWindowSize int

	totalPages int
	sequences  map[uint64]*sequence

	inForward bool
}

// defaults mirrors "unset fields inherit from model metadata".
type ModelDefaults struct {
	ContextWindowSize int
	PrefillChunkSize  int
	SlidingWindowSize int
}

// New constructs a KVCache, resolving cfg fields against defaults, then
// clears it (establishing sequence 0, per spec: "clear at construction
// establishes sequence 0").
func New(cfg Config, defaults ModelDefaults) *KVCache {
	c := &KVCache{
		contextWindowSize: defaults.ContextWindowSize,
		prefillChunkSize:  defaults.PrefillChunkSize,
		slidingWindowSize: defaults.SlidingWindowSize,
	}
	if cfg.ContextWindowSize != nil {
		c.contextWindowSize = *cfg.ContextWindowSize
	}
	if cfg.PrefillChunkSize != nil {
		c.prefillChunkSize = *cfg.PrefillChunkSize
	}
	if cfg.SlidingWindowSize != nil {
		c.slidingWindowSize = *cfg.SlidingWindowSize
	}
	c.Clear()
	return c
}

// Clear drops all sequences and re-establishes sequence 0.
func (c *KVCache) Clear() {
	c.sequences = map[uint64]*sequence{0: {}}
	c.totalPages = 0
}

// AddSequence registers a new, empty sequence.
func (c *KVCache) AddSequence(seqID uint64) error {
	if _, ok := c.sequences[seqID]; ok {
		return &SequenceExistsError{SeqID: seqID}
	}
	c.sequences[seqID] = &sequence{}
	return nil
}

// RemoveSequence releases a sequence's pages.
func (c *KVCache) RemoveSequence(seqID uint64) error {
	seq, ok := c.sequences[seqID]
	if !ok {
		return &NoSuchSequenceError{SeqID: seqID}
	}
	c.totalPages -= seq.pages
	delete(c.sequences, seqID)
	return nil
}

// BeginForward marks the start of a forward pass of length tokens against
// seqID, extending its page allocation as needed.
func (c *KVCache) BeginForward(seqID uint64, length int) error {
	if c.inForward {
		return &ForwardInProgressError{}
	}
	seq, ok := c.sequences[seqID]
	if !ok {
		return &NoSuchSequenceError{SeqID: seqID}
	}
	if c.contextWindowSize > 0 && seq.length+length > c.contextWindowSize {
		return &ContextWindowExceededError{SeqID: seqID, Length: seq.length + length, Limit: c.contextWindowSize}
	}
	neededPages := pagesFor(seq.length + length)
	if neededPages > seq.pages {
		c.totalPages += neededPages - seq.pages
		seq.pages = neededPages
	}
	seq.length += length
	c.inForward = true
	return nil
}

// EndForward closes out the forward pass opened by BeginForward.
func (c *KVCache) EndForward() {
	c.inForward = false
}

// Popn discards the last n tokens of seqID's KV state (used when a
// generated continuation is discarded, e.g. on a rejected speculative
// decode or a retried generation).
func (c *KVCache) Popn(seqID uint64, n int) error {
	seq, ok := c.sequences[seqID]
	if !ok {
		return &NoSuchSequenceError{SeqID: seqID}
	}
	if n > seq.length {
		return &PopnUnderflowError{SeqID: seqID, N: n, Length: seq.length}
	}
	seq.length -= n
	neededPages := pagesFor(seq.length)
	c.totalPages -= seq.pages - neededPages
	seq.pages = neededPages
	return nil
}

// NumAvailablePages reports remaining page capacity, or -1 if unbounded
// (no context window configured).
func (c *KVCache) NumAvailablePages() int {
	if c.contextWindowSize <= 0 {
		return -1
	}
	capacity := pagesFor(c.contextWindowSize) * len(c.sequences)
	avail := capacity - c.totalPages
	if avail < 0 {
		return 0
	}
	return avail
}

// TotalSequenceLength returns the current token length tracked for seqID.
func (c *KVCache) TotalSequenceLength(seqID uint64) int {
	seq, ok := c.sequences[seqID]
	if !ok {
		return 0
	}
	return seq.length
}

func pagesFor(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	return (tokens + pageSize - 1) / pageSize
}

// SequenceExistsError is returned by AddSequence for an already-registered id.
type SequenceExistsError struct{ SeqID uint64 }

func (e *SequenceExistsError) Error() string {
	return fmt.Sprintf("kvcache: sequence %d already exists", e.SeqID)
}

// NoSuchSequenceError is returned when an operation references an
// unregistered sequence id.
type NoSuchSequenceError struct{ SeqID uint64 }

func (e *NoSuchSequenceError) Error() string {
	return fmt.Sprintf("kvcache: no such sequence %d", e.SeqID)
}

// ForwardInProgressError is returned by BeginForward when a prior forward
// pass was never closed with EndForward.
type ForwardInProgressError struct{}

func (e *ForwardInProgressError) Error() string { return "kvcache: forward pass already in progress" }

// ContextWindowExceededError is returned by BeginForward when the
// requested length would overflow the configured context window.
type ContextWindowExceededError struct {
	SeqID  uint64
	Length int
	Limit  int
}

func (e *ContextWindowExceededError) Error() string {
	return fmt.Sprintf("kvcache: sequence %d length %d exceeds context window %d", e.SeqID, e.Length, e.Limit)
}

// PopnUnderflowError is returned by Popn when n exceeds the sequence's
// current length.
type PopnUnderflowError struct {
	SeqID  uint64
	N      int
	Length int
}

func (e *PopnUnderflowError) Error() string {
	return fmt.Sprintf("kvcache: popn(%d) on sequence %d exceeds length %d", e.N, e.SeqID, e.Length)
}
