// Package tokenizer wraps a HuggingFace-format tokenizer with the
// incremental-UTF8-safety behavior the local decode loop depends on: a
// partial token sequence may decode to a string ending in U+FFFD, which
// callers must buffer until it resolves to a complete rune.
package tokenizer

import (
	"strings"
	"unicode/utf8"

	hftokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// replacementChar is the U+FFFD marker a partial UTF-8 sequence decodes to.
const replacementChar = "�"

// Tokenizer encodes text to token ids and decodes token ids back to text.
type Tokenizer struct {
	inner *hftokenizer.Tokenizer
}

// FromFile loads a tokenizer.json in HuggingFace format.
func FromFile(path string) (*Tokenizer, error) {
	inner, err := pretrained.FromFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	return &Tokenizer{inner: inner}, nil
}

// FromBytes loads a tokenizer.json payload already in memory (e.g. fetched
// via the asset cache), by spilling it to a temp file — the underlying
// HuggingFace tokenizer library only exposes a file-based loader.
func FromBytes(data []byte) (*Tokenizer, error) {
	path, err := spillTemp(data)
	if err != nil {
		return nil, err
	}
	return FromFile(path)
}

// Encode tokenizes text into token ids.
func (t *Tokenizer) Encode(text string, addSpecialTokens bool) ([]uint32, error) {
	input := hftokenizer.NewInputSequence(text)
	encoding, err := t.inner.EncodeSingle(input, addSpecialTokens)
	if err != nil {
		return nil, &EncodeError{Cause: err}
	}
	ids := make([]uint32, len(encoding.Ids))
	for i, id := range encoding.Ids {
		ids[i] = uint32(id)
	}
	return ids, nil
}

// Decode detokenizes token ids back into text.
func (t *Tokenizer) Decode(tokens []uint32, skipSpecialTokens bool) (string, error) {
	ids := make([]int, len(tokens))
	for i, id := range tokens {
		ids[i] = int(id)
	}
	s, err := t.inner.Decode(ids, skipSpecialTokens)
	if err != nil {
		return "", &DecodeError{Cause: err}
	}
	return s, nil
}

// Decoder is the subset of Tokenizer that IncrementalBuffer needs; factored
// out as an exported interface so callers (and tests) can drive the
// buffering state machine without a real HuggingFace tokenizer asset.
type Decoder interface {
	Decode(tokens []uint32, skipSpecialTokens bool) (string, error)
}

// IncrementalBuffer accumulates token ids across decode steps and only
// yields text once it no longer ends in a dangling, incomplete UTF-8
// sequence (surfaced by the tokenizer's byte-fallback decoder as U+FFFD).
// This is the buffering behavior required of callers that decode
// incrementally.
type IncrementalBuffer struct {
	tok    Decoder
	tokens []uint32
}

// NewIncrementalBuffer returns an empty buffer bound to any Decoder.
func NewIncrementalBuffer(tok Decoder) *IncrementalBuffer {
	return &IncrementalBuffer{tok: tok}
}

// Push appends a newly decoded token and attempts detokenization. ok is
// true iff the accumulated tokens decoded cleanly (no trailing U+FFFD); in
// that case the buffer is cleared and the decoded text is returned.
func (b *IncrementalBuffer) Push(token uint32) (text string, ok bool, err error) {
	b.tokens = append(b.tokens, token)
	decoded, err := b.tok.Decode(b.tokens, false)
	if err != nil {
		return "", false, err
	}
	if endsInReplacementChar(decoded) {
		return "", false, nil
	}
	b.tokens = b.tokens[:0]
	return decoded, true, nil
}

func endsInReplacementChar(s string) bool {
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return r == utf8.RuneError || strings.HasSuffix(s, replacementChar)
}

// LoadError wraps a tokenizer.json load failure.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string { return "tokenizer: load " + e.Path + ": " + e.Cause.Error() }
func (e *LoadError) Unwrap() error { return e.Cause }

// EncodeError wraps a tokenize failure.
type EncodeError struct{ Cause error }

func (e *EncodeError) Error() string { return "tokenizer: encode: " + e.Cause.Error() }
func (e *EncodeError) Unwrap() error { return e.Cause }

// DecodeError wraps a detokenize failure.
type DecodeError struct{ Cause error }

func (e *DecodeError) Error() string { return "tokenizer: decode: " + e.Cause.Error() }
func (e *DecodeError) Unwrap() error { return e.Cause }
