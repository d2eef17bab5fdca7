// Package knowledge implements the retrieval side of the agent loop: an
// embedding-backed vector store query that produces value.Document
// results for the agent orchestrator to fold into a run's prompt. Only
// the interface is part of the core — concrete embedding models and
// vector store backends are external collaborators; this package also
// ships a brute-force in-memory Store so the orchestrator and its tests
// have a real backend to exercise.
package knowledge

import (
	"context"
	"math"

	"github.com/ailoy-go/ailoy/internal/value"
)

// Embedder turns text into a fixed-dimension vector. Concrete embedding
// backends (local or hosted) are external collaborators; Embedder is the
// seam a host plugs one in through.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match pairs a retrieved Document with its similarity score.
type Match struct {
	Document value.Document
	Score    float32
}

// Store is the vector store behavior surface: add/get/retrieve/
// batch_retrieve/remove/clear/count with cosine-distance semantics
// (inner product on normalized vectors).
type Store interface {
	Add(ctx context.Context, id string, vector []float32, doc value.Document) error
	Get(ctx context.Context, id string) (value.Document, bool, error)
	Retrieve(ctx context.Context, query []float32, limit int) ([]Match, error)
	BatchRetrieve(ctx context.Context, queries [][]float32, limit int) ([][]Match, error)
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// Config configures one Retrieve call.
type Config struct {
	// Limit caps the number of documents returned. Default: 4.
	Limit int

	// Threshold is the minimum similarity score a match must clear.
	Threshold float32
}

func (c Config) resolve() Config {
	if c.Limit <= 0 {
		c.Limit = 4
	}
	return c
}

// Retriever composes an Embedder and a Store into a narrow
// `retrieve(query, config) -> []Document` contract. It is the concrete
// type Agent.knowledge holds.
type Retriever struct {
	embedder Embedder
	store    Store
}

// NewRetriever binds an embedder and a store into one Retriever.
func NewRetriever(embedder Embedder, store Store) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds query and returns the store's top matches above
// cfg.Threshold, in descending score order.
func (r *Retriever) Retrieve(ctx context.Context, query string, cfg Config) ([]value.Document, error) {
	cfg = cfg.resolve()
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &EmbedError{Cause: err}
	}
	matches, err := r.store.Retrieve(ctx, vec, cfg.Limit)
	if err != nil {
		return nil, &RetrieveError{Cause: err}
	}
	docs := make([]value.Document, 0, len(matches))
	for _, m := range matches {
		if m.Score < cfg.Threshold {
			continue
		}
		docs = append(docs, m.Document)
	}
	return docs, nil
}

// CosineSimilarity computes inner product over L2-normalized vectors, the
// cosine-distance semantics a Store implementation scores matches with.
// Vectors of differing length score zero rather than panicking.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// EmbedError wraps a failure to embed a retrieval query.
type EmbedError struct{ Cause error }

func (e *EmbedError) Error() string { return "knowledge: embed query: " + e.Cause.Error() }
func (e *EmbedError) Unwrap() error  { return e.Cause }

// RetrieveError wraps a failure from the underlying Store during Retrieve.
type RetrieveError struct{ Cause error }

func (e *RetrieveError) Error() string { return "knowledge: store retrieve: " + e.Cause.Error() }
func (e *RetrieveError) Unwrap() error  { return e.Cause }
