package knowledge

import (
	"context"
	"sort"
	"sync"

	"github.com/ailoy-go/ailoy/internal/value"
)

// MemStore is a brute-force in-memory Store: every Retrieve scans the
// full entry set and scores it with CosineSimilarity, returning results
// ordered by descending score and capped at Limit. Scoped to a Document
// shape rather than a chunk/document split. Adequate for tests and small
// local deployments; a production host wires a real vector database
// through the same Store interface.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	vector []float32
	doc    value.Document
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]memEntry)}
}

func (s *MemStore) Add(ctx context.Context, id string, vector []float32, doc value.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memEntry{vector: append([]float32(nil), vector...), doc: doc}
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (value.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return value.Document{}, false, nil
	}
	return e.doc, true, nil
}

func (s *MemStore) Retrieve(ctx context.Context, query []float32, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]Match, 0, len(s.entries))
	for _, e := range s.entries {
		matches = append(matches, Match{Document: e.doc, Score: CosineSimilarity(query, e.vector)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemStore) BatchRetrieve(ctx context.Context, queries [][]float32, limit int) ([][]Match, error) {
	out := make([][]Match, len(queries))
	for i, q := range queries {
		m, err := s.Retrieve(ctx, q, limit)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func (s *MemStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memEntry)
	return nil
}

func (s *MemStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
