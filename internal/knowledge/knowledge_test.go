package knowledge

import (
	"context"
	"testing"

	"github.com/ailoy-go/ailoy/internal/value"
)

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vectors[text], nil
}

func TestRetrieveReturnsDocsAboveThresholdInScoreOrder(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	_ = store.Add(ctx, "a", []float32{1, 0}, value.Document{Text: "about cats"})
	_ = store.Add(ctx, "b", []float32{0, 1}, value.Document{Text: "about dogs"})
	_ = store.Add(ctx, "c", []float32{0.9, 0.1}, value.Document{Text: "about kittens"})

	r := NewRetriever(fakeEmbedder{vectors: map[string][]float32{"cats?": {1, 0}}}, store)
	docs, err := r.Retrieve(ctx, "cats?", Config{Limit: 2, Threshold: 0.5})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].Text != "about cats" {
		t.Fatalf("docs[0].Text = %q, want %q", docs[0].Text, "about cats")
	}
	if docs[1].Text != "about kittens" {
		t.Fatalf("docs[1].Text = %q, want %q", docs[1].Text, "about kittens")
	}
}

func TestRetrieveDropsMatchesBelowThreshold(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	_ = store.Add(ctx, "a", []float32{1, 0}, value.Document{Text: "relevant"})
	_ = store.Add(ctx, "b", []float32{-1, 0}, value.Document{Text: "opposite"})

	r := NewRetriever(fakeEmbedder{vectors: map[string][]float32{"q": {1, 0}}}, store)
	docs, err := r.Retrieve(ctx, "q", Config{Limit: 10, Threshold: 0.9})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) != 1 || docs[0].Text != "relevant" {
		t.Fatalf("docs = %+v, want exactly [relevant]", docs)
	}
}

func TestCosineSimilarityMismatchedLengthIsZero(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 2}, []float32{1}); got != 0 {
		t.Fatalf("CosineSimilarity with mismatched lengths = %v, want 0", got)
	}
}

func TestMemStoreRemoveAndClear(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	_ = store.Add(ctx, "a", []float32{1}, value.Document{Text: "x"})
	_ = store.Remove(ctx, "a")
	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("count after remove = %d, want 0", n)
	}
	_ = store.Add(ctx, "b", []float32{1}, value.Document{Text: "y"})
	_ = store.Clear(ctx)
	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("count after clear = %d, want 0", n)
	}
}
