package assetcache

import (
	"context"
	"sync"
)

// Materializer is implemented by anything assembled from a fixed set of
// named cache entries: a tokenizer, a chat template, a local model's
// weight shards. ClaimFiles
// declares which entries are needed for key; FromContents builds the value
// once every entry's bytes are in hand.
type Materializer[T any] interface {
	ClaimFiles(key string, shared map[string]string) ([]Entry, error)
	FromContents(contents map[Entry][]byte, shared map[string]string) (T, error)
}

// Progress reports one step of a TryCreate run. On a run that succeeds,
// Result is non-nil iff Current == Total, i.e. exactly on the terminal
// event. A failed run ends with an event whose Comment is the error text
// and whose Result is nil; when ClaimFiles itself fails, that event has
// Current == Total == 0.
type Progress[T any] struct {
	Comment string
	Current int
	Total   int
	Result  *T
}

// maxConcurrentDownloads bounds the fan-out of a single TryCreate call.
const maxConcurrentDownloads = 8

// TryCreate downloads every entry a Materializer claims for key (bounded,
// concurrent fan-out; completion order is not guaranteed), then invokes
// FromContents once all bytes are assembled. It emits exactly
// len(entries)+1 progress events on the returned channel: one per
// downloaded entry (Result == nil) and one terminal assembly event
// (Result != nil, Current == Total). The channel is closed after the
// terminal event or after the first error.
func TryCreate[T any](ctx context.Context, c *Cache, m Materializer[T], key string, shared map[string]string) <-chan Progress[T] {
	out := make(chan Progress[T])
	go func() {
		defer close(out)

		if shared == nil {
			shared = map[string]string{}
		}
		entries, err := m.ClaimFiles(key, shared)
		if err != nil {
			out <- Progress[T]{Comment: err.Error(), Current: 0, Total: 0}
			return
		}
		total := len(entries) + 1

		contents := make(map[Entry][]byte, len(entries))
		var mu sync.Mutex
		sem := make(chan struct{}, maxConcurrentDownloads)
		var wg sync.WaitGroup
		errCh := make(chan error, len(entries))
		current := 0

		for _, entry := range entries {
			entry := entry
			wg.Add(1)
			go func() {
				defer wg.Done()
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}

				data, err := c.Get(ctx, entry)
				if err != nil {
					errCh <- err
					return
				}

				mu.Lock()
				contents[entry] = data
				current++
				progress := Progress[T]{Comment: "fetched " + entry.String(), Current: current, Total: total}
				mu.Unlock()

				select {
				case out <- progress:
				case <-ctx.Done():
				}
			}()
		}
		wg.Wait()
		close(errCh)

		if err, ok := <-errCh; ok {
			out <- Progress[T]{Comment: err.Error(), Current: current, Total: total}
			return
		}

		result, err := m.FromContents(contents, shared)
		if err != nil {
			out <- Progress[T]{Comment: err.Error(), Current: current, Total: total}
			return
		}
		out <- Progress[T]{Comment: "ready", Current: total, Total: total, Result: &result}
	}()
	return out
}
