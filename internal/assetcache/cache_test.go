package assetcache

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestServer(t *testing.T, blobs map[string][]byte, manifestJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/model/_manifest.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(manifestJSON))
	})
	for sha1Hex, data := range blobs {
		data := data
		mux.HandleFunc("/model/"+sha1Hex, func(w http.ResponseWriter, r *http.Request) {
			w.Write(data)
		})
	}
	return httptest.NewServer(mux)
}

func TestGetIdempotentOnLocalHashHit(t *testing.T) {
	content := []byte("hello world")
	hash := sha1Hex(content)
	manifest := fmt.Sprintf(`{"files":{"weights.bin":{"sha1":"%s"}}}`, hash)
	srv := newTestServer(t, map[string][]byte{hash: content}, manifest)
	defer srv.Close()

	root := t.TempDir()
	localPath := filepath.Join(root, "model", "weights.bin")
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(localPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	var blobHits int
	c := New(WithRoot(root), WithRemoteURL(srv.URL))
	// Wrap the client to count blob fetches; manifest fetch is expected once.
	c.client = &http.Client{Transport: countingTransport{inner: http.DefaultTransport, hits: &blobHits, suffix: "/" + hash}}

	entry := Entry{Dirname: "model", Filename: "weights.bin"}
	data1, err := c.Get(context.Background(), entry)
	if err != nil {
		t.Fatal(err)
	}
	data2, err := c.Get(context.Background(), entry)
	if err != nil {
		t.Fatal(err)
	}
	if string(data1) != string(content) || string(data2) != string(content) {
		t.Fatalf("got unexpected bytes")
	}
	if blobHits != 0 {
		t.Fatalf("expected zero blob downloads on hash hit, got %d", blobHits)
	}
}

type countingTransport struct {
	inner  http.RoundTripper
	hits   *int
	suffix string
}

func (c countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(req.URL.Path) >= len(c.suffix) && req.URL.Path[len(req.URL.Path)-len(c.suffix):] == c.suffix {
		*c.hits++
	}
	return c.inner.RoundTrip(req)
}

func TestGetHashMissTriggersDownload(t *testing.T) {
	content := []byte("new bytes")
	hash := sha1Hex(content)
	manifest := fmt.Sprintf(`{"files":{"weights.bin":{"sha1":"%s"}}}`, hash)
	srv := newTestServer(t, map[string][]byte{hash: content}, manifest)
	defer srv.Close()

	root := t.TempDir()
	localPath := filepath.Join(root, "model", "weights.bin")
	os.MkdirAll(filepath.Dir(localPath), 0o755)
	os.WriteFile(localPath, []byte("stale bytes"), 0o644)

	c := New(WithRoot(root), WithRemoteURL(srv.URL))
	data, err := c.Get(context.Background(), Entry{Dirname: "model", Filename: "weights.bin"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(content) {
		t.Fatalf("data = %q, want %q", data, content)
	}
	onDisk, _ := os.ReadFile(localPath)
	if sha1Hex(onDisk) != hash {
		t.Fatalf("local file not overwritten with matching content")
	}
}

func TestGetMissingEntryFails(t *testing.T) {
	srv := newTestServer(t, nil, `{"files":{}}`)
	defer srv.Close()
	c := New(WithRoot(t.TempDir()), WithRemoteURL(srv.URL))
	if _, err := c.Get(context.Background(), Entry{Dirname: "model", Filename: "missing.bin"}); err == nil {
		t.Fatal("expected error for entry absent from manifest")
	}
}

type staticMaterializer struct {
	entries []Entry
}

func (s staticMaterializer) ClaimFiles(key string, shared map[string]string) ([]Entry, error) {
	return s.entries, nil
}

func (s staticMaterializer) FromContents(contents map[Entry][]byte, shared map[string]string) (string, error) {
	total := 0
	for _, data := range contents {
		total += len(data)
	}
	return fmt.Sprintf("assembled %d bytes", total), nil
}

func TestTryCreateEmitsExactlyEntriesPlusOne(t *testing.T) {
	a, b := []byte("aaa"), []byte("bb")
	hashA, hashB := sha1Hex(a), sha1Hex(b)
	manifest := fmt.Sprintf(`{"files":{"a.bin":{"sha1":"%s"},"b.bin":{"sha1":"%s"}}}`, hashA, hashB)
	srv := newTestServer(t, map[string][]byte{hashA: a, hashB: b}, manifest)
	defer srv.Close()

	c := New(WithRoot(t.TempDir()), WithRemoteURL(srv.URL))
	mat := staticMaterializer{entries: []Entry{{Dirname: "model", Filename: "a.bin"}, {Dirname: "model", Filename: "b.bin"}}}

	var events []Progress[string]
	for p := range TryCreate[string](context.Background(), c, mat, "model", nil) {
		events = append(events, p)
	}

	if len(events) != 3 {
		t.Fatalf("events = %d, want entries+1 = 3", len(events))
	}
	for _, e := range events[:2] {
		if e.Result != nil {
			t.Fatalf("non-terminal event carries a result")
		}
	}
	last := events[2]
	if last.Result == nil || last.Current != last.Total || last.Total != 3 {
		t.Fatalf("terminal event = %+v, want current==total==3 with a result", last)
	}
}
