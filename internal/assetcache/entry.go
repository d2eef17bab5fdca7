// Package assetcache implements the content-addressed, manifest-driven
// asset cache: per-directory manifests under a cache root, SHA-1
// verification of local files against a manifest, content-addressed
// remote fetch on mismatch, and a generic streaming materializer
// (TryCreate) for any component that can be assembled from a fixed set of
// named files.
package assetcache

// Entry is a logical path under the cache root: <root>/<Dirname>/<Filename>.
type Entry struct {
	Dirname  string
	Filename string
}

func (e Entry) String() string { return e.Dirname + "/" + e.Filename }
