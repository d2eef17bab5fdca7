package assetcache

import "encoding/json"

// FileManifest is one file's entry in a per-directory manifest.
type FileManifest struct {
	SHA1              string  `json:"sha1"`
	Size              *int64  `json:"size,omitempty"`
	VersionConstraint *string `json:"version,omitempty"`
}

// dirManifest is the parsed `_manifest.json` for one cache directory.
type dirManifest struct {
	Files map[string]FileManifest `json:"files"`
}

func parseDirManifest(data []byte) (*dirManifest, error) {
	var m dirManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{Cause: err}
	}
	if m.Files == nil {
		m.Files = map[string]FileManifest{}
	}
	return &m, nil
}

// ManifestParseError wraps a manifest JSON decode failure.
type ManifestParseError struct {
	Cause error
}

func (e *ManifestParseError) Error() string { return "assetcache: manifest parse: " + e.Cause.Error() }
func (e *ManifestParseError) Unwrap() error { return e.Cause }

// EntryNotInManifestError is returned when the requested filename is absent
// from its directory's manifest.
type EntryNotInManifestError struct {
	Entry Entry
}

func (e *EntryNotInManifestError) Error() string {
	return "assetcache: " + e.Entry.String() + ": not present in manifest"
}

// HashMismatchError is returned when a freshly-downloaded blob does not
// match the manifest's declared SHA-1 digest. This is fatal: the remote
// content-addressed layout is supposed to make this impossible.
type HashMismatchError struct {
	Entry    Entry
	Want     string
	Got      string
}

func (e *HashMismatchError) Error() string {
	return "assetcache: " + e.Entry.String() + ": sha1 mismatch after download: want " + e.Want + " got " + e.Got
}
