package tokenizer

import "os"

// spillTemp writes data to a temp file and returns its path. The
// underlying HuggingFace tokenizer loader only accepts a filesystem path,
// so assets fetched through the content-addressed cache must be spilled
// before loading.
func spillTemp(data []byte) (string, error) {
	f, err := os.CreateTemp("", "ailoy-tokenizer-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", err
	}
	return f.Name(), nil
}
