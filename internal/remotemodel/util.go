package remotemodel

import (
	"encoding/base64"
	"encoding/json"
)

func decodeBase64(s string) ([]byte, bool) {
	b, err := base64.StdEncoding.DecodeString(s)
	return b, err == nil
}

func mapFromJSON(raw []byte) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func jsonMarshal(v any) ([]byte, error) { return json.Marshal(v) }
