// Package apiconnect wires the splitledger messages to Connect handlers and
// clients.
package apiconnect

import (
	json "github.com/goccy/go-json"
)

// Codec marshals plain Go messages as JSON. It registers under the name
// "json", so Connect serves and sends it as application/json.
type Codec struct{}

// Name returns the codec name Connect negotiates on.
func (Codec) Name() string { return "json" }

// Marshal encodes msg as JSON.
func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// Unmarshal decodes JSON into msg. An empty body leaves msg unchanged.
func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
