package cart

import (
	"encoding/json"
	"fmt"
)

// envelopeVersion is the only version Decode accepts.
const envelopeVersion = 1

type envelope struct {
	Version *int   `json:"version"`
	Items   []Item `json:"items"`
}

// Encode serializes the whole cart as one versioned envelope.
func Encode(c *Cart) (string, error) {
	v := envelopeVersion
	items := c.Items()
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(envelope{Version: &v, Items: items})
	if err != nil {
		return "", fmt.Errorf("marshal cart: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored envelope. It reports false for anything it cannot
// trust: invalid JSON, a bare array from before versioning, an unknown
// version, or lines with a non-positive qty or negative price.
func Decode(raw string) (*Cart, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return New(), false
	}
	if env.Version == nil || *env.Version != envelopeVersion {
		return New(), false
	}
	for _, it := range env.Items {
		if it.Qty <= 0 || it.Price < 0 {
			return New(), false
		}
	}
	return New(env.Items...), true
}
