// Package jsonx bridges statically typed values, JSON schemas, and the
// dynamic JSON documents that flow through model responses.
package jsonx

import (
	json "github.com/goccy/go-json"
)

// ToDynamicJSON converts any Go value to a map[string]any by round-tripping
// it through JSON. Providers use this to hand schemas to SDKs that only
// accept loosely typed parameter maps.
func ToDynamicJSON(val any) (map[string]any, error) {
	result := make(map[string]any)
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}
