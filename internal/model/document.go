package model

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Decode converts a raw store document (id plus field map) into a typed
// entity.  Unknown fields are ignored.
func Decode[T any](id string, fields map[string]any) (T, error) {
	var out T
	m := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		m[k] = v
	}
	m["id"] = id
	raw, err := json.Marshal(m)
	if err != nil {
		return out, errors.Wrap(err, "marshal document")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.Wrap(err, "decode document")
	}
	return out, nil
}

// Encode converts a typed entity into the field map written to the store.
// The id is never part of the stored fields.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal entity")
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "encode entity")
	}
	delete(fields, "id")
	return fields, nil
}
