package docstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Encode turns a struct into document data. The reserved id and createdAt
// fields are stripped; the store owns them.
func Encode(v any) (map[string]any, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	m, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("encode: %T is not an object", v)
	}
	delete(m, FieldID)
	delete(m, FieldCreatedAt)
	return m, nil
}

// Decode fills out from a document, injecting the store-owned id and createdAt.
func Decode(doc *Document, out any) error {
	data := cloneMap(doc.Data)
	data[FieldID] = doc.ID
	data[FieldCreatedAt] = doc.CreateTime.UTC().Format(time.RFC3339Nano)
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", doc.Path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", doc.Path, err)
	}
	return nil
}

// DecodeAll decodes a snapshot into a slice of T.
func DecodeAll[T any](docs []*Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := Decode(d, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
