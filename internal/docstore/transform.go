package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

// arrayUnion adds values to an array field, skipping ones already present.
type arrayUnion struct{ values []any }

// arrayRemove removes every occurrence of values from an array field.
type arrayRemove struct{ values []any }

// ArrayUnion returns an Update value that adds the given elements to a set-like array.
func ArrayUnion(values ...any) any { return arrayUnion{values: values} }

// ArrayRemove returns an Update value that removes the given elements from an array.
func ArrayRemove(values ...any) any { return arrayRemove{values: values} }

// normalize converts arbitrary Go values into the JSON value space
// (map[string]any, []any, string, float64, bool, nil).
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	n, err := normalize(m)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	out, _ := n.(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	delete(out, FieldID)
	delete(out, FieldCreatedAt)
	return out, nil
}

// applyUpdate merges fields into data in place. Both stores share it so that
// transform semantics cannot drift between backends.
func applyUpdate(data map[string]any, fields map[string]any) error {
	for key, value := range fields {
		if key == FieldID || key == FieldCreatedAt {
			return fmt.Errorf("%w: field %q is read-only", ErrInvalidPath, key)
		}
		segments := strings.Split(key, ".")
		parent := data
		for _, seg := range segments[:len(segments)-1] {
			next, ok := parent[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				parent[seg] = next
			}
			parent = next
		}
		leaf := segments[len(segments)-1]

		switch t := value.(type) {
		case arrayUnion:
			items, err := normalizeSlice(t.values)
			if err != nil {
				return err
			}
			current, _ := parent[leaf].([]any)
			for _, item := range items {
				if !containsValue(current, item) {
					current = append(current, item)
				}
			}
			if current == nil {
				current = []any{}
			}
			parent[leaf] = current
		case arrayRemove:
			items, err := normalizeSlice(t.values)
			if err != nil {
				return err
			}
			current, _ := parent[leaf].([]any)
			kept := make([]any, 0, len(current))
			for _, existing := range current {
				if !containsValue(items, existing) {
					kept = append(kept, existing)
				}
			}
			parent[leaf] = kept
		default:
			n, err := normalize(value)
			if err != nil {
				return fmt.Errorf("encode field %q: %w", key, err)
			}
			parent[leaf] = n
		}
	}
	return nil
}

func normalizeSlice(values []any) ([]any, error) {
	out := make([]any, 0, len(values))
	for _, v := range values {
		n, err := normalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if equalValues(item, v) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ra) == string(rb)
}

func cloneMap(m map[string]any) map[string]any {
	// Values are already in the JSON value space, so a round trip is a deep copy.
	n, err := normalize(m)
	if err != nil {
		return map[string]any{}
	}
	out, _ := n.(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out
}
