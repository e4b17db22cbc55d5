// Package docstore is the gateway to the hierarchical document store that owns every
// shared entity of the planner: groups and their sub-collections.
//
// Paths alternate collection and document segments, e.g. "groups" (collection),
// "groups/g1" (document), "groups/g1/messages" (collection). Documents are schemaless
// JSON objects; the store assigns identifiers and creation times.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when an update precondition does not hold.
	ErrConflict = errors.New("document changed concurrently")
	// ErrInvalidPath is returned for malformed collection or document paths.
	ErrInvalidPath = errors.New("invalid path")
)

// Reserved field names owned by the store.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
)

// Document is a snapshot of one stored record.
type Document struct {
	ID         string
	Path       string
	Data       map[string]any
	CreateTime time.Time
	UpdateTime time.Time
	Version    int64
}

// Direction is a sort direction.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is an equality constraint on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query selects documents from one collection.
type Query struct {
	Collection string
	OrderBy    string // field name; FieldCreatedAt orders by creation time
	Direction  Direction
	Filters    []Filter
	// StartAfter resumes after the given document in query order. Only its ID,
	// CreateTime and Data are consulted.
	StartAfter *Document
	// StartAt is the inclusive form of StartAfter.
	StartAt    *Document
	Limit      int // 0 means unlimited
}

// Unsubscribe releases a live subscription. It is safe to call more than once.
type Unsubscribe func()

// Store is the Document/Collection Gateway.
type Store interface {
	// Add creates a document with a store-assigned id and creation time.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Set creates or overwrites the document at path. An existing creation time is kept.
	Set(ctx context.Context, path string, data map[string]any) error
	// Update merges fields into an existing document. Field names may be dotted
	// ("votes.A") and values may be ArrayUnion / ArrayRemove transforms.
	Update(ctx context.Context, path string, fields map[string]any, preconds ...Precondition) error
	Delete(ctx context.Context, path string) error
	Get(ctx context.Context, path string) (*Document, error)
	Query(ctx context.Context, q Query) ([]*Document, error)
	// Subscribe delivers the query result now and again after every change to the collection.
	Subscribe(ctx context.Context, q Query, fn func([]*Document)) (Unsubscribe, error)
	// SubscribeDocument delivers the document now and after every change; nil means absent.
	SubscribeDocument(ctx context.Context, path string, fn func(*Document)) (Unsubscribe, error)
	Close() error
}

// Precondition guards an Update.
type Precondition struct {
	version int64
}

// IfVersion makes an Update fail with ErrConflict unless the stored version matches.
func IfVersion(v int64) Precondition {
	return Precondition{version: v}
}

func checkPreconditions(current int64, preconds []Precondition) error {
	for _, p := range preconds {
		if p.version != 0 && p.version != current {
			return fmt.Errorf("%w: have version %d, want %d", ErrConflict, current, p.version)
		}
	}
	return nil
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitDocPath returns the parent collection and id of a document path.
func SplitDocPath(path string) (collection, id string, err error) {
	parts := strings.Split(path, "/")
	if len(parts)%2 != 0 || hasEmpty(parts) {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

func validateCollection(path string) error {
	parts := strings.Split(path, "/")
	if len(parts)%2 != 1 || hasEmpty(parts) {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return nil
}

func hasEmpty(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return true
		}
	}
	return false
}
