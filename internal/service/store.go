package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tripmate/server/internal/docstore"
)

// maxAttempts bounds the optimistic read-modify-write loop.
const maxAttempts = 5

// mutate re-reads the document and retries when another writer got there first.
// change returns the fields to write, computed from the fresh snapshot.
func mutate(ctx context.Context, store docstore.Store, path string, change func(doc *docstore.Document) (map[string]any, error)) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		doc, err := store.Get(ctx, path)
		if err != nil {
			return err
		}
		fields, err := change(doc)
		if err != nil {
			return err
		}
		err = store.Update(ctx, path, fields, docstore.IfVersion(doc.Version))
		if err == nil {
			return nil
		}
		if !errors.Is(err, docstore.ErrConflict) {
			return err
		}
		slog.Debug("optimistic update conflict", "path", path, "attempt", attempt)
	}
	return fmt.Errorf("update %s: %w", path, ErrTooManyConflicts)
}

func getAs[T any](ctx context.Context, store docstore.Store, path string) (T, error) {
	var v T
	doc, err := store.Get(ctx, path)
	if err != nil {
		return v, err
	}
	err = docstore.Decode(doc, &v)
	return v, err
}

func listAs[T any](ctx context.Context, store docstore.Store, q docstore.Query, order func([]T)) ([]T, error) {
	docs, err := store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	items, err := docstore.DecodeAll[T](docs)
	if err != nil {
		return nil, err
	}
	if order != nil {
		order(items)
	}
	return items, nil
}

func subscribeAs[T any](ctx context.Context, store docstore.Store, q docstore.Query, order func([]T), fn func([]T)) (docstore.Unsubscribe, error) {
	return store.Subscribe(ctx, q, func(docs []*docstore.Document) {
		items := make([]T, 0, len(docs))
		for _, d := range docs {
			var v T
			if err := docstore.Decode(d, &v); err != nil {
				slog.Warn("skipping undecodable document", "path", d.Path, "error", err)
				continue
			}
			items = append(items, v)
		}
		if order != nil {
			order(items)
		}
		fn(items)
	})
}
