package service

import (
	"context"
	"sync/atomic"

	"tripmate/server/internal/docstore"
)

// conflictingStore fails the first n updates with ErrConflict.
type conflictingStore struct {
	docstore.Store
	failures atomic.Int32
	updates  atomic.Int32
}

func (s *conflictingStore) Update(ctx context.Context, path string, fields map[string]any, preconds ...docstore.Precondition) error {
	s.updates.Add(1)
	if s.failures.Load() > 0 {
		s.failures.Add(-1)
		return docstore.ErrConflict
	}
	return s.Store.Update(ctx, path, fields, preconds...)
}
