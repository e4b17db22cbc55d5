package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and single-node development.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]map[string]*Document
	hub      *hub
	now      func() time.Time
	lastTime time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]*Document),
		hub:  newHub(),
		now:  time.Now,
	}
}

// stamp returns a strictly increasing timestamp. Caller holds mu.
func (s *MemoryStore) stamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Nanosecond)
	}
	s.lastTime = t
	return t
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}
	norm, err := normalizeMap(data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	s.mu.Lock()
	t := s.stamp()
	s.put(collection, &Document{
		ID:         id,
		Path:       Join(collection, id),
		Data:       norm,
		CreateTime: t,
		UpdateTime: t,
		Version:    1,
	})
	s.mu.Unlock()

	s.hub.notify(collection)
	return id, nil
}

func (s *MemoryStore) Set(ctx context.Context, path string, data map[string]any) error {
	collection, id, err := SplitDocPath(path)
	if err != nil {
		return err
	}
	norm, err := normalizeMap(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	t := s.stamp()
	doc := &Document{ID: id, Path: path, Data: norm, CreateTime: t, UpdateTime: t, Version: 1}
	if existing, ok := s.docs[collection][id]; ok {
		doc.CreateTime = existing.CreateTime
		doc.Version = existing.Version + 1
	}
	s.put(collection, doc)
	s.mu.Unlock()

	s.hub.notify(collection)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields map[string]any, preconds ...Precondition) error {
	collection, id, err := SplitDocPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	existing, ok := s.docs[collection][id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	if err := checkPreconditions(existing.Version, preconds); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("update %s: %w", path, err)
	}
	data := cloneMap(existing.Data)
	if err := applyUpdate(data, fields); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("update %s: %w", path, err)
	}
	s.put(collection, &Document{
		ID:         id,
		Path:       path,
		Data:       data,
		CreateTime: existing.CreateTime,
		UpdateTime: s.stamp(),
		Version:    existing.Version + 1,
	})
	s.mu.Unlock()

	s.hub.notify(collection)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, path string) error {
	collection, id, err := SplitDocPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	_, existed := s.docs[collection][id]
	delete(s.docs[collection], id)
	s.mu.Unlock()

	if existed {
		s.hub.notify(collection)
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, path string) (*Document, error) {
	collection, id, err := SplitDocPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[collection][id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	return copyDoc(doc), nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]*Document, error) {
	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	candidates := make([]*Document, 0, len(s.docs[q.Collection]))
	for _, d := range s.docs[q.Collection] {
		candidates = append(candidates, d)
	}
	result := runQuery(candidates, q)
	out := make([]*Document, len(result))
	for i, d := range result {
		out[i] = copyDoc(d)
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query, fn func([]*Document)) (Unsubscribe, error) {
	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}
	last := ""
	first := true
	return s.hub.watch(ctx, q.Collection, func(ctx context.Context, alive func() bool) {
		docs, err := s.Query(ctx, q)
		if err != nil || !alive() {
			return
		}
		if fp := fingerprint(docs); first || fp != last {
			first, last = false, fp
			fn(docs)
		}
	}), nil
}

func (s *MemoryStore) SubscribeDocument(ctx context.Context, path string, fn func(*Document)) (Unsubscribe, error) {
	collection, _, err := SplitDocPath(path)
	if err != nil {
		return nil, err
	}
	last := ""
	first := true
	return s.hub.watch(ctx, collection, func(ctx context.Context, alive func() bool) {
		doc, err := s.Get(ctx, path)
		var docs []*Document
		if err == nil {
			docs = []*Document{doc}
		} else {
			doc = nil
		}
		if !alive() {
			return
		}
		if fp := fingerprint(docs); first || fp != last {
			first, last = false, fp
			fn(doc)
		}
	}), nil
}

// Watchers reports the number of live subscriptions.
func (s *MemoryStore) Watchers() int {
	return s.hub.size()
}

func (s *MemoryStore) Close() error {
	s.hub.closeAll()
	return nil
}

func (s *MemoryStore) put(collection string, doc *Document) {
	coll, ok := s.docs[collection]
	if !ok {
		coll = make(map[string]*Document)
		s.docs[collection] = coll
	}
	coll[doc.ID] = doc
}

func copyDoc(d *Document) *Document {
	c := *d
	c.Data = cloneMap(d.Data)
	return &c
}
