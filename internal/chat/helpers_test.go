package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tripmate/server/internal/blobstore"
	"tripmate/server/internal/docstore"
	"tripmate/server/internal/models"
	"tripmate/server/internal/websocket"
)

// countingStore counts writes and can fail updates on demand.
type countingStore struct {
	docstore.Store
	updates     atomic.Int32
	sets        atomic.Int32
	deletes     atomic.Int32
	failUpdates atomic.Bool
	failAdds    atomic.Bool
	failSets    atomic.Bool
	setDelay    atomic.Int64 // nanoseconds
}

func (s *countingStore) Update(ctx context.Context, path string, fields map[string]any, preconds ...docstore.Precondition) error {
	s.updates.Add(1)
	if s.failUpdates.Load() {
		return errors.New("unavailable")
	}
	return s.Store.Update(ctx, path, fields, preconds...)
}

func (s *countingStore) Set(ctx context.Context, path string, data map[string]any) error {
	s.sets.Add(1)
	if d := s.setDelay.Load(); d > 0 {
		time.Sleep(time.Duration(d))
	}
	if s.failSets.Load() {
		return errors.New("unavailable")
	}
	return s.Store.Set(ctx, path, data)
}

func (s *countingStore) Delete(ctx context.Context, path string) error {
	s.deletes.Add(1)
	return s.Store.Delete(ctx, path)
}

func (s *countingStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if s.failAdds.Load() {
		return "", errors.New("unavailable")
	}
	return s.Store.Add(ctx, collection, data)
}

func newCountingStore(t *testing.T) *countingStore {
	mem := docstore.NewMemoryStore()
	t.Cleanup(func() { mem.Close() })
	return &countingStore{Store: mem}
}

// fakeBlobs records uploads in memory.
type fakeBlobs struct {
	mu      sync.Mutex
	uploads map[string][]byte
	calls   int
	deleted []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{uploads: make(map[string][]byte)}
}

func (b *fakeBlobs) Upload(_ context.Context, path, _ string, r io.Reader, _ int64) (blobstore.Handle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return blobstore.Handle{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.uploads[path] = data
	return blobstore.Handle{Path: path}, nil
}

func (b *fakeBlobs) URL(_ context.Context, h blobstore.Handle) (string, error) {
	return "https://blobs.test/" + h.Path, nil
}

func (b *fakeBlobs) Delete(_ context.Context, h blobstore.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, h.Path)
	delete(b.uploads, h.Path)
	return nil
}

func (b *fakeBlobs) uploadCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// sink collects emitted events.
type sink struct {
	mu     sync.Mutex
	events []websocket.WSMessage
}

func (s *sink) SendMessage(msg websocket.WSMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, msg)
	return nil
}

func (s *sink) ofType(t websocket.EventType) []websocket.WSMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []websocket.WSMessage
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (s *sink) lastWindow() (Window, bool) {
	msgs := s.ofType(websocket.EventMessages)
	if len(msgs) == 0 {
		return Window{}, false
	}
	return msgs[len(msgs)-1].Payload.(Window), true
}

func incoming(t *testing.T, typ websocket.EventType, payload any) websocket.IncomingMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return websocket.IncomingMessage{Type: typ, Payload: raw}
}

func seedMessages(t *testing.T, store docstore.Store, groupID string, contents ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(contents))
	for _, c := range contents {
		data, err := docstore.Encode(models.Message{GroupID: groupID, Content: c, Type: models.KindText, Author: "someone", ReadBy: []string{"someone"}})
		require.NoError(t, err)
		id, err := store.Add(context.Background(), models.GroupCollection(groupID, models.MessagesCollection), data)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func contents(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}
