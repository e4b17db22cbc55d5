package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/models"
)

func typingRecord(t *testing.T, store docstore.Store, user string) (*models.TypingStatus, bool) {
	t.Helper()
	doc, err := store.Get(context.Background(), typingPath("g1", user))
	if err != nil {
		return nil, false
	}
	var s models.TypingStatus
	require.NoError(t, docstore.Decode(doc, &s))
	return &s, true
}

func TestTypingDebounceAndExpiry(t *testing.T) {
	store := newCountingStore(t)
	typing := NewTyping(store, "g1", "Ana", 20*time.Millisecond, 150*time.Millisecond)
	defer typing.Close()

	for i := 0; i < 5; i++ {
		typing.Start()
		time.Sleep(5 * time.Millisecond)
	}
	require.Eventually(t, func() bool {
		_, ok := typingRecord(t, store, "Ana")
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, store.sets.Load(), "a burst of keystrokes is one write")

	rec, _ := typingRecord(t, store, "Ana")
	assert.Equal(t, "Ana", rec.UserName)
	assert.Equal(t, "g1", rec.GroupID)

	require.Eventually(t, func() bool {
		_, ok := typingRecord(t, store, "Ana")
		return !ok
	}, time.Second, 5*time.Millisecond, "record is cleared after the TTL")
}

func TestTypingStopDeletesImmediately(t *testing.T) {
	store := newCountingStore(t)
	typing := NewTyping(store, "g1", "Ana", 5*time.Millisecond, time.Minute)
	defer typing.Close()

	typing.Start()
	require.Eventually(t, func() bool {
		_, ok := typingRecord(t, store, "Ana")
		return ok
	}, time.Second, 5*time.Millisecond)

	typing.Stop()
	_, ok := typingRecord(t, store, "Ana")
	assert.False(t, ok)
}

func TestTypingStopCancelsPendingWrite(t *testing.T) {
	store := newCountingStore(t)
	typing := NewTyping(store, "g1", "Ana", 30*time.Millisecond, time.Minute)
	defer typing.Close()

	typing.Start()
	typing.Stop()
	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 0, store.sets.Load())
}

func TestTypingStopDuringSlowWriteLeavesNoRecord(t *testing.T) {
	store := newCountingStore(t)
	store.setDelay.Store(int64(50 * time.Millisecond))
	typing := NewTyping(store, "g1", "Ana", 5*time.Millisecond, time.Minute)
	defer typing.Close()

	typing.Start()
	require.Eventually(t, func() bool { return store.sets.Load() == 1 }, time.Second, time.Millisecond)
	typing.Stop()

	_, ok := typingRecord(t, store, "Ana")
	assert.False(t, ok, "stop waits for the in-flight write")
	time.Sleep(100 * time.Millisecond)
	docs, err := store.Query(context.Background(), docstore.Query{Collection: typingCollection("g1")})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestTypingFailedWriteArmsNoClear(t *testing.T) {
	store := newCountingStore(t)
	store.failSets.Store(true)
	typing := NewTyping(store, "g1", "Ana", 5*time.Millisecond, 20*time.Millisecond)

	typing.Start()
	require.Eventually(t, func() bool { return store.sets.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.EqualValues(t, 0, store.deletes.Load())
}

func TestTypingUserWithSlashInName(t *testing.T) {
	store := newCountingStore(t)
	typing := NewTyping(store, "g1", "a/b", time.Millisecond, time.Minute)
	defer typing.Close()

	typing.Start()
	require.Eventually(t, func() bool {
		_, ok := typingRecord(t, store, "a/b")
		return ok
	}, time.Second, 5*time.Millisecond)
}

type names struct {
	mu   sync.Mutex
	last []string
	n    int
}

func (n *names) set(v []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = v
	n.n++
}

func (n *names) get() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

func putTyping(t *testing.T, store docstore.Store, user string, at time.Time) {
	t.Helper()
	data, err := docstore.Encode(models.TypingStatus{UserName: user, GroupID: "g1", LastTyping: at})
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), typingPath("g1", user), data))
}

func TestWatchTypingFiltersSelfAndStale(t *testing.T) {
	store := newCountingStore(t)
	now := time.Now()
	putTyping(t, store, "Ana", now)
	putTyping(t, store, "Budi", now)
	putTyping(t, store, "Citra", now.Add(-10*time.Second))

	got := &names{}
	unsub, err := WatchTyping(context.Background(), store, "g1", "Ana", 3*time.Second, got.set)
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Budi"}, got.get())
}

func TestWatchTypingExpiresWithoutNewSnapshots(t *testing.T) {
	store := newCountingStore(t)
	ttl := 100 * time.Millisecond
	putTyping(t, store, "Budi", time.Now())

	got := &names{}
	unsub, err := WatchTyping(context.Background(), store, "g1", "Ana", ttl, got.set)
	require.NoError(t, err)
	defer unsub()

	require.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, 5*time.Millisecond)
	// the record is never deleted, yet it must age out
	require.Eventually(t, func() bool {
		v := got.get()
		return v != nil && len(v) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestWatchTypingStopsAfterUnsubscribe(t *testing.T) {
	store := newCountingStore(t)
	got := &names{}
	unsub, err := WatchTyping(context.Background(), store, "g1", "Ana", time.Second, got.set)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return got.get() != nil }, time.Second, 5*time.Millisecond)

	unsub()
	got.mu.Lock()
	before := got.n
	got.mu.Unlock()

	putTyping(t, store, "Budi", time.Now())
	time.Sleep(50 * time.Millisecond)
	got.mu.Lock()
	defer got.mu.Unlock()
	assert.Equal(t, before, got.n)
}
