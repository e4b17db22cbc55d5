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

type windows struct {
	mu   sync.Mutex
	last Window
	n    int
}

func (w *windows) record(win Window) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = win
	w.n++
}

func (w *windows) get() Window {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func startFeed(t *testing.T, store docstore.Store, pageSize int) (*Feed, *windows) {
	t.Helper()
	w := &windows{}
	f := NewFeed(store, "g1", pageSize, w.record)
	require.NoError(t, f.Start(context.Background()))
	t.Cleanup(f.Close)
	require.Eventually(t, func() bool { return w.get().Loaded }, time.Second, 5*time.Millisecond)
	return f, w
}

func TestFeedPagination(t *testing.T) {
	store := newCountingStore(t)
	seedMessages(t, store, "g1", "m1", "m2", "m3", "m4", "m5", "m6", "m7")
	ctx := context.Background()

	f, w := startFeed(t, store, 3)
	assert.Equal(t, []string{"m5", "m6", "m7"}, contents(w.get().Messages))
	assert.True(t, w.get().HasMore)

	require.NoError(t, f.LoadMore(ctx))
	assert.Equal(t, []string{"m2", "m3", "m4", "m5", "m6", "m7"}, contents(f.Window().Messages))
	assert.True(t, f.Window().HasMore)

	require.NoError(t, f.LoadMore(ctx))
	win := f.Window()
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7"}, contents(win.Messages))
	assert.False(t, win.HasMore, "short page ends pagination")
	assert.False(t, win.LoadingMore)

	require.NoError(t, f.LoadMore(ctx))
	assert.Len(t, f.Window().Messages, 7)
}

func TestFeedWindowIsAscending(t *testing.T) {
	store := newCountingStore(t)
	seedMessages(t, store, "g1", "a", "b", "c", "d", "e", "f", "g", "h", "i", "j")
	f, _ := startFeed(t, store, 4)

	prev := 0
	for f.Window().HasMore {
		require.NoError(t, f.LoadMore(context.Background()))
		msgs := f.Window().Messages
		require.Greater(t, len(msgs), prev)
		prev = len(msgs)
		for i := 1; i < len(msgs); i++ {
			assert.False(t, msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt))
		}
	}
	assert.Equal(t, 10, prev)
}

func TestFeedExactMultipleNeedsOneEmptyPage(t *testing.T) {
	store := newCountingStore(t)
	seedMessages(t, store, "g1", "m1", "m2", "m3", "m4")
	f, _ := startFeed(t, store, 2)

	require.NoError(t, f.LoadMore(context.Background()))
	assert.True(t, f.Window().HasMore)
	require.NoError(t, f.LoadMore(context.Background()))
	assert.False(t, f.Window().HasMore)
	assert.Len(t, f.Window().Messages, 4)
}

func TestFeedKeepsOlderMessagesWhenNewOnesArrive(t *testing.T) {
	store := newCountingStore(t)
	seedMessages(t, store, "g1", "m1", "m2", "m3")
	_, w := startFeed(t, store, 3)

	seedMessages(t, store, "g1", "m4", "m5")
	require.Eventually(t, func() bool { return len(w.get().Messages) == 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, contents(w.get().Messages))
}

func TestFeedDropsDeletedMessages(t *testing.T) {
	store := newCountingStore(t)
	ids := seedMessages(t, store, "g1", "m1", "m2", "m3")
	_, w := startFeed(t, store, 3)

	require.NoError(t, store.Delete(context.Background(), models.GroupDoc("g1", models.MessagesCollection, ids[1])))
	require.Eventually(t, func() bool { return len(w.get().Messages) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m1", "m3"}, contents(w.get().Messages))
}

func TestFeedBackfilledMessagesStayLive(t *testing.T) {
	store := newCountingStore(t)
	ids := seedMessages(t, store, "g1", "m1", "m2", "m3", "m4")
	ctx := context.Background()
	f, w := startFeed(t, store, 2)

	require.NoError(t, f.LoadMore(ctx))
	require.Equal(t, []string{"m1", "m2", "m3", "m4"}, contents(f.Window().Messages))

	require.NoError(t, store.Delete(ctx, models.GroupDoc("g1", models.MessagesCollection, ids[0])))
	require.NoError(t, store.Update(ctx, models.GroupDoc("g1", models.MessagesCollection, ids[1]), map[string]any{"content": "m2-edited"}))
	seedMessages(t, store, "g1", "m5")

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"m2-edited", "m3", "m4", "m5"}, contents(w.get().Messages))
	}, time.Second, 5*time.Millisecond)
}

func TestFeedWindowHasNoDuplicates(t *testing.T) {
	store := newCountingStore(t)
	seedMessages(t, store, "g1", "m1", "m2", "m3", "m4", "m5")
	f, w := startFeed(t, store, 2)

	require.NoError(t, f.LoadMore(context.Background()))
	seedMessages(t, store, "g1", "m6")
	require.Eventually(t, func() bool { return len(w.get().Messages) == 5 }, time.Second, 5*time.Millisecond)

	seen := map[string]bool{}
	for _, m := range w.get().Messages {
		assert.False(t, seen[m.ID], "duplicate %s", m.ID)
		seen[m.ID] = true
	}
	assert.Equal(t, []string{"m2", "m3", "m4", "m5", "m6"}, contents(w.get().Messages))
}

func TestFeedCloseReleasesSubscriptions(t *testing.T) {
	mem := docstore.NewMemoryStore()
	t.Cleanup(func() { mem.Close() })
	seedMessages(t, mem, "g1", "m1", "m2", "m3")
	f, _ := startFeed(t, mem, 1)

	require.NoError(t, f.LoadMore(context.Background()))
	require.NoError(t, f.LoadMore(context.Background()))
	require.Eventually(t, func() bool { return mem.Watchers() == 1 }, time.Second, 5*time.Millisecond)

	f.Close()
	require.Eventually(t, func() bool { return mem.Watchers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestFeedEditsFlowThrough(t *testing.T) {
	store := newCountingStore(t)
	ids := seedMessages(t, store, "g1", "m1")
	_, w := startFeed(t, store, 3)

	require.NoError(t, store.Update(context.Background(), models.GroupDoc("g1", models.MessagesCollection, ids[0]), map[string]any{"content": "edited"}))
	require.Eventually(t, func() bool {
		msgs := w.get().Messages
		return len(msgs) == 1 && msgs[0].Content == "edited"
	}, time.Second, 5*time.Millisecond)
}

func TestLoadMoreBeforeFirstSnapshotIsNoop(t *testing.T) {
	store := newCountingStore(t)
	seedMessages(t, store, "g1", "m1", "m2")
	f := NewFeed(store, "g1", 1, nil)

	require.NoError(t, f.LoadMore(context.Background()))
	assert.Empty(t, f.Window().Messages)
	assert.False(t, f.Window().Loaded)
}

func TestEmptyConversation(t *testing.T) {
	store := newCountingStore(t)
	f, w := startFeed(t, store, 3)

	assert.False(t, w.get().HasMore)
	require.NoError(t, f.LoadMore(context.Background()))
	assert.Empty(t, f.Window().Messages)
}

func TestFeedNoDeliveryAfterClose(t *testing.T) {
	store := newCountingStore(t)
	f, w := startFeed(t, store, 3)
	f.Close()

	w.mu.Lock()
	before := w.n
	w.mu.Unlock()

	seedMessages(t, store, "g1", "late")
	time.Sleep(50 * time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, before, w.n)
}

func TestPage(t *testing.T) {
	store := newCountingStore(t)
	ids := seedMessages(t, store, "g1", "m1", "m2", "m3", "m4", "m5")
	ctx := context.Background()

	msgs, more, err := Page(ctx, store, "g1", "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m5"}, contents(msgs))
	assert.True(t, more)

	msgs, more, err = Page(ctx, store, "g1", ids[3], 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, contents(msgs))
	assert.False(t, more)

	_, _, err = Page(ctx, store, "g1", "missing", 5)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
