package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripmate/server/internal/models"
)

func loadMessages(t *testing.T, store *countingStore, ids []string) []models.Message {
	t.Helper()
	msgs := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, getMessage(t, store, "g1", id))
	}
	return msgs
}

func TestUnreadBy(t *testing.T) {
	msgs := []models.Message{
		{ID: "1", Author: "Ana", ReadBy: []string{"Ana"}},
		{ID: "2", Author: "Budi", ReadBy: []string{"Budi"}},
		{ID: "3", Author: "Budi", ReadBy: []string{"Budi", "Ana"}},
	}
	assert.Equal(t, []string{"2"}, UnreadBy(msgs, "Ana"))
}

func TestReceiptsMarkVisibleMessages(t *testing.T) {
	store := newCountingStore(t)
	ids := seedMessages(t, store, "g1", "m1", "m2")
	r := NewReceipts(store, "g1", "Ana", 20*time.Millisecond)
	defer r.Close()

	visible := loadMessages(t, store, ids)
	r.SetVisible(visible)

	require.Eventually(t, func() bool { return store.updates.Load() == 2 }, time.Second, 5*time.Millisecond)
	for _, m := range loadMessages(t, store, ids) {
		assert.ElementsMatch(t, []string{"someone", "Ana"}, m.ReadBy)
	}

	// the stale snapshot still lacks Ana, but the session remembers
	r.SetVisible(visible)
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 2, store.updates.Load())
	assert.True(t, r.Marked(ids[0]))
}

func TestReceiptsDebounceResets(t *testing.T) {
	store := newCountingStore(t)
	ids := seedMessages(t, store, "g1", "m1", "m2", "m3")
	r := NewReceipts(store, "g1", "Ana", 40*time.Millisecond)
	defer r.Close()

	msgs := loadMessages(t, store, ids)
	r.SetVisible(msgs[:1])
	time.Sleep(15 * time.Millisecond)
	r.SetVisible(msgs[:2])
	time.Sleep(15 * time.Millisecond)
	r.SetVisible(msgs[1:])

	assert.EqualValues(t, 0, store.updates.Load())
	require.Eventually(t, func() bool { return store.updates.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, r.Marked(ids[0]), "no longer visible when the debounce fired")
}

func TestReceiptsSkipOwnMessages(t *testing.T) {
	store := newCountingStore(t)
	ids := seedMessages(t, store, "g1", "m1")
	r := NewReceipts(store, "g1", "someone", 5*time.Millisecond)
	defer r.Close()

	r.SetVisible(loadMessages(t, store, ids))
	time.Sleep(40 * time.Millisecond)
	assert.EqualValues(t, 0, store.updates.Load())
}

func TestReceiptsSwallowFailures(t *testing.T) {
	store := newCountingStore(t)
	store.failUpdates.Store(true)
	ids := seedMessages(t, store, "g1", "m1")
	r := NewReceipts(store, "g1", "Ana", 5*time.Millisecond)
	defer r.Close()

	msgs := loadMessages(t, store, ids)
	r.SetVisible(msgs)
	require.Eventually(t, func() bool { return store.updates.Load() == 1 }, time.Second, 5*time.Millisecond)

	// no retry
	r.SetVisible(msgs)
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 1, store.updates.Load())
}

func TestReceiptsCloseCancelsPending(t *testing.T) {
	store := newCountingStore(t)
	ids := seedMessages(t, store, "g1", "m1")
	r := NewReceipts(store, "g1", "Ana", 30*time.Millisecond)

	r.SetVisible(loadMessages(t, store, ids))
	r.Close()
	time.Sleep(60 * time.Millisecond)
	assert.EqualValues(t, 0, store.updates.Load())
}
