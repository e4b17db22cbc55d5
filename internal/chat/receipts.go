package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/metrics"
	"tripmate/server/internal/models"
)

// Receipts marks visible messages as read by one user after the visible set
// has been stable for the configured delay. Every message is attempted at most
// once per session; failures are logged and dropped.
type Receipts struct {
	store   docstore.Store
	groupID string
	user    string
	delay   time.Duration

	mu      sync.Mutex
	marked  map[string]bool
	pending []string
	timer   *time.Timer
	gen     uint64
	closed  bool
	flushWG sync.WaitGroup
}

func NewReceipts(store docstore.Store, groupID, user string, delay time.Duration) *Receipts {
	return &Receipts{
		store:   store,
		groupID: groupID,
		user:    user,
		delay:   delay,
		marked:  make(map[string]bool),
	}
}

// UnreadBy returns the ids of messages written by someone else that do not list user as a reader.
func UnreadBy(msgs []models.Message, user string) []string {
	var ids []string
	for i := range msgs {
		m := &msgs[i]
		if m.Author == user || m.IsReadBy(user) {
			continue
		}
		ids = append(ids, m.ID)
	}
	return ids
}

// SetVisible replaces the visible set and restarts the debounce.
func (r *Receipts) SetVisible(msgs []models.Message) {
	candidates := UnreadBy(msgs, r.user)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	pending := candidates[:0:0]
	for _, id := range candidates {
		if !r.marked[id] {
			pending = append(pending, id)
		}
	}
	r.pending = pending

	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	if len(pending) == 0 {
		return
	}
	gen := r.gen
	r.timer = time.AfterFunc(r.delay, func() { r.flush(gen) })
}

func (r *Receipts) flush(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	ids := make([]string, 0, len(r.pending))
	for _, id := range r.pending {
		if !r.marked[id] {
			r.marked[id] = true
			ids = append(ids, id)
		}
	}
	r.pending = nil
	r.flushWG.Add(1)
	r.mu.Unlock()
	defer r.flushWG.Done()

	for _, id := range ids {
		r.mark(id)
	}
}

func (r *Receipts) mark(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := r.store.Update(ctx, models.GroupDoc(r.groupID, models.MessagesCollection, id), map[string]any{
		"readBy": docstore.ArrayUnion(r.user),
	})
	metrics.ReadReceipts.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		slog.Warn("mark as read failed", "group_id", r.groupID, "message_id", id, "user", r.user, "error", err)
	}
}

// Marked reports whether id was already marked in this session.
func (r *Receipts) Marked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marked[id]
}

// Close cancels a pending debounce and waits for an in-flight flush.
func (r *Receipts) Close() {
	r.mu.Lock()
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	r.gen++
	r.mu.Unlock()
	r.flushWG.Wait()
}
