package chat

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/metrics"
	"tripmate/server/internal/models"
)

// writeTimeout bounds best-effort writes issued from timers.
const writeTimeout = 5 * time.Second

func typingCollection(groupID string) string {
	return models.GroupCollection(groupID, models.TypingCollection)
}

func typingPath(groupID, user string) string {
	return docstore.Join(typingCollection(groupID), url.PathEscape(user))
}

// Typing publishes one user's typing status: debounced writes, automatic
// clearing after the TTL, and immediate deletion on Stop.
type Typing struct {
	store    docstore.Store
	groupID  string
	user     string
	debounce time.Duration
	ttl      time.Duration
	now      func() time.Time

	mu            sync.Mutex
	debounceTimer *time.Timer
	clearTimer    *time.Timer
	debounceGen   uint64
	clearGen      uint64
	stopGen       uint64
	closed        bool

	// ioMu orders store writes so a delete never lands before an in-flight set.
	ioMu sync.Mutex
}

func NewTyping(store docstore.Store, groupID, user string, debounce, ttl time.Duration) *Typing {
	return &Typing{
		store:    store,
		groupID:  groupID,
		user:     user,
		debounce: debounce,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Start restarts the debounce; the record is written once the user pauses.
func (t *Typing) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.debounceTimer != nil {
		t.debounceTimer.Stop()
	}
	t.debounceGen++
	gen := t.debounceGen
	t.debounceTimer = time.AfterFunc(t.debounce, func() { t.write(gen) })
}

func (t *Typing) write(gen uint64) {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	t.mu.Lock()
	if t.closed || gen != t.debounceGen {
		t.mu.Unlock()
		return
	}
	stop := t.stopGen
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	data, err := docstore.Encode(models.TypingStatus{
		UserName:   t.user,
		GroupID:    t.groupID,
		LastTyping: t.now().UTC(),
	})
	if err == nil {
		err = t.store.Set(ctx, typingPath(t.groupID, t.user), data)
	}
	metrics.TypingWrites.WithLabelValues("set", metrics.Result(err)).Inc()
	if err != nil {
		slog.Warn("typing status write failed", "group_id", t.groupID, "user", t.user, "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || stop != t.stopGen {
		// a stop is waiting on ioMu and deletes the record next
		return
	}
	if t.clearTimer != nil {
		t.clearTimer.Stop()
	}
	t.clearGen++
	clearGen := t.clearGen
	t.clearTimer = time.AfterFunc(t.ttl, func() { t.expire(clearGen) })
}

func (t *Typing) expire(gen uint64) {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()

	t.mu.Lock()
	if t.closed || gen != t.clearGen {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.deleteRecord()
}

// Stop cancels pending timers and deletes the record.
func (t *Typing) Stop() {
	t.mu.Lock()
	t.cancelLocked()
	t.mu.Unlock()
	t.remove()
}

// Close stops the indicator for good.
func (t *Typing) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.cancelLocked()
	t.mu.Unlock()
	t.remove()
}

func (t *Typing) cancelLocked() {
	if t.debounceTimer != nil {
		t.debounceTimer.Stop()
	}
	if t.clearTimer != nil {
		t.clearTimer.Stop()
	}
	t.debounceGen++
	t.clearGen++
	t.stopGen++
}

func (t *Typing) remove() {
	t.ioMu.Lock()
	defer t.ioMu.Unlock()
	t.deleteRecord()
}

func (t *Typing) deleteRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := t.store.Delete(ctx, typingPath(t.groupID, t.user))
	metrics.TypingWrites.WithLabelValues("delete", metrics.Result(err)).Inc()
	if err != nil {
		slog.Warn("typing status clear failed", "group_id", t.groupID, "user", t.user, "error", err)
	}
}

// typingWatch turns typing records into the list of other users currently typing.
type typingWatch struct {
	self string
	ttl  time.Duration
	now  func() time.Time
	fn   func([]string)

	mu      sync.Mutex
	records []models.TypingStatus
	timer   *time.Timer
	last    []string
	sent    bool
	closed  bool
}

// WatchTyping streams the names of other users typing in the group. A record
// counts while it is younger than ttl; the list is re-evaluated when the next
// record expires even if nothing else changes.
func WatchTyping(ctx context.Context, store docstore.Store, groupID, self string, ttl time.Duration, fn func([]string)) (docstore.Unsubscribe, error) {
	return watchTyping(ctx, store, groupID, self, ttl, time.Now, fn)
}

func watchTyping(ctx context.Context, store docstore.Store, groupID, self string, ttl time.Duration, now func() time.Time, fn func([]string)) (docstore.Unsubscribe, error) {
	w := &typingWatch{self: self, ttl: ttl, now: now, fn: fn}
	unsub, err := store.Subscribe(ctx, docstore.Query{Collection: typingCollection(groupID)}, w.onSnapshot)
	if err != nil {
		return nil, err
	}
	metrics.Subscriptions.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			w.mu.Lock()
			w.closed = true
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			metrics.Subscriptions.Dec()
		})
	}, nil
}

func (w *typingWatch) onSnapshot(docs []*docstore.Document) {
	records := make([]models.TypingStatus, 0, len(docs))
	for _, d := range docs {
		var s models.TypingStatus
		if err := docstore.Decode(d, &s); err != nil {
			continue
		}
		records = append(records, s)
	}
	w.mu.Lock()
	w.records = records
	w.mu.Unlock()
	w.evaluate()
}

func (w *typingWatch) evaluate() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	now := w.now()
	var (
		names    []string
		earliest time.Duration = -1
	)
	for _, r := range w.records {
		if r.UserName == w.self {
			continue
		}
		age := now.Sub(r.LastTyping)
		if age >= w.ttl {
			continue
		}
		names = append(names, r.UserName)
		if left := w.ttl - age; earliest < 0 || left < earliest {
			earliest = left
		}
	}
	sort.Strings(names)
	if names == nil {
		names = []string{}
	}

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if earliest >= 0 {
		w.timer = time.AfterFunc(earliest+time.Millisecond, w.evaluate)
	}

	changed := !w.sent || !equalStrings(names, w.last)
	w.last, w.sent = names, true
	if changed {
		// delivered under the lock so nothing reaches fn after unsubscribe
		w.fn(names)
	}
	w.mu.Unlock()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
