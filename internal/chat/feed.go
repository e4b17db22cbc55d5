package chat

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/metrics"
	"tripmate/server/internal/models"
)

// Window is the loaded, ascending slice of a conversation.
type Window struct {
	Messages    []models.Message `json:"messages"`
	HasMore     bool             `json:"hasMore"`
	LoadingMore bool             `json:"loadingMore"`
	Loaded      bool             `json:"loaded"`
}

type entry struct {
	doc *docstore.Document
	msg models.Message
}

// before orders documents by (creation time, id).
func before(a, b *docstore.Document) bool {
	if c := a.CreateTime.Compare(b.CreateTime); c != 0 {
		return c < 0
	}
	return strings.Compare(a.ID, b.ID) < 0
}

// Feed keeps a group's conversation live from an anchor message onward and
// lets callers backfill older pages. Every backfill moves the anchor back and
// replaces the subscription, so edits and deletes reach every loaded message.
type Feed struct {
	store    docstore.Store
	groupID  string
	pageSize int
	onChange func(Window)

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]entry
	anchor  *docstore.Document
	active  *rangeSub
	hasMore bool
	loaded  bool
	loading bool
	closed  bool
	counted bool

	// emitMu keeps onChange calls serialized and in state order.
	emitMu sync.Mutex
}

// rangeSub is one generation of the live range subscription.
type rangeSub struct {
	unsub docstore.Unsubscribe
	seen  bool
}

// NewFeed prepares a feed. onChange must not call back into the feed synchronously.
func NewFeed(store docstore.Store, groupID string, pageSize int, onChange func(Window)) *Feed {
	return &Feed{
		store:    store,
		groupID:  groupID,
		pageSize: pageSize,
		onChange: onChange,
		entries:  make(map[string]entry),
	}
}

func (f *Feed) collection() string {
	return models.GroupCollection(f.groupID, models.MessagesCollection)
}

// Start loads the newest page and subscribes from its oldest message onward.
// ctx bounds the subscriptions for the feed's whole life.
func (f *Feed) Start(ctx context.Context) error {
	docs, err := f.store.Query(ctx, docstore.Query{
		Collection: f.collection(),
		Direction:  docstore.Desc,
		Limit:      f.pageSize,
	})
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.ctx = ctx
	f.hasMore = len(docs) == f.pageSize
	if len(docs) > 0 {
		f.anchor = docs[len(docs)-1]
	}
	anchor := f.anchor
	f.mu.Unlock()

	if err := f.subscribe(anchor); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.counted = true
		metrics.Subscriptions.Inc()
	}
	return nil
}

// subscribe replaces the live range with one starting at anchor, or covering
// the whole conversation when anchor is nil. Snapshots from the replaced
// subscription are ignored from here on.
func (f *Feed) subscribe(anchor *docstore.Document) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	ctx := f.ctx
	prev := f.active
	sub := &rangeSub{}
	f.active = sub
	f.mu.Unlock()

	unsub, err := f.store.Subscribe(ctx, docstore.Query{
		Collection: f.collection(),
		StartAt:    anchor,
	}, func(docs []*docstore.Document) { f.onRange(sub, docs) })

	f.mu.Lock()
	if err != nil {
		if f.active == sub {
			f.active = prev
		}
		f.mu.Unlock()
		return err
	}
	sub.unsub = unsub
	closed := f.closed
	f.mu.Unlock()

	if closed {
		unsub()
	}
	if prev != nil && prev.unsub != nil {
		prev.unsub()
	}
	return nil
}

func (f *Feed) onRange(sub *rangeSub, docs []*docstore.Document) {
	f.mu.Lock()
	if f.closed || f.active != sub {
		f.mu.Unlock()
		return
	}

	next := make(map[string]entry, len(docs))
	for _, d := range docs {
		var m models.Message
		if err := docstore.Decode(d, &m); err != nil {
			slog.Warn("skipping undecodable message", "path", d.Path, "error", err)
			continue
		}
		next[d.ID] = entry{doc: d, msg: m}
	}
	f.entries = next
	sub.seen = true
	f.loaded = true
	f.mu.Unlock()

	f.publish()
}

// LoadMore fetches the page preceding the oldest loaded message and extends
// the live range over it. It is a no-op while a fetch is in flight, once the
// start of the conversation was reached, or before the first snapshot arrived.
func (f *Feed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if f.closed || f.loading || !f.hasMore || !f.loaded || f.anchor == nil {
		f.mu.Unlock()
		return nil
	}
	cursor := f.anchor
	f.loading = true
	f.mu.Unlock()
	f.publish()

	docs, err := f.store.Query(ctx, docstore.Query{
		Collection: f.collection(),
		Direction:  docstore.Desc,
		StartAfter: cursor,
		Limit:      f.pageSize,
	})
	if err == nil && len(docs) > 0 {
		err = f.subscribe(docs[len(docs)-1])
	}

	f.mu.Lock()
	f.loading = false
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	if err == nil {
		f.hasMore = len(docs) == f.pageSize
		if len(docs) > 0 {
			f.anchor = docs[len(docs)-1]
		}
		// show the page right away; the new range's snapshot takes over
		if f.active != nil && !f.active.seen {
			for _, d := range docs {
				var m models.Message
				if derr := docstore.Decode(d, &m); derr != nil {
					slog.Warn("skipping undecodable message", "path", d.Path, "error", derr)
					continue
				}
				f.entries[d.ID] = entry{doc: d, msg: m}
			}
		}
	}
	f.mu.Unlock()

	f.publish()
	return err
}

// Window returns the current window.
func (f *Feed) Window() Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windowLocked()
}

// Close releases the subscription; later results are discarded.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	var unsub docstore.Unsubscribe
	if f.active != nil {
		unsub = f.active.unsub
	}
	counted := f.counted
	f.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if counted {
		metrics.Subscriptions.Dec()
	}
}

func (f *Feed) publish() {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	w := f.windowLocked()
	f.mu.Unlock()

	if f.onChange != nil {
		f.onChange(w)
	}
}

func (f *Feed) windowLocked() Window {
	list := make([]entry, 0, len(f.entries))
	for _, e := range f.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return before(list[i].doc, list[j].doc) })

	msgs := make([]models.Message, len(list))
	for i, e := range list {
		msgs[i] = e.msg
	}
	return Window{
		Messages:    msgs,
		HasMore:     f.hasMore,
		LoadingMore: f.loading,
		Loaded:      f.loaded,
	}
}

// Page is a one-shot fetch of up to limit messages older than beforeID
// (or the newest ones when beforeID is empty), returned oldest first.
func Page(ctx context.Context, store docstore.Store, groupID, beforeID string, limit int) ([]models.Message, bool, error) {
	q := docstore.Query{
		Collection: models.GroupCollection(groupID, models.MessagesCollection),
		Direction:  docstore.Desc,
		Limit:      limit,
	}
	if beforeID != "" {
		cursor, err := store.Get(ctx, models.GroupDoc(groupID, models.MessagesCollection, beforeID))
		if err != nil {
			return nil, false, err
		}
		q.StartAfter = cursor
	}

	docs, err := store.Query(ctx, q)
	if err != nil {
		return nil, false, err
	}
	msgs, err := docstore.DecodeAll[models.Message](docs)
	if err != nil {
		return nil, false, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, len(docs) == limit, nil
}
