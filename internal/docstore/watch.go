package docstore

import (
	"context"
	"sync"
	"sync/atomic"
)

// watcher re-evaluates one subscription whenever its collection changes.
// Wake-ups coalesce: a burst of writes costs at most one extra evaluation.
type watcher struct {
	collection string
	wake       chan struct{}
	cancel     context.CancelFunc
	closed     atomic.Bool
	once       sync.Once
}

// hub fans change notifications out to watchers keyed by collection path.
type hub struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
	wg       sync.WaitGroup
}

func newHub() *hub {
	return &hub{watchers: make(map[string]map[*watcher]struct{})}
}

// watch starts a watcher goroutine that calls eval once immediately and again after
// every notify for collection. eval receives an alive func it must consult right
// before delivering to user code.
func (h *hub) watch(ctx context.Context, collection string, eval func(ctx context.Context, alive func() bool)) Unsubscribe {
	ctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		collection: collection,
		wake:       make(chan struct{}, 1),
		cancel:     cancel,
	}

	h.mu.Lock()
	set, ok := h.watchers[collection]
	if !ok {
		set = make(map[*watcher]struct{})
		h.watchers[collection] = set
	}
	set[w] = struct{}{}
	h.mu.Unlock()

	alive := func() bool { return !w.closed.Load() && ctx.Err() == nil }

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.remove(w)
		eval(ctx, alive)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
				if !alive() {
					return
				}
				eval(ctx, alive)
			}
		}
	}()

	return func() {
		w.once.Do(func() {
			w.closed.Store(true)
			cancel()
			h.remove(w)
		})
	}
}

func (h *hub) remove(w *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.watchers[w.collection]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(h.watchers, w.collection)
		}
	}
}

func (h *hub) notify(collection string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers[collection] {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
}

// closeAll stops every watcher and waits for their goroutines.
func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*watcher
	for _, set := range h.watchers {
		for w := range set {
			all = append(all, w)
		}
	}
	h.mu.Unlock()
	for _, w := range all {
		w.closed.Store(true)
		w.cancel()
	}
	h.wg.Wait()
}

func (h *hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.watchers {
		n += len(set)
	}
	return n
}
