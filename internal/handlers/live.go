package handlers

import (
	"context"
	"sync"

	"tripmate/server/internal/docstore"
	"tripmate/server/internal/identity"
	"tripmate/server/internal/metrics"
	"tripmate/server/internal/models"
	ws "tripmate/server/internal/websocket"
)

// liveView streams a group's planning collections to one connection
type liveView struct {
	out *ws.Client

	mu     sync.Mutex
	unsubs []docstore.Unsubscribe
	closed bool
}

func (h *Handler) startLive(ctx context.Context, groupID string, user identity.Identity, out *ws.Client) (*liveView, error) {
	v := &liveView{out: out}
	emit := func(t ws.EventType) func(any) {
		return func(payload any) { out.SendMessage(ws.NewMessage(t, payload)) }
	}

	subscribe := []func() (docstore.Unsubscribe, error){
		func() (docstore.Unsubscribe, error) {
			return h.groups.Subscribe(ctx, groupID, func(g *models.Group) { emit(ws.EventGroup)(g) })
		},
		func() (docstore.Unsubscribe, error) {
			return h.schedules.Subscribe(ctx, groupID, func(items []models.Schedule) { emit(ws.EventSchedules)(items) })
		},
		func() (docstore.Unsubscribe, error) {
			return h.announcements.Subscribe(ctx, groupID, func(items []models.Announcement) { emit(ws.EventAnnouncements)(items) })
		},
		func() (docstore.Unsubscribe, error) {
			return h.votes.Subscribe(ctx, groupID, func(items []models.Vote) { emit(ws.EventVotes)(voteViews(items, user.Name)) })
		},
		func() (docstore.Unsubscribe, error) {
			return h.menus.Subscribe(ctx, groupID, "", func(items []models.Menu) { emit(ws.EventMenus)(items) })
		},
	}
	for _, sub := range subscribe {
		unsub, err := sub()
		if err != nil {
			v.Close()
			return nil, err
		}
		v.add(unsub)
	}
	return v, nil
}

func (v *liveView) add(unsub docstore.Unsubscribe) {
	v.mu.Lock()
	if !v.closed {
		v.unsubs = append(v.unsubs, unsub)
		metrics.Subscriptions.Inc()
		v.mu.Unlock()
		return
	}
	v.mu.Unlock()
	unsub()
}

// HandleMessage rejects inbound events; writes go through the REST routes
func (v *liveView) HandleMessage(_ context.Context, msg ws.IncomingMessage) {
	v.out.SendMessage(ws.NewMessage(ws.EventError, ws.ErrorPayload{
		Code:    "read_only",
		Message: "This connection only streams updates",
	}))
}

func (v *liveView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	unsubs := v.unsubs
	v.unsubs = nil
	v.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
		metrics.Subscriptions.Dec()
	}
}
