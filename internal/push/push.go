// Package push delivers best-effort notifications. Absence of a transport
// degrades to Noop; no method of a Gateway is allowed to fail its caller's flow.
package push

import (
	"context"
	"sync"
	"time"
)

// Permission is the outcome of a permission request
type Permission string

const (
	Granted Permission = "granted"
	Denied  Permission = "denied"
)

// Notification is a foreground payload for the members of a group
type Notification struct {
	GroupID   string    `json:"groupId"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// Gateway is the Push Gateway
type Gateway interface {
	RequestPermission(ctx context.Context, user string) Permission
	RegisterToken(ctx context.Context, user, token string) error
	// Token returns the user's registered token or "" when there is none.
	Token(ctx context.Context, user string) (string, error)
	Publish(ctx context.Context, n Notification)
	OnForegroundMessage(fn func(Notification)) (unsubscribe func())
	Close() error
}

// listeners is a registry of foreground callbacks
type listeners struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Notification)
}

func (l *listeners) add(fn func(Notification)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(Notification))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners) dispatch(n Notification) {
	l.mu.RLock()
	fns := make([]func(Notification), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(n)
	}
}

// Noop is the gateway used when push is not configured
type Noop struct{}

func (Noop) RequestPermission(context.Context, string) Permission { return Denied }
func (Noop) RegisterToken(context.Context, string, string) error { return nil }
func (Noop) Token(context.Context, string) (string, error) { return "", nil }
func (Noop) Publish(context.Context, Notification) {}
func (Noop) OnForegroundMessage(func(Notification)) (unsubscribe func()) { return func() {} }
func (Noop) Close() error { return nil }
