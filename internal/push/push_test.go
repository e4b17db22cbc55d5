package push

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopDegrades(t *testing.T) {
	ctx := context.Background()
	var g Gateway = Noop{}

	assert.Equal(t, Denied, g.RequestPermission(ctx, "ana"))
	require.NoError(t, g.RegisterToken(ctx, "ana", "tok"))
	token, err := g.Token(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, token)
	g.Publish(ctx, Notification{GroupID: "g1"})
	g.OnForegroundMessage(func(Notification) {})()
	assert.NoError(t, g.Close())
}

func TestMemoryRegistryLatest(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	token, err := r.Latest(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, r.Add(ctx, "ana", "a"))
	require.NoError(t, r.Add(ctx, "ana", "b"))
	require.NoError(t, r.Add(ctx, "ana", "a"))

	token, err = r.Latest(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, "a", token)
}

func TestListenersDispatchAndUnsubscribe(t *testing.T) {
	var l listeners
	var calls atomic.Int32

	unsub := l.add(func(n Notification) { calls.Add(1) })
	l.add(func(n Notification) { calls.Add(10) })

	l.dispatch(Notification{GroupID: "g1"})
	assert.EqualValues(t, 11, calls.Load())

	unsub()
	unsub()
	l.dispatch(Notification{GroupID: "g1"})
	assert.EqualValues(t, 21, calls.Load())
}
