package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Roulette/internal/app/apptest"
	"github.com/dkeye/Roulette/internal/core"
)

func TestBroadcaster_SendsFullListToEveryone(t *testing.T) {
	m := apptest.Metrics(t)
	reg := NewRegistry(m)
	b := NewBroadcaster(reg, NewSender(SimplePolicy{}, m), m)

	conns := map[string]*apptest.Conn{"a": apptest.NewConn(), "b": apptest.NewConn(), "c": apptest.NewConn()}
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, reg.Register(domainID(id), conns[id]))
	}

	assert.Equal(t, 3, b.Broadcast())

	for id, c := range conns {
		frames := c.Frames()
		require.Len(t, frames, 1, id)
		assert.JSONEq(t, `{"type":"user-list","users":["a","b","c"]}`, string(frames[0]))
	}
}

func TestBroadcaster_EmptyRegistry(t *testing.T) {
	m := apptest.Metrics(t)
	b := NewBroadcaster(NewRegistry(m), NewSender(SimplePolicy{}, m), m)

	assert.Equal(t, 0, b.Broadcast())
}

func TestBroadcaster_SkipsDeregistered(t *testing.T) {
	m := apptest.Metrics(t)
	reg := NewRegistry(m)
	b := NewBroadcaster(reg, NewSender(SimplePolicy{}, m), m)

	a, gone := apptest.NewConn(), apptest.NewConn()
	require.NoError(t, reg.Register("a", a))
	require.NoError(t, reg.Register("gone", gone))
	reg.Deregister("gone")

	assert.Equal(t, 1, b.Broadcast())
	assert.Empty(t, gone.Frames())

	msgs := a.OfType(t, core.KindPresenceUpdate)
	require.Len(t, msgs, 1)
	assert.Equal(t, []any{"a"}, msgs[0]["users"])
}
