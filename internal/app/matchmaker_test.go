package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Roulette/internal/app/apptest"
	"github.com/dkeye/Roulette/internal/domain"
)

func TestMatchmaker_EmptyRegistry(t *testing.T) {
	m := NewMatchmaker(NewRegistry(apptest.Metrics(t)))

	_, ok := m.RequestMatch("a")
	assert.False(t, ok)
}

func TestMatchmaker_SelfOnly(t *testing.T) {
	reg := NewRegistry(apptest.Metrics(t))
	require.NoError(t, reg.Register("a", apptest.NewConn()))
	m := NewMatchmaker(reg)

	_, ok := m.RequestMatch("a")
	assert.False(t, ok)
}

func TestMatchmaker_NeverReturnsRequester(t *testing.T) {
	reg := NewRegistry(apptest.Metrics(t))
	for _, id := range []domain.UserID{"a", "b", "c", "d"} {
		require.NoError(t, reg.Register(id, apptest.NewConn()))
	}
	m := NewMatchmaker(reg)

	seen := map[domain.UserID]bool{}
	for i := 0; i < 500; i++ {
		got, ok := m.RequestMatch("b")
		require.True(t, ok)
		require.NotEqual(t, domain.UserID("b"), got)
		seen[got] = true
	}
	assert.Len(t, seen, 3, "every other identity should eventually be drawn")
}

func TestMatchmaker_DeterministicPick(t *testing.T) {
	reg := NewRegistry(apptest.Metrics(t))
	for _, id := range []domain.UserID{"a", "b", "c"} {
		require.NoError(t, reg.Register(id, apptest.NewConn()))
	}
	m := NewMatchmaker(reg)

	var gotN int
	m.Pick = func(n int) int {
		gotN = n
		return n - 1
	}

	got, ok := m.RequestMatch("a")
	require.True(t, ok)
	assert.Equal(t, 2, gotN)
	assert.Equal(t, domain.UserID("c"), got)
}

func TestMatchmaker_DoesNotMutateRegistry(t *testing.T) {
	reg := NewRegistry(apptest.Metrics(t))
	for _, id := range []domain.UserID{"a", "b"} {
		require.NoError(t, reg.Register(id, apptest.NewConn()))
	}
	m := NewMatchmaker(reg)

	_, _ = m.RequestMatch("a")
	assert.Equal(t, []domain.UserID{"a", "b"}, reg.Snapshot())
}
