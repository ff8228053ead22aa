package app

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Roulette/internal/app/apptest"
	"github.com/dkeye/Roulette/internal/domain"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(apptest.Metrics(t))
	c1, c2 := apptest.NewConn(), apptest.NewConn()

	require.NoError(t, r.Register("a", c1))
	require.NoError(t, r.Register("b", c2))

	got, ok := r.Resolve("a")
	require.True(t, ok)
	assert.Same(t, c1, got)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry(apptest.Metrics(t))
	first := apptest.NewConn()
	require.NoError(t, r.Register("a", first))

	err := r.Register("a", apptest.NewConn())
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	got, _ := r.Resolve("a")
	assert.Same(t, first, got, "existing binding must survive a duplicate register")
}

func TestRegistry_DeregisterAbsentIsNoop(t *testing.T) {
	r := NewRegistry(apptest.Metrics(t))
	require.NoError(t, r.Register("a", apptest.NewConn()))

	r.Deregister("missing")
	r.Deregister("a")
	r.Deregister("a")

	_, ok := r.Resolve("a")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SnapshotIsOrderedCopy(t *testing.T) {
	r := NewRegistry(apptest.Metrics(t))
	for _, id := range []domain.UserID{"c", "a", "b"} {
		require.NoError(t, r.Register(id, apptest.NewConn()))
	}

	snap := r.Snapshot()
	assert.Equal(t, []domain.UserID{"c", "a", "b"}, snap)

	snap[0] = "mutated"
	r.Deregister("a")
	assert.Equal(t, []domain.UserID{"c", "b"}, r.Snapshot())
}

func TestRegistry_SnapshotMatchesOpenConnections(t *testing.T) {
	r := NewRegistry(apptest.Metrics(t))

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := domain.UserID(fmt.Sprintf("peer-%d", i))
			assert.NoError(t, r.Register(id, apptest.NewConn()))
			_ = r.Snapshot()
			if i%2 == 0 {
				r.Deregister(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Snapshot(), n/2)
	assert.Equal(t, n/2, r.Len())
}
