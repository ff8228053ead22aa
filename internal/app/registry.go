package app

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/metrics"
)

// ErrDuplicateIdentity is returned by Register when the identity is already bound.
var ErrDuplicateIdentity = errors.New("duplicate identity")

type registryEntry struct {
	conn core.SignalConnection
	seq  uint64
}

// Entry is a copied identity binding handed out to callers that send.
type Entry struct {
	ID   domain.UserID
	Conn core.SignalConnection
}

// Registry holds the live identity bindings. An identity is present
// exactly while its connection is open.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.UserID]*registryEntry
	nextSeq uint64

	metrics *metrics.AppMetrics
}

func NewRegistry(metrics *metrics.AppMetrics) *Registry {
	return &Registry{
		entries: make(map[domain.UserID]*registryEntry),
		metrics: metrics,
	}
}

func (r *Registry) Register(id domain.UserID, conn core.SignalConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return ErrDuplicateIdentity
	}
	r.nextSeq++
	r.entries[id] = &registryEntry{conn: conn, seq: r.nextSeq}
	r.metrics.RegisteredIdentities.Add(context.Background(), 1)
	log.Info().Str("module", "app.registry").Str("id", string(id)).Msg("registered")
	return nil
}

// Deregister removes the binding; absent identities are ignored.
func (r *Registry) Deregister(id domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	r.metrics.RegisteredIdentities.Add(context.Background(), -1)
	log.Info().Str("module", "app.registry").Str("id", string(id)).Msg("deregistered")
}

func (r *Registry) Resolve(id domain.UserID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.conn, true
	}
	return nil, false
}

// Snapshot returns the registered identities in registration order.
func (r *Registry) Snapshot() []domain.UserID {
	entries := r.Entries()
	out := make([]domain.UserID, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

// Entries returns a copy of all bindings in registration order.
func (r *Registry) Entries() []Entry {
	type seqEntry struct {
		Entry
		seq uint64
	}

	r.mu.RLock()
	tmp := make([]seqEntry, 0, len(r.entries))
	for id, e := range r.entries {
		tmp = append(tmp, seqEntry{Entry: Entry{ID: id, Conn: e.conn}, seq: e.seq})
	}
	r.mu.RUnlock()

	slices.SortFunc(tmp, func(a, b seqEntry) int {
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]Entry, len(tmp))
	for i, e := range tmp {
		out[i] = e.Entry
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
