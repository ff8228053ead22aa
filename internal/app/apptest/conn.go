// Package apptest provides in-memory connections and helpers for tests of
// the relay core.
package apptest

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/metrics"
)

// Conn records every frame it accepts.
type Conn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	// Full makes TrySend report backpressure.
	Full bool
}

func NewConn() *Conn { return &Conn{} }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.Full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) SetFull(full bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Full = full
}

// Frames returns a copy of the recorded frames.
func (c *Conn) Frames() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

// Messages decodes every recorded frame into a generic map.
func (c *Conn) Messages(t testing.TB) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, f := range c.Frames() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

// OfType returns the decoded messages whose "type" equals kind.
func (c *Conn) OfType(t testing.TB, kind core.Kind) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range c.Messages(t) {
		if m["type"] == string(kind) {
			out = append(out, m)
		}
	}
	return out
}

// Metrics returns application metrics backed by a no-op meter.
func Metrics(t testing.TB) *metrics.AppMetrics {
	t.Helper()
	m, err := metrics.NewNoopAppMetrics()
	require.NoError(t, err)
	return m
}
