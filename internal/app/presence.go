package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/metrics"
)

// Broadcaster publishes the list of connected identities to every
// registered connection.
type Broadcaster struct {
	Registry *Registry
	Sender   *Sender
	Metrics  *metrics.AppMetrics
}

func NewBroadcaster(reg *Registry, sender *Sender, metrics *metrics.AppMetrics) *Broadcaster {
	return &Broadcaster{Registry: reg, Sender: sender, Metrics: metrics}
}

// Broadcast returns how many connections the update was queued on.
func (b *Broadcaster) Broadcast() int {
	entries := b.Registry.Entries()
	ids := make([]domain.UserID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	frame, err := core.EncodePresence(ids)
	if err != nil {
		log.Error().Err(err).Str("module", "app.presence").Msg("encode presence")
		return 0
	}

	sent := 0
	for _, e := range entries {
		if b.Sender.Send(e.ID, e.Conn, frame) {
			sent++
		}
	}
	b.Metrics.PresenceBroadcasts.Add(context.Background(), 1)
	log.Debug().Str("module", "app.presence").Int("users", len(ids)).Int("sent_to", sent).Msg("presence broadcast")
	return sent
}
