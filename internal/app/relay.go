package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/metrics"
)

// ErrUnresolvedRecipient marks a relay whose recipient is not connected.
// It is logged and counted, never reported to the sender.
var ErrUnresolvedRecipient = errors.New("unresolved recipient")

// Relay forwards negotiation messages between two identities. It trusts the
// pair declared by the sender and does not check it against past matches.
type Relay struct {
	Registry *Registry
	Sender   *Sender
	Metrics  *metrics.AppMetrics
}

func NewRelay(reg *Registry, sender *Sender, metrics *metrics.AppMetrics) *Relay {
	return &Relay{Registry: reg, Sender: sender, Metrics: metrics}
}

// Relay reports whether a frame was handed to the other participant.
func (r *Relay) Relay(sender domain.UserID, declared []domain.UserID, kind core.Kind, data json.RawMessage) bool {
	other, ok := otherParticipant(sender, declared)
	if !ok {
		log.Debug().Str("module", "app.relay").Str("sender", string(sender)).Str("type", string(kind)).Msg("no other participant declared")
		return false
	}

	conn, ok := r.Registry.Resolve(other)
	if !ok {
		r.Metrics.UndeliveredMessages.Add(context.Background(), 1)
		log.Debug().Err(ErrUnresolvedRecipient).Str("module", "app.relay").Str("sender", string(sender)).Str("recipient", string(other)).Msg("dropping relay")
		return false
	}

	frame, err := core.EncodeRelayed(kind, sender, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("encode relayed message")
		return false
	}

	if !r.Sender.Send(other, conn, frame) {
		return false
	}
	r.Metrics.RelayedMessages.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("type", string(kind))))
	return true
}

func otherParticipant(sender domain.UserID, declared []domain.UserID) (domain.UserID, bool) {
	for _, id := range declared {
		if id != sender {
			return id, true
		}
	}
	return "", false
}
