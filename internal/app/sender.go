package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/metrics"
)

// Sender hands frames to connections without blocking and applies the
// backpressure policy when a queue is full. Frames are never retried.
type Sender struct {
	Policy  Policy
	Metrics *metrics.AppMetrics
}

func NewSender(policy Policy, metrics *metrics.AppMetrics) *Sender {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Sender{Policy: policy, Metrics: metrics}
}

// Send reports whether the frame was queued on conn.
func (s *Sender) Send(id domain.UserID, conn core.SignalConnection, frame core.Frame) bool {
	err := conn.TrySend(frame)
	if err == nil {
		return true
	}

	s.Metrics.DroppedFrames.Add(context.Background(), 1)
	if !errors.Is(err, core.ErrBackpressure) {
		log.Debug().Err(err).Str("module", "app.sender").Str("id", string(id)).Msg("send to closed connection")
		return false
	}

	switch s.Policy.OnBackPressure(id) {
	case KickMember:
		log.Warn().Str("module", "app.sender").Str("id", string(id)).Msg("slow consumer, closing connection")
		conn.Close()
	case DropFrame, NoAction:
		log.Warn().Str("module", "app.sender").Str("id", string(id)).Msg("slow consumer, frame dropped")
	}
	return false
}
