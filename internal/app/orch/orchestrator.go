package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/app"
	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
	"github.com/dkeye/Roulette/internal/metrics"
)

// DefaultIdentityAttempts bounds identity generation when the config leaves it unset.
const DefaultIdentityAttempts = 8

// ErrIdentityExhaustion is returned by Accept when no unique identity could be generated.
var ErrIdentityExhaustion = errors.New("identity exhaustion")

// Orchestrator wires the core components together and owns the
// per-connection lifecycle.
type Orchestrator struct {
	Registry    *app.Registry
	Matchmaker  *app.Matchmaker
	Relay       *app.Relay
	Broadcaster *app.Broadcaster
	Sender      *app.Sender
	Metrics     *metrics.AppMetrics

	NewID               domain.IDGenerator
	MaxIdentityAttempts int
}

// New builds an Orchestrator with default components around a fresh registry.
func New(policy app.Policy, m *metrics.AppMetrics) *Orchestrator {
	reg := app.NewRegistry(m)
	sender := app.NewSender(policy, m)
	return &Orchestrator{
		Registry:            reg,
		Matchmaker:          app.NewMatchmaker(reg),
		Relay:               app.NewRelay(reg, sender, m),
		Broadcaster:         app.NewBroadcaster(reg, sender, m),
		Sender:              sender,
		Metrics:             m,
		NewID:               domain.NewUserID,
		MaxIdentityAttempts: DefaultIdentityAttempts,
	}
}

// Accept registers conn under a fresh identity and greets it with that
// identity. No presence broadcast is sent on connect.
func (o *Orchestrator) Accept(conn core.SignalConnection) (*Lifecycle, error) {
	o.Metrics.ConnectCalls.Add(context.Background(), 1)

	id, err := o.register(conn)
	if err != nil {
		o.Metrics.RejectedConnections.Add(context.Background(), 1)
		return nil, err
	}

	lc := &Lifecycle{orch: o, id: id, conn: conn, state: StateOpen, openedAt: time.Now()}

	frame, err := core.EncodeIdentityAssigned(id)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("id", string(id)).Msg("encode identity")
	} else {
		o.Sender.Send(id, conn, frame)
	}

	log.Info().Str("module", "orch").Str("id", string(id)).Msg("connection open")
	return lc, nil
}

func (o *Orchestrator) register(conn core.SignalConnection) (domain.UserID, error) {
	attempts := o.MaxIdentityAttempts
	if attempts <= 0 {
		attempts = DefaultIdentityAttempts
	}

	for i := 0; i < attempts; i++ {
		id := o.NewID()
		if id == "" {
			continue
		}
		err := o.Registry.Register(id, conn)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, app.ErrDuplicateIdentity) {
			return "", err
		}
		log.Warn().Str("module", "orch").Str("id", string(id)).Msg("identity collision, regenerating")
	}
	return "", fmt.Errorf("%w: %d attempts", ErrIdentityExhaustion, attempts)
}

// HandleMatch pairs requester with a random other identity. Both sides get
// match-found and a presence broadcast follows.
func (o *Orchestrator) HandleMatch(requester domain.UserID) {
	o.Metrics.MatchRequests.Add(context.Background(), 1)

	matched, ok := o.Matchmaker.RequestMatch(requester)
	if !ok {
		log.Debug().Str("module", "orch").Str("id", string(requester)).Msg("no match candidate")
		return
	}

	pair := []domain.UserID{requester, matched}
	frame, err := core.EncodeMatchFound(pair)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode match-found")
		return
	}
	for _, id := range pair {
		if conn, ok := o.Registry.Resolve(id); ok {
			o.Sender.Send(id, conn, frame)
		}
	}
	o.Metrics.MatchesFound.Add(context.Background(), 1)
	log.Info().Str("module", "orch").Str("requester", string(requester)).Str("matched", string(matched)).Msg("match found")

	o.Broadcaster.Broadcast()
}
