package orch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
)

type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type EventKind int

const (
	EventMessage EventKind = iota
	EventClose
)

// Event is one item of a connection's inbound stream.
type Event struct {
	Kind EventKind
	Data []byte
	// Err is the transport error that ended the stream, if any.
	Err error
}

// MessageEvent wraps an inbound frame.
func MessageEvent(data []byte) Event { return Event{Kind: EventMessage, Data: data} }

// CloseEvent reports that the transport closed, err may be nil.
func CloseEvent(err error) Event { return Event{Kind: EventClose, Err: err} }

// Lifecycle is the state machine of one accepted connection. Events are
// meant to be fed from that connection's read task.
type Lifecycle struct {
	orch     *Orchestrator
	id       domain.UserID
	conn     core.SignalConnection
	openedAt time.Time

	mu    sync.Mutex
	state State
}

func (l *Lifecycle) ID() domain.UserID { return l.id }

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Handle processes one event. Anything arriving after close is dropped.
func (l *Lifecycle) Handle(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateOpen {
		log.Debug().Str("module", "orch").Str("id", string(l.id)).Str("state", l.state.String()).Msg("event after close dropped")
		return
	}

	switch ev.Kind {
	case EventMessage:
		l.dispatch(ev.Data)
	case EventClose:
		l.close(ev.Err)
	}
}

func (l *Lifecycle) dispatch(data []byte) {
	msg, err := core.DecodeMessage(data)
	if err != nil {
		l.orch.Metrics.MalformedMessages.Add(context.Background(), 1)
		log.Warn().Err(err).Str("module", "orch").Str("id", string(l.id)).Msg("dropping message")
		return
	}

	switch {
	case msg.Type == core.KindMatchRequest:
		l.orch.HandleMatch(l.id)
	case msg.Type.IsNegotiation():
		l.orch.Relay.Relay(l.id, msg.Users, msg.Type, msg.Data)
	default:
		log.Debug().Str("module", "orch").Str("id", string(l.id)).Str("type", string(msg.Type)).Msg("ignoring message type")
	}
}

func (l *Lifecycle) close(cause error) {
	l.state = StateClosed
	l.orch.Registry.Deregister(l.id)
	l.orch.Metrics.SessionDuration.Record(context.Background(), time.Since(l.openedAt).Seconds())

	log.Info().Err(cause).Str("module", "orch").Str("id", string(l.id)).Msg("connection closed")

	l.orch.Broadcaster.Broadcast()
}
