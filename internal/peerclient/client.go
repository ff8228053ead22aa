// Package peerclient is a WebRTC peer that finds a partner through the
// signaling relay and opens a DataChannel with it.
package peerclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/core"
	"github.com/dkeye/Roulette/internal/domain"
)

const dataChannelLabel = "roulette"

var ErrClosed = errors.New("peer client closed")

type Options struct {
	// API builds the PeerConnection; nil uses pion defaults.
	API        *webrtc.API
	ICEServers []webrtc.ICEServer
}

type envelope struct {
	Type     core.Kind       `json:"type"`
	UserID   domain.UserID   `json:"userId,omitempty"`
	SenderID domain.UserID   `json:"senderId,omitempty"`
	Users    []domain.UserID `json:"users,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Client owns one signaling connection and at most one PeerConnection.
type Client struct {
	ws   *websocket.Conn
	wsMu sync.Mutex
	opts Options

	identified chan struct{}
	paired     chan struct{}
	ready      chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	readyOnce  sync.Once

	mu        sync.Mutex
	id        domain.UserID
	peer      domain.UserID
	pc        *webrtc.PeerConnection
	dc        *webrtc.DataChannel
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	onMessage func(string)
	presence  []domain.UserID
}

// Dial connects to the relay at url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signaling server: %w", err)
	}
	if opts.API == nil {
		opts.API = webrtc.NewAPI()
	}
	return &Client{
		ws:         ws,
		opts:       opts,
		identified: make(chan struct{}),
		paired:     make(chan struct{}),
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Identified is closed once the relay has assigned an identity.
func (c *Client) Identified() <-chan struct{} { return c.identified }

// Ready is closed once the DataChannel to the partner is open.
func (c *Client) Ready() <-chan struct{} { return c.ready }

// Done is closed when the client shuts down.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) ID() domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

func (c *Client) Peer() domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// Presence returns the last identity list published by the relay.
func (c *Client) Presence() []domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.UserID(nil), c.presence...)
}

// OnMessage sets the handler for text received over the DataChannel.
func (c *Client) OnMessage(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// Send writes text to the partner over the DataChannel.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()
	if dc == nil {
		return errors.New("data channel not open")
	}
	return dc.SendText(text)
}

// RequestMatch asks the relay for a partner once.
func (c *Client) RequestMatch() error {
	return c.send(envelope{Type: core.KindMatchRequest})
}

// MatchUntilPaired repeats match requests until a partner is found, since
// the relay drops requests that find no candidate.
func (c *Client) MatchUntilPaired(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := c.RequestMatch(); err != nil {
			return err
		}
		select {
		case <-c.paired:
			return nil
		case <-c.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run reads signaling messages until the connection ends or ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()

	for {
		var msg envelope
		if err := c.ws.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			_ = c.Close()
			return fmt.Errorf("signaling read: %w", err)
		}
		if err := c.handle(msg); err != nil {
			log.Warn().Err(err).Str("module", "peerclient").Str("type", string(msg.Type)).Msg("signaling message failed")
		}
	}
}

func (c *Client) handle(msg envelope) error {
	switch msg.Type {
	case core.KindIdentityAssigned:
		c.mu.Lock()
		c.id = msg.UserID
		c.mu.Unlock()
		close(c.identified)
		log.Info().Str("module", "peerclient").Str("id", string(msg.UserID)).Msg("identity assigned")

	case core.KindPresenceUpdate:
		c.mu.Lock()
		c.presence = msg.Users
		c.mu.Unlock()

	case core.KindMatchFound:
		return c.onMatch(msg.Users)

	case core.KindNegotiationOffer:
		return c.onOffer(msg.SenderID, msg.Data)

	case core.KindNegotiationAnswer:
		return c.onAnswer(msg.Data)

	case core.KindConnectivityCandidate:
		return c.onCandidate(msg.Data)
	}
	return nil
}

func (c *Client) onMatch(users []domain.UserID) error {
	c.mu.Lock()
	if c.peer != "" {
		c.mu.Unlock()
		return nil
	}
	var other domain.UserID
	for _, u := range users {
		if u != c.id {
			other = u
		}
	}
	if other == "" {
		c.mu.Unlock()
		return errors.New("match-found without partner")
	}
	c.peer = other
	// match-found lists the requester first on both sides; it makes the offer.
	offerer := users[0] == c.id
	c.mu.Unlock()

	close(c.paired)
	log.Info().Str("module", "peerclient").Str("peer", string(other)).Bool("offerer", offerer).Msg("matched")

	pc, err := c.peerConnection()
	if err != nil {
		return err
	}
	if !offerer {
		return nil
	}

	dc, err := pc.CreateDataChannel(dataChannelLabel, nil)
	if err != nil {
		return fmt.Errorf("CreateDataChannel: %w", err)
	}
	c.bindDataChannel(dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("CreateOffer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("SetLocalDescription: %w", err)
	}
	return c.relay(core.KindNegotiationOffer, offer)
}

func (c *Client) onOffer(sender domain.UserID, data json.RawMessage) error {
	c.mu.Lock()
	if c.peer == "" {
		c.peer = sender
		c.mu.Unlock()
		close(c.paired)
	} else {
		c.mu.Unlock()
	}

	var offer webrtc.SessionDescription
	if err := json.Unmarshal(data, &offer); err != nil {
		return fmt.Errorf("decode offer: %w", err)
	}

	pc, err := c.peerConnection()
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("SetRemoteDescription: %w", err)
	}
	c.flushCandidates(pc)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("CreateAnswer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("SetLocalDescription: %w", err)
	}
	return c.relay(core.KindNegotiationAnswer, answer)
}

func (c *Client) onAnswer(data json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(data, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	pc, err := c.peerConnection()
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("SetRemoteDescription: %w", err)
	}
	c.flushCandidates(pc)
	return nil
}

func (c *Client) onCandidate(data json.RawMessage) error {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(data, &cand); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}

	c.mu.Lock()
	if !c.remoteSet || c.pc == nil {
		c.pending = append(c.pending, cand)
		c.mu.Unlock()
		return nil
	}
	pc := c.pc
	c.mu.Unlock()

	return pc.AddICECandidate(cand)
}

// flushCandidates applies candidates that arrived before the remote description.
func (c *Client) flushCandidates(pc *webrtc.PeerConnection) {
	c.mu.Lock()
	c.remoteSet = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, cand := range pending {
		if err := pc.AddICECandidate(cand); err != nil {
			log.Warn().Err(err).Str("module", "peerclient").Msg("AddICECandidate")
		}
	}
}

func (c *Client) peerConnection() (*webrtc.PeerConnection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc != nil {
		return c.pc, nil
	}

	pc, err := c.opts.API.NewPeerConnection(webrtc.Configuration{ICEServers: c.opts.ICEServers})
	if err != nil {
		return nil, fmt.Errorf("NewPeerConnection: %w", err)
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		if err := c.relay(core.KindConnectivityCandidate, cand.ToJSON()); err != nil {
			log.Debug().Err(err).Str("module", "peerclient").Msg("send candidate")
		}
	})
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		c.bindDataChannel(dc)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug().Str("module", "peerclient").Str("state", state.String()).Msg("peer connection state")
	})

	c.pc = pc
	return pc, nil
}

func (c *Client) bindDataChannel(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		c.mu.Lock()
		c.dc = dc
		c.mu.Unlock()
		c.readyOnce.Do(func() { close(c.ready) })
		log.Info().Str("module", "peerclient").Str("label", dc.Label()).Msg("data channel open")
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.mu.Lock()
		fn := c.onMessage
		c.mu.Unlock()
		if fn != nil {
			fn(string(msg.Data))
		}
	})
}

// relay sends a negotiation message addressed to the current partner.
func (c *Client) relay(kind core.Kind, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	users := []domain.UserID{c.id, c.peer}
	c.mu.Unlock()
	return c.send(envelope{Type: kind, Users: users, Data: data})
}

func (c *Client) send(msg envelope) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	return c.ws.WriteJSON(msg)
}

// Close tears down the PeerConnection and the signaling connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		pc := c.pc
		c.mu.Unlock()
		if pc != nil {
			err = pc.Close()
		}
		err = errors.Join(err, c.ws.Close())
	})
	return err
}
