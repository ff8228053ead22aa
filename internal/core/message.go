package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Roulette/internal/domain"
)

// Kind is the wire value of a signaling message "type".
type Kind string

const (
	KindIdentityAssigned      Kind = "user-id"
	KindMatchRequest          Kind = "match"
	KindMatchFound            Kind = "match-found"
	KindNegotiationOffer      Kind = "offer"
	KindNegotiationAnswer     Kind = "answer"
	KindConnectivityCandidate Kind = "ice-candidate"
	KindPresenceUpdate        Kind = "user-list"
)

// ErrMalformedMessage marks an inbound payload that cannot be decoded or has no type.
var ErrMalformedMessage = errors.New("malformed message")

// IsNegotiation reports whether messages of kind k are relayed between peers.
func (k Kind) IsNegotiation() bool {
	switch k {
	case KindNegotiationOffer, KindNegotiationAnswer, KindConnectivityCandidate:
		return true
	}
	return false
}

// Message is the inbound envelope sent by clients.
// Data is kept raw so relayed payloads are forwarded untouched.
type Message struct {
	Type  Kind            `json:"type"`
	Users []domain.UserID `json:"users,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeMessage parses an inbound frame.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return m, nil
}

type identityAssigned struct {
	Type   Kind          `json:"type"`
	UserID domain.UserID `json:"userId"`
}

type userList struct {
	Type  Kind            `json:"type"`
	Users []domain.UserID `json:"users"`
}

type relayed struct {
	Type     Kind            `json:"type"`
	SenderID domain.UserID   `json:"senderId"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// EncodeIdentityAssigned builds the greeting sent to a freshly accepted connection.
func EncodeIdentityAssigned(id domain.UserID) (Frame, error) {
	return marshal(identityAssigned{Type: KindIdentityAssigned, UserID: id})
}

// EncodeMatchFound builds the notification sent to both members of a new pair.
func EncodeMatchFound(users []domain.UserID) (Frame, error) {
	return marshal(userList{Type: KindMatchFound, Users: nonNil(users)})
}

// EncodePresence builds the list of currently connected identities.
func EncodePresence(users []domain.UserID) (Frame, error) {
	return marshal(userList{Type: KindPresenceUpdate, Users: nonNil(users)})
}

// EncodeRelayed builds a negotiation message as delivered to the recipient.
func EncodeRelayed(kind Kind, sender domain.UserID, data json.RawMessage) (Frame, error) {
	return marshal(relayed{Type: kind, SenderID: sender, Data: data})
}

// marshal leaves HTML characters unescaped so relayed data keeps its bytes.
func marshal(v any) (Frame, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// nonNil keeps "users" an array on the wire even when empty.
func nonNil(users []domain.UserID) []domain.UserID {
	if users == nil {
		return []domain.UserID{}
	}
	return users
}
