package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Roulette/internal/domain"
)

func TestDecodeMessage(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"type":"offer","users":["a","b"],"data":{"sdp":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindNegotiationOffer, m.Type)
	assert.Equal(t, []domain.UserID{"a", "b"}, m.Users)
	assert.JSONEq(t, `{"sdp":"x"}`, string(m.Data))
}

func TestDecodeMessage_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":        `hello`,
		"truncated":       `{"type":"match"`,
		"missing type":    `{"users":["a"]}`,
		"empty type":      `{"type":""}`,
		"type not string": `{"type":7}`,
		"users not list":  `{"type":"offer","users":"a"}`,
		"empty frame":     ``,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeMessage([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestDecodeMessage_UnknownKindIsNotMalformed(t *testing.T) {
	m, err := DecodeMessage([]byte(`{"type":"future-thing","extra":1}`))
	require.NoError(t, err)
	assert.Equal(t, Kind("future-thing"), m.Type)
	assert.False(t, m.Type.IsNegotiation())
}

func TestKind_IsNegotiation(t *testing.T) {
	assert.True(t, KindNegotiationOffer.IsNegotiation())
	assert.True(t, KindNegotiationAnswer.IsNegotiation())
	assert.True(t, KindConnectivityCandidate.IsNegotiation())
	assert.False(t, KindMatchRequest.IsNegotiation())
	assert.False(t, KindPresenceUpdate.IsNegotiation())
}

func TestEncoders(t *testing.T) {
	f, err := EncodeIdentityAssigned("abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user-id","userId":"abc"}`, string(f))

	f, err = EncodeMatchFound([]domain.UserID{"a", "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"match-found","users":["a","b"]}`, string(f))

	f, err = EncodePresence(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"user-list","users":[]}`, string(f))

	f, err = EncodeRelayed(KindConnectivityCandidate, "a", []byte(`{"candidate":"c"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ice-candidate","senderId":"a","data":{"candidate":"c"}}`, string(f))
}
