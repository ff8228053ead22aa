package peerclient

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/dkeye/Roulette/internal/adapters/http"
	"github.com/dkeye/Roulette/internal/app"
	"github.com/dkeye/Roulette/internal/app/apptest"
	"github.com/dkeye/Roulette/internal/app/orch"
	"github.com/dkeye/Roulette/internal/config"
)

func loopbackAPI() *webrtc.API {
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(true)
	se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	return webrtc.NewAPI(webrtc.WithSettingEngine(se))
}

func startRelay(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		Mode:             "debug",
		StaticPath:       t.TempDir(),
		ReadLimit:        64 * 1024,
		PingPeriod:       30 * time.Second,
		WriteWait:        time.Second,
		SendBuffer:       64,
		Secret:           "test-secret",
		IdentityAttempts: 4,
		SlowConsumer:     "kick",
	}
	o := orch.New(app.SimplePolicy{}, apptest.Metrics(t))
	ts := httptest.NewServer(httpadapter.SetupRouter(ctx, cfg, o, nil))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialPeer(t *testing.T, ctx context.Context, url string) *Client {
	t.Helper()
	c, err := Dial(ctx, url, Options{API: loopbackAPI()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	go func() { _ = c.Run(ctx) }()

	select {
	case <-c.Identified():
	case <-ctx.Done():
		t.Fatal("no identity assigned")
	}
	return c
}

func TestClient_DataChannelThroughRelay(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real ICE sockets")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	url := startRelay(t)
	a := dialPeer(t, ctx, url)
	b := dialPeer(t, ctx, url)

	received := make(chan string, 1)
	b.OnMessage(func(text string) { received <- text })

	require.NoError(t, a.MatchUntilPaired(ctx, 200*time.Millisecond))

	for _, c := range []*Client{a, b} {
		select {
		case <-c.Ready():
		case <-ctx.Done():
			t.Fatalf("data channel of %s never opened", c.ID())
		}
	}
	assert.Equal(t, b.ID(), a.Peer())
	assert.Equal(t, a.ID(), b.Peer())

	require.NoError(t, a.Send("hello"))
	select {
	case got := <-received:
		assert.Equal(t, "hello", got)
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestClient_MatchUntilPairedStopsOnClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := dialPeer(t, ctx, startRelay(t))

	errCh := make(chan error, 1)
	go func() { errCh <- a.MatchUntilPaired(ctx, 20*time.Millisecond) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-ctx.Done():
		t.Fatal("MatchUntilPaired did not return")
	}
}

func TestClient_SendBeforeReady(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := dialPeer(t, ctx, startRelay(t))
	assert.Error(t, a.Send("too early"))
	assert.Empty(t, a.Peer())
}
