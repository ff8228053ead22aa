package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/app/orch"
	"github.com/dkeye/Roulette/internal/config"
	"github.com/dkeye/Roulette/internal/core"
)

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Cfg     *config.Config
	Limiter *MessageRateLimiter

	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, cfg *config.Config) *SignalWSController {
	ctl := &SignalWSController{
		Orch: o,
		Cfg:  cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if cfg.RateLimit > 0 {
		ctl.Limiter = NewMessageRateLimiter(cfg.RateLimit, cfg.RateInterval)
	}
	return ctl
}

// WsSignalConn is the core.SignalConnection backed by a websocket. Frames
// are queued on send and written by the connection's writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and runs the connection until either
// side closes it or ctx is cancelled.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	client := c.GetString("client_token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := newWsSignalConn(ws, ctl.Cfg.SendBuffer)
	lc, err := ctl.Orch.Accept(conn)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("client", client).Msg("connection rejected")
		reason := "server busy"
		if errors.Is(err, orch.ErrIdentityExhaustion) {
			reason = "identity unavailable"
		}
		writeClose(ws, websocket.CloseTryAgainLater, reason, ctl.Cfg.WriteWait)
		conn.Close()
		return
	}
	log.Info().Str("module", "signal").Str("id", string(lc.ID())).Str("client", client).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(lc, conn)
}

func writeClose(ws *websocket.Conn, code int, reason string, wait time.Duration) {
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wait))
}
