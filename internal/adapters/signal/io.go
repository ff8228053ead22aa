package signal

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/app/orch"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			writeClose(c.conn, websocket.CloseGoingAway, "server shutting down", ctl.Cfg.WriteWait)
			c.Close()
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				c.Close()
				return
			}
		}
	}
}

// readPump is the per-connection task: every inbound frame and the final
// close are fed to the lifecycle in order.
func (ctl *SignalWSController) readPump(lc *orch.Lifecycle, c *WsSignalConn) {
	id := lc.ID()
	defer func() {
		log.Debug().Str("module", "signal").Str("id", string(id)).Msg("readPump closing")
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(id)
		}
		c.Close()
	}()

	pongWait := ctl.Cfg.PongWait()
	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if isUnexpectedClose(err) {
				log.Warn().Err(err).Str("module", "signal").Str("id", string(id)).Msg("readPump read error")
			}
			lc.Handle(orch.CloseEvent(err))
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if ctl.Limiter != nil && !ctl.Limiter.Allow(id) {
			log.Warn().Str("module", "signal").Str("id", string(id)).Msg("rate limit exceeded, message dropped")
			continue
		}
		lc.Handle(orch.MessageEvent(data))
	}
}

func isUnexpectedClose(err error) bool {
	if errors.Is(err, websocket.ErrReadLimit) {
		return true
	}
	return websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
