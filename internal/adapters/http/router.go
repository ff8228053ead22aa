package http

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/adapters/signal"
	"github.com/dkeye/Roulette/internal/app/orch"
	"github.com/dkeye/Roulette/internal/config"
)

const clientTokenKey = "ct"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware tags each browser with a cookie-backed token used
// only to correlate log lines. It is never used as a signaling identity.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save client token")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// SetupRouter builds the HTTP surface. metricsHandler may be nil.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, metricsHandler http.Handler) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("RouletteSessions", store))
	r.Use(ClientTokenMiddleware())

	ctrl := signal.NewSignalWSController(o, cfg)
	handleWS := func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	}

	r.GET("/ws", handleWS)
	r.GET("/", func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			handleWS(c)
			return
		}
		index := filepath.Join(cfg.StaticPath, "index.html")
		if st, err := os.Stat(index); err == nil && !st.IsDir() {
			c.File(index)
			return
		}
		c.String(http.StatusOK, "Hello, World!")
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": o.Registry.Len(),
		})
	})

	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	files := http.FileServer(http.Dir(cfg.StaticPath))
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.String(http.StatusNotFound, "404 page not found")
			return
		}
		c.Status(http.StatusOK)
		files.ServeHTTP(c.Writer, c.Request)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
