package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Roulette/internal/adapters/http"
	"github.com/dkeye/Roulette/internal/app"
	"github.com/dkeye/Roulette/internal/app/orch"
	"github.com/dkeye/Roulette/internal/config"
	"github.com/dkeye/Roulette/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	appMetrics, metricsHandler, shutdownMetrics := setupMetrics(cfg)

	o := orch.New(app.PolicyFor(cfg.SlowConsumer), appMetrics)
	o.MaxIdentityAttempts = cfg.IdentityAttempts

	r := router.SetupRouter(ctx, cfg, o, metricsHandler)
	addr := fmt.Sprintf(":%d", cfg.Port)

	// Bind before announcing so a busy port is fatal instead of silent.
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("failed to bind")
	}

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("Roulette signaling server started")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownMetrics(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// setupMetrics falls back to a no-op meter when metrics are disabled or fail to start.
func setupMetrics(cfg *config.Config) (*metrics.AppMetrics, http.Handler, func(context.Context) error) {
	noopShutdown := func(context.Context) error { return nil }

	if cfg.MetricsEnabled {
		m, err := metrics.New()
		if err == nil {
			am, err := metrics.NewAppMetrics(m.Meter)
			if err == nil {
				return am, m.Handler, m.Shutdown
			}
			log.Error().Err(err).Msg("failed to register app metrics")
		} else {
			log.Error().Err(err).Msg("failed to start metrics")
		}
	}

	am, err := metrics.NewNoopAppMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create no-op metrics")
	}
	return am, nil, noopShutdown
}
