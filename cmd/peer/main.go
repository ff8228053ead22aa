package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/Roulette/internal/peerclient"
)

var (
	serverURL     string
	stunServers   []string
	matchInterval time.Duration
	logLevel      string

	rootCmd = &cobra.Command{
		Use:   "peer",
		Short: "join the Roulette relay, get paired and chat over a DataChannel",
		RunE:  run,
	}
)

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", "ws://localhost:3000/ws", "signaling server WebSocket URL")
	rootCmd.Flags().StringSliceVar(&stunServers, "stun", []string{"stun:stun.l.google.com:19302"}, "STUN server URLs")
	rootCmd.Flags().DurationVar(&matchInterval, "match-interval", 2*time.Second, "how often to retry a match request while unpaired")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	zerolog.SetGlobalLevel(lvl)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var ice []webrtc.ICEServer
	if len(stunServers) > 0 {
		ice = append(ice, webrtc.ICEServer{URLs: stunServers})
	}

	client, err := peerclient.Dial(ctx, serverURL, peerclient.Options{ICEServers: ice})
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnMessage(func(text string) {
		fmt.Printf("peer> %s\n", text)
	})

	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	select {
	case <-client.Identified():
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}

	log.Info().Str("id", client.ID().String()).Msg("waiting for a partner")
	if err := client.MatchUntilPaired(ctx, matchInterval); err != nil {
		return err
	}

	select {
	case <-client.Ready():
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
	log.Info().Str("peer", client.Peer().String()).Msg("connected, type to chat")

	go readStdin(ctx, client)

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

func readStdin(ctx context.Context, client *peerclient.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := client.Send(scanner.Text()); err != nil {
			log.Warn().Err(err).Msg("send failed")
		}
	}
}
