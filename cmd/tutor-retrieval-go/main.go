package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edusearch/tutor-retrieval-go/internal/metrics"
	"github.com/edusearch/tutor-retrieval-go/internal/server"
	"github.com/edusearch/tutor-retrieval-go/pkg/tutor"
)

var (
	libsqlURL    = flag.String("libsql-url", "", "libSQL database URL (default: file:./tutor.db)")
	authToken    = flag.String("auth-token", "", "Authentication token for remote databases")
	storeBackend = flag.String("store-backend", "", "Passage store backend: libsql or chromem")
	transport    = flag.String("transport", "stdio", "Transport to use: stdio or sse")
	addr         = flag.String("addr", ":8080", "Address to listen on when using SSE transport")
	sseEndpoint  = flag.String("sse-endpoint", "/sse", "SSE endpoint path when using SSE transport")
	logPretty    = flag.Bool("log-pretty", false, "Human-readable log output instead of JSON")
)

func main() {
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// The stdio transport owns stdout, so logs always go to stderr.
	if *logPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = log.Output(os.Stderr)
	}
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal, closing server")
		cancel()
	}()

	cfg := tutor.NewConfig()

	// Initialize metrics (noop if disabled)
	metrics.InitFromEnv()

	// Override with command line flags if provided
	if *libsqlURL != "" {
		cfg.URL = *libsqlURL
	}
	if *authToken != "" {
		cfg.AuthToken = *authToken
	}
	if *storeBackend != "" {
		cfg.StoreBackend = *storeBackend
	}

	service, err := tutor.NewService(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create retrieval service")
	}
	defer func() {
		if err := service.Close(); err != nil {
			log.Error().Err(err).Msg("error closing service")
		}
	}()

	mcpServer := server.NewMCPServer(service)

	log.Info().Str("transport", *transport).Msg("starting tutor retrieval server")
	switch *transport {
	case "stdio":
		go func() {
			if err := mcpServer.Run(ctx); err != nil {
				log.Error().Err(err).Msg("server error")
			}
		}()
	case "sse":
		go func() {
			if err := mcpServer.RunSSE(ctx, *addr, *sseEndpoint); err != nil {
				log.Error().Err(err).Msg("sse server error")
			}
		}()
	default:
		log.Fatal().Str("transport", *transport).Msg("unknown transport (expected: stdio or sse)")
	}

	<-ctx.Done()

	log.Info().Msg("server stopped")
}
