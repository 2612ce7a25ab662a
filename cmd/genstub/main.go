// genstub serves the mock generation endpoint for local development:
// point `fanout run --endpoint` (or any pool) at it to exercise
// streaming without real providers.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"fanout/internal/mockapi"
)

func main() {
	defaultAddr := ":8080"
	if v := os.Getenv("GENSTUB_ADDR"); v != "" {
		defaultAddr = v
	}
	addr := flag.String("addr", defaultAddr, "HTTP listen address, e.g. :8080")
	tokenDelay := flag.Duration("token-delay", 20*time.Millisecond, "Pause between streamed tokens")
	corsEnabled := flag.Bool("cors-enabled", false, "Enable CORS for browser clients")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	flag.Parse()

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()

	server := mockapi.NewServer(mockapi.Config{
		TokenDelay:  *tokenDelay,
		CORSEnabled: *corsEnabled,
		Logger:      log,
	})
	srv := &http.Server{Addr: *addr, Handler: mockapi.NewMux(server)}

	go func() {
		log.Info().Str("addr", *addr).Msg("genstub listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
}
