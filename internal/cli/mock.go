package cli

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fanout/internal/mockapi"
)

func buildMockCmd(cfg *Config) *cobra.Command {
	var (
		addr        string
		tokenDelay  time.Duration
		corsEnabled bool
	)
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve the mock generation endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cfg.Logger
			server := mockapi.NewServer(mockapi.Config{
				TokenDelay:  tokenDelay,
				CORSEnabled: corsEnabled,
				Logger:      log,
			})
			srv := &http.Server{Addr: addr, Handler: mockapi.NewMux(server)}

			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("mock endpoint listening")
				errc <- srv.ListenAndServe()
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address, e.g. :8080")
	cmd.Flags().DurationVar(&tokenDelay, "token-delay", 20*time.Millisecond, "Pause between streamed tokens")
	cmd.Flags().BoolVar(&corsEnabled, "cors-enabled", false, "Enable CORS for browser clients")
	return cmd
}
