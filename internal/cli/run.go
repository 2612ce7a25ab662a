package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"fanout/internal/config"
	"fanout/internal/lifecycle"
	"fanout/internal/pool"
	"fanout/internal/registry"
	"fanout/internal/round"
	"fanout/internal/stream"
	"fanout/pkg/types"
)

func buildRunCmd(cfg *Config) *cobra.Command {
	var (
		endpoint string
		verbose  bool
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:     "run [prompt...]",
		Short:   "Run one generation round for a prompt",
		Example: "  fanout run --settings settings.toml \"what is a monad?\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			settings, err := loadSettings(cfg)
			if err != nil {
				return err
			}
			if endpoint != "" {
				settings.Endpoint = endpoint
			}
			if err := settings.Validate(); err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}
			return runRound(cfg, settings, prompt, verbose, timeout)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Generation endpoint base URL (overrides settings)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print tokens as they stream")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the round after this duration (0 = none)")
	return cmd
}

func runRound(cfg *Config, settings config.Settings, prompt string, verbose bool, timeout time.Duration) error {
	log := cfg.Logger
	metadata := registry.Build(settings)
	log.Info().Int("possibilities", len(metadata)).Str("endpoint", settings.Endpoint).Msg("starting round")

	client := stream.NewClient(stream.ClientConfig{BaseURL: settings.Endpoint, Logger: log})
	runner := round.NewRunner(round.Config{
		Opener:        pool.NewEndpointOpener(client),
		MaxConcurrent: settings.MaxConcurrent,
		MaxRetries:    settings.MaxRetries,
		Publisher:     &consolePublisher{log: log, verbose: verbose},
		Logger:        log,
	})
	unsubscribe := runner.Machine().OnStateChange(func(newState, oldState lifecycle.State, _ lifecycle.Context, _ lifecycle.Event) {
		log.Debug().Str("from", string(oldState)).Str("to", string(newState)).Msg("round state")
	})
	defer unsubscribe()

	ctx, cancel := signalContext(timeout)
	defer cancel()

	result, err := runner.Run(ctx, metadata, []types.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return err
	}
	printResult(runner, result)
	if result.State == lifecycle.StateFailed {
		return fmt.Errorf("round failed: %s", result.RoundErrors())
	}
	return nil
}

// signalContext cancels on SIGINT/SIGTERM, plus an optional timeout.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout > 0 {
		tctx, tcancel := context.WithTimeout(ctx, timeout)
		return tctx, func() { tcancel(); cancel() }
	}
	return ctx, cancel
}

func printResult(runner *round.Runner, result round.Result) {
	status := runner.Machine().Status()
	stats := runner.Pool().LoadingStats()
	fmt.Printf("\nround %s: %s (%d/%d complete", result.RequestID, result.State, stats.Completed, stats.Total)
	if stats.Failed > 0 {
		fmt.Printf(", %d failed/cancelled", stats.Failed)
	}
	fmt.Println(")")
	if status.Duration != nil {
		fmt.Printf("duration: %s\n", status.Duration.Round(time.Millisecond))
	}
	for i, c := range result.Completed {
		prob := "n/a"
		if c.Result.Probability != nil {
			prob = fmt.Sprintf("%.3f", *c.Result.Probability)
		}
		fmt.Printf("\n#%d %s/%s (temp %.2f, p=%s)\n%s\n",
			i+1, c.Metadata.Provider, c.Metadata.Model, c.Metadata.Temperature, prob, c.Result.Content)
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "\nerrors: %s\n", result.RoundErrors())
	}
}

// consolePublisher narrates pool events to the terminal.
type consolePublisher struct {
	log     zerolog.Logger
	verbose bool
}

func (c *consolePublisher) Publish(ev pool.Event) {
	switch ev.Name {
	case pool.EventToken:
		if c.verbose {
			if tok, ok := ev.Fields["token"].(string); ok {
				fmt.Print(tok)
			}
		}
	case pool.EventStreaming:
		c.log.Debug().Str("id", ev.PossibilityID).Msg("stream open")
	case pool.EventCompleted:
		c.log.Info().Str("id", ev.PossibilityID).Msg("possibility complete")
	case pool.EventFailed:
		c.log.Warn().Str("id", ev.PossibilityID).Any("error", ev.Fields["error"]).Msg("possibility failed")
	case pool.EventCancelled:
		c.log.Info().Str("id", ev.PossibilityID).Msg("possibility cancelled")
	}
}
