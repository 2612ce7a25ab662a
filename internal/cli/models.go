package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fanout/internal/registry"
)

func buildModelsCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the possibility fan-out a settings file produces",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cfg)
			if err != nil {
				return err
			}
			metadata := registry.Build(settings)
			if len(metadata) == 0 {
				fmt.Println("no models enabled")
				return nil
			}
			fmt.Printf("%-3s %-12s %-24s %-6s %-8s\n", "#", "provider", "model", "temp", "priority")
			for _, md := range metadata {
				fmt.Printf("%-3d %-12s %-24s %-6.2f %-8s\n", md.Order, md.Provider, md.Model, md.Temperature, md.Priority)
			}
			return nil
		},
	}
}
