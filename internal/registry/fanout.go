// Package registry builds the possibility fan-out of a generation round
// from user settings: one metadata entry per enabled provider/model and
// temperature combination.
package registry

import (
	"github.com/google/uuid"

	"fanout/internal/config"
	"fanout/pkg/types"
)

// Build expands settings into the metadata list for one round. Order
// follows the settings declaration: providers, then models, then
// temperatures. Each entry gets a fresh unique id.
func Build(s config.Settings) []types.PossibilityMetadata {
	var out []types.PossibilityMetadata
	order := 0
	for _, p := range s.Providers {
		for _, m := range p.Models {
			for _, temp := range s.Temperatures {
				out = append(out, types.PossibilityMetadata{
					ID:                uuid.NewString(),
					Provider:          p.Name,
					Model:             m.ID,
					Temperature:       temp,
					SystemInstruction: s.SystemInstruction,
					Priority:          types.ParsePriority(m.Priority),
					Order:             order,
					EstimatedTokens:   s.MaxTokens,
				})
				order++
			}
		}
	}
	return out
}
