package pool

import (
	"time"

	"fanout/pkg/types"
)

// Rough time-to-first-token per provider, used only for UI load hints.
var providerBaseLatency = map[string]time.Duration{
	"openai":    800 * time.Millisecond,
	"anthropic": 900 * time.Millisecond,
	"google":    700 * time.Millisecond,
	"local":     300 * time.Millisecond,
}

const (
	defaultBaseLatency = time.Second
	perTokenTime       = 25 * time.Millisecond
)

// estimateLoadTime guesses how long a possibility will take end to end
// from its provider and expected completion length.
func estimateLoadTime(md types.PossibilityMetadata) time.Duration {
	base, ok := providerBaseLatency[md.Provider]
	if !ok {
		base = defaultBaseLatency
	}
	return base + time.Duration(md.EstimatedTokens)*perTokenTime
}
