package mockapi

import (
	"time"

	"github.com/rs/zerolog"
)

// Config carries tunables for the mock endpoint.
type Config struct {
	// TokenDelay is the pause between streamed tokens. Defaults to 20ms
	// so streams are observably incremental without slowing tests.
	TokenDelay time.Duration
	// CORSEnabled adds permissive-by-configuration CORS middleware for
	// browser clients pointed at the stub.
	CORSEnabled  bool
	CORSOrigins  []string
	MaxBodyBytes int64
	Logger       zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.TokenDelay <= 0 {
		c.TokenDelay = 20 * time.Millisecond
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
}
