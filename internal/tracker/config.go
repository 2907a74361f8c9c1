package tracker

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/causalityd/internal/config"
)

// Config bounds tracker memory and controls the background sweep.
type Config struct {
	// MaxChainsInMemory caps the number of live chains. The sweep evicts
	// the oldest chains by start time until at or under the cap.
	MaxChainsInMemory int `koanf:"max_chains_in_memory"`

	// MaxChainDuration is the age past which a chain is expired by the
	// sweep, enforced at sweep granularity (best-effort, not precise).
	MaxChainDuration config.Duration `koanf:"max_chain_duration"`

	// MaxChainLength auto-ends a chain once it accumulates this many
	// events, guarding against unbounded growth from runaway loops.
	MaxChainLength int `koanf:"max_chain_length"`

	// CleanupInterval is the period of the background sweep.
	CleanupInterval config.Duration `koanf:"cleanup_interval"`
}

// NewDefaultConfig returns production-ready tracker defaults.
func NewDefaultConfig() *Config {
	return &Config{
		MaxChainsInMemory: 100,
		MaxChainDuration:  config.Duration(5 * time.Minute),
		MaxChainLength:    100,
		CleanupInterval:   config.Duration(30 * time.Second),
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.MaxChainsInMemory <= 0 {
		return fmt.Errorf("max_chains_in_memory must be > 0, got %d", c.MaxChainsInMemory)
	}
	if c.MaxChainDuration.Duration() <= 0 {
		return fmt.Errorf("max_chain_duration must be > 0, got %s", c.MaxChainDuration.Duration())
	}
	if c.MaxChainLength <= 1 {
		return fmt.Errorf("max_chain_length must be > 1, got %d", c.MaxChainLength)
	}
	if c.CleanupInterval.Duration() <= 0 {
		return fmt.Errorf("cleanup_interval must be > 0, got %s", c.CleanupInterval.Duration())
	}
	return nil
}

// softCap is the live-chain count past which StartChain triggers an
// opportunistic cleanup pass between sweep ticks (1.2x the hard cap).
func (c *Config) softCap() int {
	return c.MaxChainsInMemory + c.MaxChainsInMemory/5
}
