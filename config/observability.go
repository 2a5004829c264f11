package config

import "strings"

// ObservabilityConfig contains metrics configuration.
type ObservabilityConfig struct {
	// StatsdEnabled and StatsdAddress gate metric emission; with no address
	// the sink is a no-op.
	StatsdEnabled bool   `env:"STATSD_ENABLED" envDefault:"false"`
	StatsdAddress string `env:"STATSD_ADDRESS" envDefault:""`
	StatsdPrefix  string `env:"STATSD_PREFIX"  envDefault:"statline"`
}

// Sanitize normalizes metrics settings.
func (c *ObservabilityConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.StatsdEnabled = false
	}
	c.StatsdPrefix = strings.Trim(strings.TrimSpace(c.StatsdPrefix), ".")
}
