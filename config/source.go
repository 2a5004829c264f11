package config

import "time"

// SourceConfig describes the external stats API and the pacing applied to it.
type SourceConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"https://api.example-stats.invalid"`
	// League scopes every fetch and store query (the external key).
	League string `env:"LEAGUE" envDefault:"mlb"`

	// OAuth2 client-credentials settings. Leave TokenURL empty to call the
	// API unauthenticated (local fixtures, tests).
	TokenURL     string `env:"TOKEN_URL"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	// MinSpacing is the minimum gap between calls to the API, shared by all
	// workers in the process.
	MinSpacing time.Duration `env:"MIN_SPACING" envDefault:"500ms"`
	// MaxRetries bounds retries of transient failures per call.
	MaxRetries int `env:"MAX_RETRIES" envDefault:"3"`
	// BackoffBase: retry n sleeps base^n seconds, capped at BackoffCap.
	BackoffBase float64       `env:"BACKOFF_BASE" envDefault:"2"`
	BackoffCap  time.Duration `env:"BACKOFF_CAP"  envDefault:"2m"`
}

// Sanitize clamps source settings to workable bounds.
func (c *SourceConfig) Sanitize() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MinSpacing < 0 {
		c.MinSpacing = 0
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxRetries > 10 {
		c.MaxRetries = 10
	}
	if c.BackoffBase < 1 {
		c.BackoffBase = 2
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 2 * time.Minute
	}
}
