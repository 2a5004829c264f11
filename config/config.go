// Package config holds the application configuration, loaded from
// environment variables via github.com/caarlos0/env. Each domain keeps its
// own file:
//   - database.go: Postgres and Redis configuration
//   - source.go: stats API source configuration
//   - collector.go: collection engine configuration
//   - observability.go: metrics configuration
package config

// AppConfig composes the domain-specific configuration structs.
type AppConfig struct {
	// Environment names the deployment lane (dev, staging, prod). Jobs of
	// the same type in different environments never contend.
	Environment string `env:"ENVIRONMENT" envDefault:"dev"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	Source    SourceConfig    `envPrefix:"SOURCE_"`
	Collector CollectorConfig `envPrefix:"COLLECTOR_"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to values loaded from env. Call after parsing.
func (c *AppConfig) Sanitize() {
	if c.Environment == "" {
		c.Environment = "dev"
	}
	c.Source.Sanitize()
	c.Collector.Sanitize()
	c.Observability.Sanitize()
}
