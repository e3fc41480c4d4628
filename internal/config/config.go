package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// Room defaults applied to every room the server creates.
	GracePeriod  time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	Reconnection bool          `mapstructure:"reconnection" yaml:"reconnection"`
	MaxClients   int           `mapstructure:"max_clients" yaml:"max_clients"`
	RateLimit    int           `mapstructure:"rate_limit" yaml:"rate_limit"`

	// Reconnect token signing.
	TokenSecret string        `mapstructure:"token_secret" yaml:"token_secret"`
	TokenIssuer string        `mapstructure:"token_issuer" yaml:"token_issuer"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		GracePeriod:       60 * time.Second,
		Reconnection:      true,
		MaxClients:        16,
		RateLimit:         120,
		TokenIssuer:       "partyline",
		TokenTTL:          24 * time.Hour,
	}
}
