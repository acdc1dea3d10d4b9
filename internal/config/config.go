// Package config implements TOML configuration loading, environment
// overrides, and validation for the sync client, with a two-pass decode and
// env-override chain over a single-profile configuration surface.
package config

import "time"

// Config is the fully-resolved configuration for one client instance.
type Config struct {
	RemoteEndpoint       string        `toml:"remote_endpoint"`
	TokenEndpoint        string        `toml:"token_endpoint"`
	CurrentUserID        string        `toml:"current_user_id"`
	LocalDBPath          string        `toml:"local_db_path"`
	Env                  string        `toml:"env"`
	TokenSafetyBuffer    time.Duration `toml:"-"`
	TokenSafetyBufferSec int           `toml:"token_safety_buffer_seconds"`
	NotifyEndpoint       string        `toml:"notify_endpoint"`
	LogLevel             string        `toml:"log_level"`
}

// IsDevelopment reports whether Env selects development defaults. The only
// such default is the gateway connection mode; retry and timeout settings
// are the same in every environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
