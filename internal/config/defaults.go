package config

// Default values per spec.md §6's configuration surface.
const (
	DefaultCurrentUserID         = "user1"
	DefaultTokenSafetyBufferSec = 300
	DefaultLogLevel              = "warn"
)

// Defaults returns a Config populated with spec.md §6's stated defaults.
// Load() starts from this before applying the file and env layers.
func Defaults() *Config {
	return &Config{
		CurrentUserID:        DefaultCurrentUserID,
		Env:                  "production",
		TokenSafetyBufferSec: DefaultTokenSafetyBufferSec,
		LogLevel:             DefaultLogLevel,
	}
}
