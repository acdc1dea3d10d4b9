package config

import "os"

// EnvVars are the environment-variable names read by ApplyEnvOverrides,
// illustrative names from spec.md §6 (not all config keys have an
// environment override — CurrentUserID is the most common one operators
// need to flip without editing the file, e.g. a multi-account container).
const (
	EnvConfigPath   = "DOCSYNC_CONFIG"
	EnvUserID       = "DOCSYNC_USER_ID"
	EnvRemoteURL    = "DOCSYNC_REMOTE_ENDPOINT"
	EnvTokenURL     = "DOCSYNC_TOKEN_ENDPOINT"
	EnvLocalDBPath  = "DOCSYNC_LOCAL_DB_PATH"
	EnvEnvironment  = "DOCSYNC_ENV"
	EnvNotifyURL    = "DOCSYNC_NOTIFY_ENDPOINT"
	EnvLogLevel     = "DOCSYNC_LOG_LEVEL"
)

// EnvSnapshot holds the subset of overrides read directly from the
// environment, consulted before the config file is located.
type EnvSnapshot struct {
	ConfigPath string
}

// EnvOverrides reads the environment variables that affect where the
// config file itself is found.
func EnvOverrides() EnvSnapshot {
	return EnvSnapshot{ConfigPath: os.Getenv(EnvConfigPath)}
}

// ApplyEnvOverrides mutates cfg in place with any environment variables
// present, outranking the config file but not explicit CLI flags.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvUserID); v != "" {
		cfg.CurrentUserID = v
	}

	if v := os.Getenv(EnvRemoteURL); v != "" {
		cfg.RemoteEndpoint = v
	}

	if v := os.Getenv(EnvTokenURL); v != "" {
		cfg.TokenEndpoint = v
	}

	if v := os.Getenv(EnvLocalDBPath); v != "" {
		cfg.LocalDBPath = v
	}

	if v := os.Getenv(EnvEnvironment); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv(EnvNotifyURL); v != "" {
		cfg.NotifyEndpoint = v
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
}
