package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// CLIOverrides carries config values the caller passed directly on the
// command line, which outrank both the config file and environment
// variables.
type CLIOverrides struct {
	ConfigPath string
	UserID     string
}

// Load resolves the effective Config from defaults, an optional TOML file,
// environment variables, and CLI overrides, in that ascending priority
// order.
func Load(cli CLIOverrides) (*Config, error) {
	cfg := Defaults()

	path := cli.ConfigPath
	if path == "" {
		path = EnvOverrides().ConfigPath
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg)

	if cli.UserID != "" {
		cfg.CurrentUserID = cli.UserID
	}

	cfg.TokenSafetyBuffer = time.Duration(cfg.TokenSafetyBufferSec) * time.Second

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decodeFile applies the TOML file at path onto cfg. A missing file is not
// an error — the CLI is usable from environment variables alone (e.g. in
// containerized deployments).
func decodeFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	// First pass: parse into a generic map to report syntax errors. Second
	// pass (into cfg) tolerates the struct's own known-but-absent fields and
	// rejects any key it could not decode (unknown keys, e.g. typos).
	var probe map[string]any
	if _, err := toml.Decode(string(data), &probe); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("config: decoding %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config: unknown keys in %s: %v", path, undecoded)
	}

	return nil
}
