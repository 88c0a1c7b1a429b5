package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Resolved is the effective configuration after the override chain has been
// applied and validated. All endpoint fields are guaranteed non-empty.
type Resolved struct {
	APIBaseURL  string
	IdentityURL string
	IdentityKey string
	StorageURL  string
	LogLevel    string
	SessionPath string
}

// Load reads and parses a TOML config file and returns the resulting Config.
// Unknown keys are treated as errors — silently ignoring a typo in a config
// file leads to hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}

		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with defaults. This supports configuring entirely through
// the environment without creating a config file.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables. The result is validated;
// a missing backend or identity endpoint is reported here, at startup,
// rather than surfacing as a network fault deep in the sync layer.
func Resolve(env EnvOverrides) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{
		APIBaseURL:  cfg.API.BaseURL,
		IdentityURL: cfg.Identity.URL,
		IdentityKey: cfg.Identity.Key,
		StorageURL:  cfg.Storage.URL,
		LogLevel:    cfg.Logging.Level,
		SessionPath: DefaultSessionPath(),
	}

	if cfg.Session.Path != "" {
		resolved.SessionPath = cfg.Session.Path
	}

	if env.APIURL != "" {
		resolved.APIBaseURL = env.APIURL
	}

	if env.IdentityURL != "" {
		resolved.IdentityURL = env.IdentityURL
	}

	if env.IdentityKey != "" {
		resolved.IdentityKey = env.IdentityKey
	}

	if env.StorageURL != "" {
		resolved.StorageURL = env.StorageURL
	}

	if env.SessionPath != "" {
		resolved.SessionPath = env.SessionPath
	}

	// The storage service is co-hosted with the identity provider in the
	// reference deployment; fall back rather than demanding a third endpoint.
	if resolved.StorageURL == "" {
		resolved.StorageURL = resolved.IdentityURL
	}

	if err := Validate(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}

// Validate checks a resolved configuration for startup errors.
func Validate(r *Resolved) error {
	if r.APIBaseURL == "" {
		return fmt.Errorf("backend API base URL is not set (config [api].base_url or %s)", EnvAPIURL)
	}

	if r.IdentityURL == "" {
		return fmt.Errorf("identity provider URL is not set (config [identity].url or %s)", EnvIdentityURL)
	}

	if r.IdentityKey == "" {
		return fmt.Errorf("identity provider key is not set (config [identity].key or %s)", EnvIdentityKey)
	}

	switch r.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", r.LogLevel)
	}

	return nil
}
