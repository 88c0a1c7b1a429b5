// Package config implements TOML configuration loading, validation, and
// platform path resolution for notes-go. It supports a three-layer override
// chain (defaults -> config file -> environment). Endpoint configuration is
// required at startup: a missing backend or identity endpoint is a fatal
// configuration error, never a runtime fault inside the sync layer.
package config

// Config is the top-level structure parsed from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Identity IdentityConfig `toml:"identity"`
	Storage  StorageConfig  `toml:"storage"`
	Session  SessionConfig  `toml:"session"`
	Logging  LoggingConfig  `toml:"logging"`
}

// APIConfig locates the notes backend API.
type APIConfig struct {
	BaseURL string `toml:"base_url"`
}

// IdentityConfig locates the identity provider. Key is the provider's
// public API key, sent with every identity request.
type IdentityConfig struct {
	URL string `toml:"url"`
	Key string `toml:"key"`
}

// StorageConfig locates the object storage service that holds avatar
// objects and issues signed URLs. Defaults to the identity URL when empty,
// since the reference deployment co-hosts the two services.
type StorageConfig struct {
	URL string `toml:"url"`
}

// SessionConfig controls where the signed-in session is cached on disk.
type SessionConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a Config with default values. Endpoints have no
// defaults — they must come from the config file or environment.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
	}
}
