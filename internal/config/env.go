package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig      = "NOTES_GO_CONFIG"
	EnvAPIURL      = "NOTES_GO_API_URL"
	EnvIdentityURL = "NOTES_GO_IDENTITY_URL"
	EnvIdentityKey = "NOTES_GO_IDENTITY_KEY"
	EnvStorageURL  = "NOTES_GO_STORAGE_URL"
	EnvSessionPath = "NOTES_GO_SESSION"
)

// EnvOverrides holds values derived from environment variables.
// These are resolved by Resolve and take precedence over the config file.
type EnvOverrides struct {
	ConfigPath  string // NOTES_GO_CONFIG: override config file path
	APIURL      string // NOTES_GO_API_URL: backend API base URL
	IdentityURL string // NOTES_GO_IDENTITY_URL: identity provider endpoint
	IdentityKey string // NOTES_GO_IDENTITY_KEY: identity provider API key
	StorageURL  string // NOTES_GO_STORAGE_URL: object storage endpoint
	SessionPath string // NOTES_GO_SESSION: session cache file path
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:  os.Getenv(EnvConfig),
		APIURL:      os.Getenv(EnvAPIURL),
		IdentityURL: os.Getenv(EnvIdentityURL),
		IdentityKey: os.Getenv(EnvIdentityKey),
		StorageURL:  os.Getenv(EnvStorageURL),
		SessionPath: os.Getenv(EnvSessionPath),
	}
}
