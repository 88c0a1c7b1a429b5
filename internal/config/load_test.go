package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://api.example.com"

[identity]
url = "https://id.example.com"
key = "anon-key"

[storage]
url = "https://store.example.com"

[logging]
level = "debug"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "https://id.example.com", cfg.Identity.URL)
	assert.Equal(t, "anon-key", cfg.Identity.Key)
	assert.Equal(t, "https://store.example.com", cfg.Storage.URL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://api.example.com"
base_uri = "typo"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.API.BaseURL)
}

func TestResolve_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://file.example.com"

[identity]
url = "https://id.example.com"
key = "file-key"
`)

	env := EnvOverrides{
		ConfigPath:  path,
		APIURL:      "https://env.example.com",
		IdentityKey: "env-key",
	}

	resolved, err := Resolve(env)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", resolved.APIBaseURL)
	assert.Equal(t, "https://id.example.com", resolved.IdentityURL)
	assert.Equal(t, "env-key", resolved.IdentityKey)
}

func TestResolve_SessionPathOverride(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://api.example.com"

[identity]
url = "https://id.example.com"
key = "k"

[session]
path = "/var/lib/notes/session.json"
`)

	resolved, err := Resolve(EnvOverrides{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/notes/session.json", resolved.SessionPath)

	// Environment outranks the config file.
	resolved, err = Resolve(EnvOverrides{ConfigPath: path, SessionPath: "/tmp/s.json"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/s.json", resolved.SessionPath)
}

func TestResolve_StorageDefaultsToIdentity(t *testing.T) {
	env := EnvOverrides{
		ConfigPath:  filepath.Join(t.TempDir(), "absent.toml"),
		APIURL:      "https://api.example.com",
		IdentityURL: "https://id.example.com",
		IdentityKey: "k",
	}

	resolved, err := Resolve(env)
	require.NoError(t, err)
	assert.Equal(t, "https://id.example.com", resolved.StorageURL)
}

func TestResolve_MissingEndpointsFatal(t *testing.T) {
	tests := []struct {
		name string
		env  EnvOverrides
		want string
	}{
		{"no api url", EnvOverrides{IdentityURL: "https://id", IdentityKey: "k"}, "backend API base URL"},
		{"no identity url", EnvOverrides{APIURL: "https://api", IdentityKey: "k"}, "identity provider URL"},
		{"no identity key", EnvOverrides{APIURL: "https://api", IdentityURL: "https://id"}, "identity provider key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.env.ConfigPath = filepath.Join(t.TempDir(), "absent.toml")

			_, err := Resolve(tt.env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_LogLevel(t *testing.T) {
	r := &Resolved{APIBaseURL: "a", IdentityURL: "b", IdentityKey: "c", LogLevel: "loud"}
	err := Validate(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
}
