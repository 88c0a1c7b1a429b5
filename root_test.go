package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkorhonen/notes-go/internal/config"
)

// Global flag reset pattern: newRootCmd() binds flags via StringVar/BoolVar,
// which reset the global flag variables to their zero values. Tests must
// either set globals AFTER newRootCmd() returns, or use cmd.SetArgs() +
// cmd.Execute() so Cobra parses the flags.

func withLoggerGlobals(t *testing.T) {
	t.Helper()

	oldCfg := resolvedCfg
	oldVerbose := flagVerbose
	oldQuiet := flagQuiet

	t.Cleanup(func() {
		resolvedCfg = oldCfg
		flagVerbose = oldVerbose
		flagQuiet = oldQuiet
	})
}

func TestBuildLogger_Default(t *testing.T) {
	withLoggerGlobals(t)

	resolvedCfg = nil
	flagVerbose = false
	flagQuiet = false

	logger := buildLogger()

	// Default level is Info.
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_ConfigDebug(t *testing.T) {
	withLoggerGlobals(t)

	resolvedCfg = &config.Resolved{LogLevel: "debug"}
	flagVerbose = false
	flagQuiet = false

	logger := buildLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_VerboseOverridesConfig(t *testing.T) {
	withLoggerGlobals(t)

	// Config says error, but --verbose overrides to Debug.
	resolvedCfg = &config.Resolved{LogLevel: "error"}
	flagVerbose = true
	flagQuiet = false

	logger := buildLogger()

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLogger_QuietOverrides(t *testing.T) {
	withLoggerGlobals(t)

	resolvedCfg = nil
	flagVerbose = false
	flagQuiet = true

	logger := buildLogger()

	// Error is enabled, but warn should not be.
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}

// --- Cobra structure tests ---

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	expected := []string{"login", "signup", "logout", "whoami", "list", "add", "edit", "rm", "avatar", "watch"}
	for _, name := range expected {
		found := false

		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true

				break
			}
		}

		assert.True(t, found, "expected subcommand %q not found", name)
	}
}

func TestNewRootCmd_PersistentFlags(t *testing.T) {
	cmd := newRootCmd()

	expectedFlags := []string{"config", "json", "verbose", "quiet"}
	for _, name := range expectedFlags {
		flag := cmd.PersistentFlags().Lookup(name)
		assert.NotNil(t, flag, "expected persistent flag %q not found", name)
	}
}

func TestNewRootCmd_AvatarSubcommands(t *testing.T) {
	cmd := newRootCmd()

	avatarSub, _, err := cmd.Find([]string{"avatar"})
	require.NoError(t, err)
	require.Equal(t, "avatar", avatarSub.Name())

	expectedSubs := []string{"set", "url"}
	for _, name := range expectedSubs {
		found := false

		for _, sub := range avatarSub.Commands() {
			if sub.Name() == name {
				found = true

				break
			}
		}

		assert.True(t, found, "expected avatar subcommand %q not found", name)
	}
}

// --- defaultHTTPClient tests ---

func TestDefaultHTTPClient_HasTimeout(t *testing.T) {
	client := defaultHTTPClient()
	assert.Equal(t, httpClientTimeout, client.Timeout)
}

// --- loadConfig tests ---

func TestLoadConfig_ValidTOML(t *testing.T) {
	oldCfg := resolvedCfg
	oldConfigPath := flagConfigPath

	t.Cleanup(func() {
		resolvedCfg = oldCfg
		flagConfigPath = oldConfigPath
	})

	cfgFile := filepath.Join(t.TempDir(), "config.toml")

	tomlContent := `[api]
base_url = "https://api.example.com"

[identity]
url = "https://id.example.com"
key = "anon-key"
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(tomlContent), 0o600))

	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvStorageURL, "")
	flagConfigPath = cfgFile

	require.NoError(t, loadConfig())
	require.NotNil(t, resolvedCfg)

	assert.Equal(t, "https://api.example.com", resolvedCfg.APIBaseURL)
	assert.Equal(t, "https://id.example.com", resolvedCfg.IdentityURL)

	// Storage falls back to the identity URL when not configured.
	assert.Equal(t, "https://id.example.com", resolvedCfg.StorageURL)
}

func TestLoadConfig_FlagOutranksEnv(t *testing.T) {
	oldCfg := resolvedCfg
	oldConfigPath := flagConfigPath

	t.Cleanup(func() {
		resolvedCfg = oldCfg
		flagConfigPath = oldConfigPath
	})

	dir := t.TempDir()

	envFile := filepath.Join(dir, "env.toml")
	require.NoError(t, os.WriteFile(envFile, []byte(`[api]
base_url = "https://env.example.com"

[identity]
url = "https://id.example.com"
key = "anon-key"
`), 0o600))

	flagFile := filepath.Join(dir, "flag.toml")
	require.NoError(t, os.WriteFile(flagFile, []byte(`[api]
base_url = "https://flag.example.com"

[identity]
url = "https://id.example.com"
key = "anon-key"
`), 0o600))

	t.Setenv(config.EnvConfig, envFile)
	t.Setenv(config.EnvAPIURL, "")
	flagConfigPath = flagFile

	require.NoError(t, loadConfig())
	require.NotNil(t, resolvedCfg)
	assert.Equal(t, "https://flag.example.com", resolvedCfg.APIBaseURL)
}

func TestLoadConfig_MissingEndpointsFails(t *testing.T) {
	oldCfg := resolvedCfg
	oldConfigPath := flagConfigPath

	t.Cleanup(func() {
		resolvedCfg = oldCfg
		flagConfigPath = oldConfigPath
	})

	// An empty config file resolves to no endpoints, which is a startup error.
	cfgFile := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgFile, nil, 0o600))

	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvIdentityURL, "")
	t.Setenv(config.EnvIdentityKey, "")
	flagConfigPath = cfgFile

	err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}
