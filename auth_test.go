package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jkorhonen/notes-go/internal/config"
)

// writeTestConfig writes a minimal valid config file and points the --config
// flag machinery at it via the environment.
func writeTestConfig(t *testing.T) {
	t.Helper()

	cfgFile := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`[api]
base_url = "http://127.0.0.1:1"

[identity]
url = "http://127.0.0.1:1"
key = "anon-key"
`), 0o600))

	t.Setenv(config.EnvConfig, cfgFile)
	t.Setenv(config.EnvAPIURL, "")
	t.Setenv(config.EnvIdentityURL, "")
	t.Setenv(config.EnvIdentityKey, "")
	t.Setenv(config.EnvSessionPath, filepath.Join(t.TempDir(), "session.json"))
}

func TestWhoami_NotSignedIn(t *testing.T) {
	writeTestConfig(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--quiet", "whoami"})

	// No saved session and no provider reachable: whoami reports the
	// unauthenticated state rather than failing.
	require.NoError(t, cmd.Execute())
}

func TestList_RequiresSignIn(t *testing.T) {
	writeTestConfig(t)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--quiet", "list"})

	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "not signed in")
}
