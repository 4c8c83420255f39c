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
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
insecure = true
batch_size = 25
journal = "/var/lib/plexmirror/runs.db"

[source]
url = "http://src:32400"
token = "src-token"

[destination]
url = "http://dst:32400"
token = "dst-token"

[playlists]
include = "^Kids"
rename_template = "{name} (mirrored)"

[metadata]
fields = ["summary", "tagline"]
artwork = true
lock_fields = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://src:32400", cfg.Source.URL)
	assert.Equal(t, "dst-token", cfg.Destination.Token)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, "/var/lib/plexmirror/runs.db", cfg.Journal)
	assert.Equal(t, "^Kids", cfg.Playlists.Include)
	assert.Equal(t, "{name} (mirrored)", cfg.Playlists.RenameTemplate)
	assert.Equal(t, []string{"summary", "tagline"}, cfg.Metadata.Fields)
	assert.True(t, cfg.Metadata.LockFields)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_PLEX_TOKEN", "secret-token")
	path := writeConfig(t, `
[source]
url = "http://src:32400"
token = "${TEST_PLEX_TOKEN}"

[destination]
url = "http://dst:32400"
token = "${UNSET_VARIABLE_XYZ}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.Source.Token)
	// Unset variables are left as-is rather than silently emptied.
	assert.Equal(t, "${UNSET_VARIABLE_XYZ}", cfg.Destination.Token)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[source]
url = "http://src:32400"
token = "a"

[destination]
url = "http://dst:32400"
token = "b"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Insecure)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SRC_PLEX_URL", "http://src:32400")
	t.Setenv("SRC_PLEX_TOKEN", "src-token")
	t.Setenv("DEST_PLEX_URL", "http://dst:32400")
	t.Setenv("DEST_PLEX_TOKEN", "dst-token")
	t.Setenv("VERIFY_SSL", "false")

	cfg := FromEnv()
	assert.Equal(t, "http://src:32400", cfg.Source.URL)
	assert.Equal(t, "dst-token", cfg.Destination.Token)
	assert.True(t, cfg.Insecure)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvDestinationShorthand(t *testing.T) {
	t.Setenv("SRC_PLEX_URL", "http://src:32400")
	t.Setenv("SRC_PLEX_TOKEN", "src-token")
	t.Setenv("DEST_PLEX_URL", "")
	t.Setenv("DEST_PLEX_TOKEN", "")
	t.Setenv("PLEX_URL", "http://dst:32400")
	t.Setenv("PLEX_TOKEN", "shared-token")

	cfg := FromEnv()
	assert.Equal(t, "http://dst:32400", cfg.Destination.URL)
	assert.Equal(t, "shared-token", cfg.Destination.Token)
}

func TestFromEnvPrefersExplicitDestination(t *testing.T) {
	t.Setenv("DEST_PLEX_URL", "http://explicit:32400")
	t.Setenv("PLEX_URL", "http://shorthand:32400")

	cfg := FromEnv()
	assert.Equal(t, "http://explicit:32400", cfg.Destination.URL)
}

func TestValidate(t *testing.T) {
	var cfg Config
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg.Source = ServerConfig{URL: "http://src", Token: "a"}
	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "destination")

	cfg.Destination = ServerConfig{URL: "http://dst", Token: "b"}
	assert.NoError(t, cfg.Validate())
}

func TestVerifySSLValues(t *testing.T) {
	for _, v := range []string{"0", "false", "no", "False", "NO"} {
		t.Setenv("VERIFY_SSL", v)
		assert.True(t, FromEnv().Insecure, "VERIFY_SSL=%s", v)
	}
	for _, v := range []string{"1", "true", "yes", ""} {
		t.Setenv("VERIFY_SSL", v)
		assert.False(t, FromEnv().Insecure, "VERIFY_SSL=%s", v)
	}
}
