// Package config handles TOML configuration loading with environment
// variable substitution and environment fallbacks for server credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrNotConfigured indicates a server URL or token is missing. Treated as a
// configuration error (exit code 2), not a runtime failure.
var ErrNotConfigured = errors.New("server not configured")

// Config is the root configuration structure.
type Config struct {
	Source      ServerConfig `toml:"source"`
	Destination ServerConfig `toml:"destination"`

	Insecure  bool   `toml:"insecure"`
	BatchSize int    `toml:"batch_size"`
	LogLevel  string `toml:"log_level"`
	Journal   string `toml:"journal"`

	Playlists   FilterConfig   `toml:"playlists"`
	Collections FilterConfig   `toml:"collections"`
	Metadata    MetadataConfig `toml:"metadata"`
}

// ServerConfig identifies one Plex server.
type ServerConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// FilterConfig holds the include/exclude patterns and rename template for
// one entity kind.
type FilterConfig struct {
	Include        string `toml:"include"`
	Exclude        string `toml:"exclude"`
	RenameTemplate string `toml:"rename_template"`
}

// MetadataConfig configures the metadata sync phase.
type MetadataConfig struct {
	Include    string   `toml:"include"`
	Exclude    string   `toml:"exclude"`
	Fields     []string `toml:"fields"`
	Artwork    bool     `toml:"artwork"`
	LockFields bool     `toml:"lock_fields"`
}

// Load reads and parses the configuration file, then applies environment
// fallbacks and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// FromEnv builds a configuration purely from the environment, for runs
// without a config file.
func FromEnv() *Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

// applyEnv fills unset fields from the environment. SRC_PLEX_URL and
// SRC_PLEX_TOKEN name the source; DEST_PLEX_URL/DEST_PLEX_TOKEN the
// destination, with PLEX_URL/PLEX_TOKEN as a shorthand for the destination.
// VERIFY_SSL=false flips the insecure toggle.
func (c *Config) applyEnv() {
	if c.Source.URL == "" {
		c.Source.URL = os.Getenv("SRC_PLEX_URL")
	}
	if c.Source.Token == "" {
		c.Source.Token = os.Getenv("SRC_PLEX_TOKEN")
	}
	if c.Destination.URL == "" {
		c.Destination.URL = firstEnv("DEST_PLEX_URL", "PLEX_URL")
	}
	if c.Destination.Token == "" {
		c.Destination.Token = firstEnv("DEST_PLEX_TOKEN", "PLEX_TOKEN")
	}
	if v, ok := os.LookupEnv("VERIFY_SSL"); ok {
		switch strings.ToLower(v) {
		case "0", "false", "no":
			c.Insecure = true
		}
	}
}

func (c *Config) applyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks that both servers are addressable.
func (c *Config) Validate() error {
	if c.Source.URL == "" || c.Source.Token == "" {
		return fmt.Errorf("%w: source URL and token are required (flags or SRC_PLEX_URL/SRC_PLEX_TOKEN)", ErrNotConfigured)
	}
	if c.Destination.URL == "" || c.Destination.Token == "" {
		return fmt.Errorf("%w: destination URL and token are required (flags or DEST_PLEX_URL/DEST_PLEX_TOKEN)", ErrNotConfigured)
	}
	return nil
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1] // Strip ${ and }
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match // Leave unchanged if not found
	})
}
