package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/plexmirror/internal/config"
)

var version = "dev"

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "plexmirror",
	Short: "Mirror playlists, collections, and metadata between Plex servers",
	Long: `plexmirror - server to server Plex migration

Recreates ordered playlists and named collection memberships on a
destination server so they mirror a source server, matching items by
provider GUIDs. Optionally syncs a whitelisted set of metadata fields
and artwork. The source is never written to.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("plexmirror {{.Version}}\n")
}

// newLogger builds the run logger. --debug wins over the configured level.
func newLogger(configuredLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch configuredLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.FromEnv(), nil
}

// exitConfig reports a configuration problem and exits with code 2, keeping
// it distinct from runtime failures.
func exitConfig(err error) {
	_, _ = os.Stderr.WriteString("error: " + err.Error() + "\n")
	os.Exit(2)
}
