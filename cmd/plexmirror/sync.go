package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vmunix/plexmirror/internal/config"
	"github.com/vmunix/plexmirror/internal/engine"
	"github.com/vmunix/plexmirror/internal/journal"
	"github.com/vmunix/plexmirror/internal/plex"
)

var syncFlags struct {
	sourceURL   string
	sourceToken string
	destURL     string
	destToken   string

	replace          bool
	collections      bool
	noPlaylists      bool
	materializeSmart bool
	batchSize        int

	include        string
	exclude        string
	renameTemplate string

	collectionInclude        string
	collectionExclude        string
	collectionRenameTemplate string

	syncMetadata bool
	fields       string
	artwork      bool
	lockFields   bool
	metaInclude  string
	metaExclude  string

	dryRun   bool
	insecure bool
	journal  string
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror playlists and collections from the source to the destination",
	Long: `Builds a GUID index of the destination library, then recreates the
source server's playlists (in order) and collection memberships on the
destination. Items present on the source but absent from the destination
are reported, never invented. The source is only ever read.`,
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.StringVar(&syncFlags.sourceURL, "source-url", "", "Source server URL (or SRC_PLEX_URL)")
	f.StringVar(&syncFlags.sourceToken, "source-token", "", "Source server token (or SRC_PLEX_TOKEN)")
	f.StringVar(&syncFlags.destURL, "dest-url", "", "Destination server URL (or DEST_PLEX_URL/PLEX_URL)")
	f.StringVar(&syncFlags.destToken, "dest-token", "", "Destination server token (or DEST_PLEX_TOKEN/PLEX_TOKEN)")

	f.BoolVar(&syncFlags.replace, "replace", false, "Replace containers that already exist on the destination")
	f.BoolVar(&syncFlags.collections, "collections", false, "Mirror collection memberships too")
	f.BoolVar(&syncFlags.noPlaylists, "no-playlists", false, "Skip the playlist phase")
	f.BoolVar(&syncFlags.materializeSmart, "materialize-smart", false, "Copy smart playlists as static snapshots")
	f.IntVar(&syncFlags.batchSize, "batch-size", 0, "Items per bulk add request (default 100)")

	f.StringVar(&syncFlags.include, "include", "", "Only mirror playlists whose name matches this regex")
	f.StringVar(&syncFlags.exclude, "exclude", "", "Skip playlists whose name matches this regex")
	f.StringVar(&syncFlags.renameTemplate, "rename-template", "", "Destination playlist name template, {name} is the source name")

	f.StringVar(&syncFlags.collectionInclude, "collection-include", "", "Only mirror collections whose name matches this regex")
	f.StringVar(&syncFlags.collectionExclude, "collection-exclude", "", "Skip collections whose name matches this regex")
	f.StringVar(&syncFlags.collectionRenameTemplate, "collection-rename-template", "", "Destination collection name template")

	f.BoolVar(&syncFlags.syncMetadata, "sync-metadata", false, "Copy whitelisted metadata fields for matched items")
	f.StringVar(&syncFlags.fields, "fields", "", "Comma-separated metadata fields to sync (default whitelist)")
	f.BoolVar(&syncFlags.artwork, "artwork", false, "Copy posters and background art for matched items")
	f.BoolVar(&syncFlags.lockFields, "lock-fields", false, "Lock fields after writing so agents will not overwrite them")
	f.StringVar(&syncFlags.metaInclude, "meta-include", "", "Only sync metadata for titles matching this regex")
	f.StringVar(&syncFlags.metaExclude, "meta-exclude", "", "Skip metadata for titles matching this regex")

	f.BoolVar(&syncFlags.dryRun, "dry-run", false, "Plan everything, write nothing")
	f.BoolVar(&syncFlags.insecure, "insecure", false, "Skip TLS certificate verification")
	f.StringVar(&syncFlags.journal, "journal", "", "SQLite file to record run summaries in")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		exitConfig(err)
	}
	applySyncFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		exitConfig(err)
	}

	opts, err := buildOptions(cfg)
	if err != nil {
		exitConfig(err)
	}

	log := newLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src := plex.NewClient(cfg.Source.URL, cfg.Source.Token, cfg.Insecure, log.With("server", "source"))
	dst := plex.NewClient(cfg.Destination.URL, cfg.Destination.Token, cfg.Insecure, log.With("server", "destination"))

	// Preflight both servers before touching anything. Reads only, so the
	// two identity calls may overlap.
	g, gctx := errgroup.WithContext(ctx)
	var srcID, dstID *plex.Identity
	g.Go(func() error {
		var err error
		if srcID, err = src.Identity(gctx); err != nil {
			return fmt.Errorf("source server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if dstID, err = dst.Identity(gctx); err != nil {
			return fmt.Errorf("destination server: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("connected", "source", srcID.Name, "destination", dstID.Name)

	orch := engine.NewOrchestrator(src, dst, dst, opts, log)
	sum, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Print(sum.Render())

	if path := cfg.Journal; path != "" {
		if err := recordRun(path, sum); err != nil {
			log.Warn("journal write failed", "error", err)
		}
	}
	return nil
}

// applySyncFlags lets command-line flags override the loaded configuration.
func applySyncFlags(cmd *cobra.Command, cfg *config.Config) {
	if syncFlags.sourceURL != "" {
		cfg.Source.URL = syncFlags.sourceURL
	}
	if syncFlags.sourceToken != "" {
		cfg.Source.Token = syncFlags.sourceToken
	}
	if syncFlags.destURL != "" {
		cfg.Destination.URL = syncFlags.destURL
	}
	if syncFlags.destToken != "" {
		cfg.Destination.Token = syncFlags.destToken
	}
	if syncFlags.insecure {
		cfg.Insecure = true
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.BatchSize = syncFlags.batchSize
	}
	if syncFlags.journal != "" {
		cfg.Journal = syncFlags.journal
	}

	if syncFlags.include != "" {
		cfg.Playlists.Include = syncFlags.include
	}
	if syncFlags.exclude != "" {
		cfg.Playlists.Exclude = syncFlags.exclude
	}
	if syncFlags.renameTemplate != "" {
		cfg.Playlists.RenameTemplate = syncFlags.renameTemplate
	}
	if syncFlags.collectionInclude != "" {
		cfg.Collections.Include = syncFlags.collectionInclude
	}
	if syncFlags.collectionExclude != "" {
		cfg.Collections.Exclude = syncFlags.collectionExclude
	}
	if syncFlags.collectionRenameTemplate != "" {
		cfg.Collections.RenameTemplate = syncFlags.collectionRenameTemplate
	}
	if syncFlags.metaInclude != "" {
		cfg.Metadata.Include = syncFlags.metaInclude
	}
	if syncFlags.metaExclude != "" {
		cfg.Metadata.Exclude = syncFlags.metaExclude
	}
	if syncFlags.fields != "" {
		cfg.Metadata.Fields = splitFields(syncFlags.fields)
	}
	if syncFlags.artwork {
		cfg.Metadata.Artwork = true
	}
	if syncFlags.lockFields {
		cfg.Metadata.LockFields = true
	}
}

func buildOptions(cfg *config.Config) (engine.Options, error) {
	opts := engine.Options{
		Playlists:   !syncFlags.noPlaylists,
		Collections: syncFlags.collections,
		Metadata:    syncFlags.syncMetadata,

		Replace:          syncFlags.replace,
		DryRun:           syncFlags.dryRun,
		BatchSize:        cfg.BatchSize,
		MaterializeSmart: syncFlags.materializeSmart,

		PlaylistRename:   engine.Template(cfg.Playlists.RenameTemplate),
		CollectionRename: engine.Template(cfg.Collections.RenameTemplate),

		Fields:     cfg.Metadata.Fields,
		Artwork:    cfg.Metadata.Artwork,
		LockFields: cfg.Metadata.LockFields,
	}

	var err error
	if opts.PlaylistFilter, err = engine.NewFilter(cfg.Playlists.Include, cfg.Playlists.Exclude); err != nil {
		return opts, fmt.Errorf("playlist filter: %w", err)
	}
	if opts.CollectionFilter, err = engine.NewFilter(cfg.Collections.Include, cfg.Collections.Exclude); err != nil {
		return opts, fmt.Errorf("collection filter: %w", err)
	}
	if opts.MetadataFilter, err = engine.NewFilter(cfg.Metadata.Include, cfg.Metadata.Exclude); err != nil {
		return opts, fmt.Errorf("metadata filter: %w", err)
	}
	return opts, nil
}

func recordRun(path string, sum *engine.Summary) error {
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()
	_, err = j.Append(sum)
	return err
}

func splitFields(s string) []string {
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}
