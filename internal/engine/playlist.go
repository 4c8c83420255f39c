package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// PlaylistPhase tracks how far one playlist got through reconciliation.
type PlaylistPhase int

const (
	PhasePlanned PlaylistPhase = iota
	PhaseCreating
	PhaseReplacing
	PhaseSeeded
	PhaseFilling
	PhaseDone
	PhaseFailed
)

func (p PlaylistPhase) String() string {
	switch p {
	case PhasePlanned:
		return "planned"
	case PhaseCreating:
		return "creating"
	case PhaseReplacing:
		return "replacing"
	case PhaseSeeded:
		return "seeded"
	case PhaseFilling:
		return "filling"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PlaylistResult is the outcome of reconciling one source playlist.
type PlaylistResult struct {
	Name       string // destination name after rename template
	Phase      PlaylistPhase
	Replaced   bool
	SkipReason string
	Report     AddReport
	Total      int // source items before matching
	Unmatched  []MediaItem
	Err        error
}

// Skipped reports whether the playlist never reached a server write.
func (r PlaylistResult) Skipped() bool { return r.SkipReason != "" }

// PlaylistReconciler recreates source playlists on the destination with name
// and order preserved.
type PlaylistReconciler struct {
	src    Library
	dest   Library
	writer Writer
	index  *CatalogIndex
	batch  *BatchWriter
	filter Filter
	rename Template

	replace          bool
	materializeSmart bool
	log              *slog.Logger
}

// NewPlaylistReconciler wires a reconciler for one run.
func NewPlaylistReconciler(src, dest Library, writer Writer, index *CatalogIndex, batch *BatchWriter,
	filter Filter, rename Template, replace, materializeSmart bool, log *slog.Logger) *PlaylistReconciler {
	return &PlaylistReconciler{
		src:              src,
		dest:             dest,
		writer:           writer,
		index:            index,
		batch:            batch,
		filter:           filter,
		rename:           rename,
		replace:          replace,
		materializeSmart: materializeSmart,
		log:              log.With("component", "playlists"),
	}
}

// ReconcileAll processes every source playlist in order. Per-playlist
// failures are recorded in the results, never aborting the run.
func (r *PlaylistReconciler) ReconcileAll(ctx context.Context) ([]PlaylistResult, error) {
	playlists, err := r.src.Playlists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source playlists: %w", err)
	}
	r.log.Info("source playlists found", "count", len(playlists))

	results := make([]PlaylistResult, 0, len(playlists))
	for _, pl := range playlists {
		results = append(results, r.reconcile(ctx, pl))
	}
	return results, nil
}

func (r *PlaylistReconciler) reconcile(ctx context.Context, pl Playlist) PlaylistResult {
	res := PlaylistResult{Name: r.rename.Apply(pl.Title), Phase: PhasePlanned}

	if !r.filter.Keep(pl.Title) {
		res.SkipReason = "filtered"
		r.log.Debug("playlist filtered", "playlist", pl.Title)
		return res
	}
	if pl.Smart && !r.materializeSmart {
		res.SkipReason = "smart playlist (enable materialization to copy as static)"
		r.log.Info("skipping smart playlist", "playlist", pl.Title)
		return res
	}
	if pl.Type != "" && pl.Type != "video" {
		res.SkipReason = fmt.Sprintf("non-video playlist type %q", pl.Type)
		r.log.Info("skipping non-video playlist", "playlist", pl.Title, "type", pl.Type)
		return res
	}

	// For smart playlists this snapshots the currently resolved members;
	// from here on the list is static.
	items, err := r.src.PlaylistItems(ctx, pl.Key)
	if err != nil {
		res.Phase = PhaseFailed
		res.Err = fmt.Errorf("list items of %q: %w", pl.Title, err)
		return res
	}
	res.Total = len(items)

	matched := r.resolveOrdered(items, &res)
	r.log.Debug("playlist matched", "playlist", pl.Title,
		"matched", len(matched), "total", len(items), "unmatched", len(res.Unmatched))

	existing, err := findPlaylist(ctx, r.dest, res.Name)
	if err != nil {
		res.Phase = PhaseFailed
		res.Err = fmt.Errorf("look up destination playlist %q: %w", res.Name, err)
		return res
	}

	if existing != nil && !r.replace {
		res.SkipReason = "already exists on destination (merge not supported)"
		r.log.Info("skipping existing playlist", "playlist", res.Name)
		return res
	}

	if len(matched) == 0 {
		res.SkipReason = "no items matched on destination"
		r.log.Warn("no destination matches for playlist", "playlist", pl.Title)
		return res
	}

	if existing != nil {
		res.Phase = PhaseReplacing
		res.Replaced = true
		r.log.Info("deleting existing playlist before recreate", "playlist", res.Name)
		if err := r.writer.DeletePlaylist(ctx, existing.Key); err != nil {
			res.Phase = PhaseFailed
			res.Err = fmt.Errorf("delete existing playlist %q: %w", res.Name, err)
			return res
		}
	} else {
		res.Phase = PhaseCreating
	}

	container := &playlistContainer{writer: r.writer, title: res.Name}
	if err := r.batch.CreateSeeded(ctx, container, matched[0]); err != nil {
		res.Phase = PhaseFailed
		res.Err = fmt.Errorf("create playlist %q: %w", res.Name, err)
		return res
	}
	res.Phase = PhaseSeeded
	res.Report.Bulk++

	res.Phase = PhaseFilling
	report := r.batch.Append(ctx, container, matched[1:])
	res.Report.Bulk += report.Bulk
	res.Report.Fallback = report.Fallback
	res.Report.Failures = report.Failures

	res.Phase = PhaseDone
	r.log.Info("playlist reconciled", "playlist", res.Name,
		"bulk", report.Bulk, "fallback", report.Fallback, "failed", report.Failed())
	return res
}

// resolveOrdered maps the ordered source sequence onto destination items,
// suppressing duplicate source entries and duplicate destination matches on
// first occurrence, preserving relative order throughout.
func (r *PlaylistReconciler) resolveOrdered(items []MediaItem, res *PlaylistResult) []MediaItem {
	seenSrc := make(map[string]bool)
	seenDest := make(map[string]bool)
	matched := make([]MediaItem, 0, len(items))
	for _, it := range items {
		if it.Key != "" && seenSrc[it.Key] {
			continue
		}
		seenSrc[it.Key] = true
		hit, ok := r.index.Resolve(it)
		if !ok {
			res.Unmatched = append(res.Unmatched, it)
			continue
		}
		if seenDest[hit.Key] {
			continue
		}
		seenDest[hit.Key] = true
		matched = append(matched, hit)
	}
	return matched
}

func findPlaylist(ctx context.Context, dest Library, name string) (*Playlist, error) {
	playlists, err := dest.Playlists(ctx)
	if err != nil {
		return nil, err
	}
	for _, pl := range playlists {
		if pl.Title == name {
			return &pl, nil
		}
	}
	return nil, nil
}

// playlistContainer binds a Writer and a playlist title behind the batch
// writer's Container interface. The key is captured at creation time.
type playlistContainer struct {
	writer Writer
	title  string
	key    string
}

func (c *playlistContainer) Create(ctx context.Context, seed MediaItem) error {
	key, err := c.writer.CreatePlaylist(ctx, c.title, seed)
	if err != nil {
		return err
	}
	c.key = key
	return nil
}

func (c *playlistContainer) CreateManual(ctx context.Context, seed MediaItem) error {
	key, err := c.writer.CreatePlaylistManual(ctx, c.title, seed)
	if err != nil {
		return err
	}
	c.key = key
	return nil
}

func (c *playlistContainer) Add(ctx context.Context, items []MediaItem) error {
	return c.writer.AddPlaylistItems(ctx, c.key, items)
}
