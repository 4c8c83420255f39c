package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Options selects which phases run and how each one behaves.
type Options struct {
	Playlists   bool
	Collections bool
	Metadata    bool

	Replace          bool
	DryRun           bool
	BatchSize        int
	MaterializeSmart bool

	PlaylistFilter   Filter
	CollectionFilter Filter
	MetadataFilter   Filter

	PlaylistRename   Template
	CollectionRename Template

	Fields     []string
	Artwork    bool
	LockFields bool
}

// UnmatchedTitle is one source item no destination item shares a GUID with.
type UnmatchedTitle struct {
	Title string
	GUID  string // first GUID of the source item, empty when untagged
	Hint  string // closest destination title, when one is similar enough
}

// Summary is the run-level tally. Append-only, single writer, always
// rendered at the end of a started run regardless of partial failures.
type Summary struct {
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time

	IndexedItems int
	IndexedGUIDs int

	PlaylistsCreated  int
	PlaylistsReplaced int
	PlaylistsSkipped  int
	PlaylistsFailed   int

	CollectionsCreated int
	CollectionsUpdated int
	CollectionsSkipped int
	CollectionsFailed  int

	ItemsBulk     int
	ItemsFallback int
	ItemsFailed   int

	FieldsWritten int
	FieldsFailed  int
	ArtworkCopied int
	ArtworkFailed int

	Unmatched []UnmatchedTitle
	Warnings  []string
}

func (s *Summary) addReport(r AddReport) {
	s.ItemsBulk += r.Bulk
	s.ItemsFallback += r.Fallback
	s.ItemsFailed += r.Failed()
}

func (s *Summary) addUnmatched(items []MediaItem, sg *Suggester) {
	seen := make(map[string]bool, len(s.Unmatched))
	for _, u := range s.Unmatched {
		seen[u.Title] = true
	}
	for _, it := range items {
		title := it.DisplayTitle()
		if seen[title] {
			continue
		}
		seen[title] = true
		u := UnmatchedTitle{Title: title}
		if guids := it.OrderedGUIDs(); len(guids) > 0 {
			u.GUID = guids[0]
		}
		if sg != nil {
			if hint, ok := sg.Closest(title); ok {
				u.Hint = hint
			}
		}
		s.Unmatched = append(s.Unmatched, u)
	}
}

// Render formats the summary for the console.
func (s *Summary) Render() string {
	var b strings.Builder
	if s.DryRun {
		b.WriteString("Dry run, no destination changes were made.\n")
	}
	fmt.Fprintf(&b, "Indexed %d GUIDs across %d destination items.\n", s.IndexedGUIDs, s.IndexedItems)
	fmt.Fprintf(&b, "Playlists:   %d created, %d replaced, %d skipped, %d failed\n",
		s.PlaylistsCreated, s.PlaylistsReplaced, s.PlaylistsSkipped, s.PlaylistsFailed)
	fmt.Fprintf(&b, "Collections: %d created, %d updated, %d skipped, %d failed\n",
		s.CollectionsCreated, s.CollectionsUpdated, s.CollectionsSkipped, s.CollectionsFailed)
	fmt.Fprintf(&b, "Items:       %d via bulk, %d via fallback, %d failed\n",
		s.ItemsBulk, s.ItemsFallback, s.ItemsFailed)
	fmt.Fprintf(&b, "Metadata:    %d fields written, %d failed, %d artwork copied, %d failed\n",
		s.FieldsWritten, s.FieldsFailed, s.ArtworkCopied, s.ArtworkFailed)
	if len(s.Unmatched) > 0 {
		fmt.Fprintf(&b, "Unmatched (%d):\n", len(s.Unmatched))
		for _, u := range s.Unmatched {
			line := "  " + u.Title
			if u.Hint != "" {
				line += " (closest on destination: " + u.Hint + ")"
			}
			b.WriteString(line + "\n")
		}
	}
	for _, w := range s.Warnings {
		b.WriteString("Warning: " + w + "\n")
	}
	fmt.Fprintf(&b, "Completed in %s.\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	return b.String()
}

// Orchestrator sequences one run: build the index once, then playlists,
// collections, and metadata as ordered phases. Strictly sequential; only
// one mutating call is ever in flight.
type Orchestrator struct {
	src    Library
	dest   Library
	writer Writer
	opts   Options
	log    *slog.Logger
}

// NewOrchestrator wires a run. In dry-run mode the writer is replaced with a
// recorder before any phase can see it.
func NewOrchestrator(src, dest Library, writer Writer, opts Options, log *slog.Logger) *Orchestrator {
	if opts.DryRun {
		writer = NewNopWriter()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{src: src, dest: dest, writer: writer, opts: opts, log: log}
}

// Run executes the selected phases and always returns a summary when the
// index build succeeded, even if individual entities failed.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{DryRun: o.opts.DryRun, StartedAt: time.Now()}

	index, err := BuildIndex(ctx, o.dest, o.log)
	if err != nil {
		return nil, err
	}
	sum.IndexedItems = index.Items()
	sum.IndexedGUIDs = index.GUIDs()
	sum.Warnings = append(sum.Warnings, index.Warnings()...)

	suggester := NewSuggester(index.Titles())
	batch := NewBatchWriter(o.opts.BatchSize, o.log)

	if o.opts.Playlists {
		if err := o.runPlaylists(ctx, index, batch, suggester, sum); err != nil {
			return nil, err
		}
	}
	if o.opts.Collections {
		if err := o.runCollections(ctx, index, batch, suggester, sum); err != nil {
			return nil, err
		}
	}
	if o.opts.Metadata {
		if err := o.runMetadata(ctx, index, suggester, sum); err != nil {
			return nil, err
		}
	}

	sum.FinishedAt = time.Now()
	return sum, nil
}

func (o *Orchestrator) runPlaylists(ctx context.Context, index *CatalogIndex, batch *BatchWriter,
	sg *Suggester, sum *Summary) error {
	rec := NewPlaylistReconciler(o.src, o.dest, o.writer, index, batch,
		o.opts.PlaylistFilter, o.opts.PlaylistRename, o.opts.Replace, o.opts.MaterializeSmart, o.log)
	results, err := rec.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		switch {
		case r.Skipped():
			sum.PlaylistsSkipped++
		case r.Phase == PhaseFailed:
			sum.PlaylistsFailed++
			o.log.Error("playlist failed", "playlist", r.Name, "error", r.Err)
		case r.Replaced:
			sum.PlaylistsReplaced++
		default:
			sum.PlaylistsCreated++
		}
		sum.addReport(r.Report)
		sum.addUnmatched(r.Unmatched, sg)
	}
	return nil
}

func (o *Orchestrator) runCollections(ctx context.Context, index *CatalogIndex, batch *BatchWriter,
	sg *Suggester, sum *Summary) error {
	rec := NewCollectionReconciler(o.src, o.dest, o.writer, index, batch,
		o.opts.CollectionFilter, o.opts.CollectionRename, o.opts.Replace, o.log)
	results, err := rec.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range results {
		switch {
		case r.Skipped():
			sum.CollectionsSkipped++
		case r.Failed():
			sum.CollectionsFailed++
			o.log.Error("collection failed", "collection", r.Name, "error", r.Err)
		case r.Created:
			sum.CollectionsCreated++
		default:
			sum.CollectionsUpdated++
		}
		sum.addReport(r.Report)
		sum.addUnmatched(r.Unmatched, sg)
	}
	return nil
}

func (o *Orchestrator) runMetadata(ctx context.Context, index *CatalogIndex,
	sg *Suggester, sum *Summary) error {
	syncer := NewMetadataSyncer(o.src, o.writer, index, o.opts.MetadataFilter,
		o.opts.Fields, o.opts.Artwork, o.opts.LockFields, o.log)
	res, err := syncer.SyncAll(ctx)
	if err != nil {
		return err
	}
	sum.FieldsWritten += res.FieldsWritten
	sum.FieldsFailed += res.FieldsFailed
	sum.ArtworkCopied += res.ArtworkCopied
	sum.ArtworkFailed += res.ArtworkFailed
	sum.addUnmatched(res.Unmatched, sg)
	return nil
}
