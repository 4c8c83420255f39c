package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultSyncFields is the metadata whitelist applied when the caller does
// not pick one. Field names follow the destination API's spelling.
var DefaultSyncFields = []string{
	"summary",
	"tagline",
	"contentRating",
	"originallyAvailableAt",
	"titleSort",
}

// FieldWrite is one planned field update on a matched destination item.
type FieldWrite struct {
	Field string
	Value string
}

// SyncPlan holds everything the syncer would write for one matched item.
// Plans are computed before any write so a dry run reports them exactly.
type SyncPlan struct {
	Source MediaItem
	Dest   MediaItem
	Writes []FieldWrite
}

// PlanFields diffs the whitelisted fields between a source item and its
// destination match. Fields that are empty on the source are never planned:
// an absent source value must not clobber the destination.
func PlanFields(src, dest MediaItem, fields []string) []FieldWrite {
	var writes []FieldWrite
	for _, f := range fields {
		sv := strings.TrimSpace(fieldValue(src, f))
		if sv == "" {
			continue
		}
		if sv == strings.TrimSpace(fieldValue(dest, f)) {
			continue
		}
		writes = append(writes, FieldWrite{Field: f, Value: sv})
	}
	return writes
}

func fieldValue(item MediaItem, field string) string {
	switch field {
	case "summary":
		return item.Summary
	case "tagline":
		return item.Tagline
	case "contentRating":
		return item.ContentRating
	case "originallyAvailableAt":
		return item.OriginallyAvailableAt
	case "titleSort":
		return item.TitleSort
	default:
		return ""
	}
}

// MetadataResult tallies one metadata sync phase.
type MetadataResult struct {
	Scanned        int
	ItemsChanged   int
	FieldsWritten  int
	FieldsFailed   int
	ArtworkCopied  int
	ArtworkFailed  int
	Unmatched      []MediaItem
}

// MetadataSyncer copies whitelisted fields (and optionally artwork) from
// matched source items onto their destination counterparts. A failure on one
// item is recorded and never blocks the next.
type MetadataSyncer struct {
	src     Library
	writer  Writer
	index   *CatalogIndex
	filter  Filter
	fields  []string
	artwork bool
	lock    bool
	log     *slog.Logger
}

// NewMetadataSyncer wires a syncer for one run. An empty field list selects
// DefaultSyncFields.
func NewMetadataSyncer(src Library, writer Writer, index *CatalogIndex, filter Filter,
	fields []string, artwork, lock bool, log *slog.Logger) *MetadataSyncer {
	if len(fields) == 0 {
		fields = DefaultSyncFields
	}
	return &MetadataSyncer{
		src:     src,
		writer:  writer,
		index:   index,
		filter:  filter,
		fields:  fields,
		artwork: artwork,
		lock:    lock,
		log:     log.With("component", "metadata"),
	}
}

// SyncAll walks every video section on the source and syncs each matched,
// title-filtered item.
func (s *MetadataSyncer) SyncAll(ctx context.Context) (MetadataResult, error) {
	var res MetadataResult

	sections, err := s.src.Sections(ctx)
	if err != nil {
		return res, fmt.Errorf("list source sections: %w", err)
	}

	for _, sec := range sections {
		if !sec.Video() {
			continue
		}
		s.log.Info("scanning source section", "section", sec.Title)
		items, err := s.src.SectionItems(ctx, sec)
		if err != nil {
			s.log.Warn("could not enumerate section", "section", sec.Title, "error", err)
			continue
		}
		for _, it := range items {
			res.Scanned++
			if !s.filter.Keep(it.Title) {
				continue
			}
			dest, ok := s.index.Resolve(it)
			if !ok {
				res.Unmatched = append(res.Unmatched, it)
				continue
			}
			s.syncItem(ctx, it, dest, &res)
		}
	}
	return res, nil
}

func (s *MetadataSyncer) syncItem(ctx context.Context, src, dest MediaItem, res *MetadataResult) {
	plan := SyncPlan{Source: src, Dest: dest, Writes: PlanFields(src, dest, s.fields)}

	if len(plan.Writes) > 0 {
		values := make(map[string]string, len(plan.Writes))
		for _, w := range plan.Writes {
			values[w.Field] = w.Value
		}
		if err := s.writer.EditFields(ctx, dest, values); err != nil {
			s.log.Warn("field write failed", "item", src.DisplayTitle(), "error", err)
			res.FieldsFailed += len(plan.Writes)
		} else {
			res.ItemsChanged++
			res.FieldsWritten += len(plan.Writes)
			if s.lock {
				// Lock immediately so an agent refresh cannot undo the write.
				for _, w := range plan.Writes {
					if err := s.writer.LockField(ctx, dest, w.Field); err != nil {
						s.log.Warn("field lock failed", "item", src.DisplayTitle(),
							"field", w.Field, "error", err)
					}
				}
			}
			s.log.Debug("fields applied", "item", src.DisplayTitle(), "fields", len(plan.Writes))
		}
	}

	if s.artwork {
		s.copyArtwork(ctx, src, dest, res)
	}
}

func (s *MetadataSyncer) copyArtwork(ctx context.Context, src, dest MediaItem, res *MetadataResult) {
	copyOne := func(path string, upload func(context.Context, MediaItem, []byte) error, kind string) {
		if path == "" {
			return
		}
		data, err := s.src.Artwork(ctx, path)
		if err != nil {
			s.log.Warn("artwork download failed", "item", src.DisplayTitle(), "kind", kind, "error", err)
			res.ArtworkFailed++
			return
		}
		if err := upload(ctx, dest, data); err != nil {
			s.log.Warn("artwork upload failed", "item", src.DisplayTitle(), "kind", kind, "error", err)
			res.ArtworkFailed++
			return
		}
		res.ArtworkCopied++
	}

	copyOne(src.Thumb, s.writer.UploadPoster, "poster")
	copyOne(src.Art, s.writer.UploadArt, "art")
}
