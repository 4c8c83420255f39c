package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// CatalogIndex maps every GUID on the destination to the first item seen
// carrying it. Built exactly once per run and read-only afterwards.
type CatalogIndex struct {
	byGUID   map[string]MediaItem
	items    int
	titles   []string
	warnings []string
}

// BuildIndex enumerates every movie and show section on the destination and
// records a (guid, item) pair for each GUID. A section that fails to
// enumerate is skipped with a warning; the resulting partial index makes the
// affected items unresolvable, which downstream code treats as unmatched,
// not as an error.
func BuildIndex(ctx context.Context, dest Library, log *slog.Logger) (*CatalogIndex, error) {
	idx := &CatalogIndex{byGUID: make(map[string]MediaItem)}

	sections, err := dest.Sections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list destination sections: %w", err)
	}

	for _, s := range sections {
		if !s.Video() {
			continue
		}
		log.Info("indexing destination section", "section", s.Title, "type", s.Type)
		items, err := dest.SectionItems(ctx, s)
		if err != nil {
			log.Warn("failed to index section, matches from it will be unresolved",
				"section", s.Title, "error", err)
			idx.warnings = append(idx.warnings,
				fmt.Sprintf("section %q skipped: %v", s.Title, err))
			continue
		}
		for _, it := range items {
			idx.add(it)
		}
	}

	log.Info("destination index built", "guids", len(idx.byGUID), "items", idx.items)
	return idx, nil
}

func (ix *CatalogIndex) add(item MediaItem) {
	for _, g := range item.GUIDs {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		if prev, ok := ix.byGUID[g]; ok {
			if prev.Key != item.Key {
				// First insertion wins; a duplicated GUID usually means a
				// mistagged library, which should not abort a migration.
				ix.warnings = append(ix.warnings, fmt.Sprintf(
					"guid %s on both %q and %q, keeping %q",
					g, prev.DisplayTitle(), item.DisplayTitle(), prev.DisplayTitle()))
			}
			continue
		}
		ix.byGUID[g] = item
	}
	ix.items++
	ix.titles = append(ix.titles, item.DisplayTitle())
}

// Resolve matches a source item to at most one destination item by probing
// its GUIDs in preference order. Pure function of the index and the item's
// GUID set.
func (ix *CatalogIndex) Resolve(item MediaItem) (MediaItem, bool) {
	for _, g := range item.OrderedGUIDs() {
		if hit, ok := ix.byGUID[strings.ToLower(strings.TrimSpace(g))]; ok {
			return hit, true
		}
	}
	return MediaItem{}, false
}

// GUIDs returns the number of distinct GUIDs indexed.
func (ix *CatalogIndex) GUIDs() int { return len(ix.byGUID) }

// Items returns the number of destination items seen while building.
func (ix *CatalogIndex) Items() int { return ix.items }

// Titles returns the display titles of every indexed destination item, used
// to suggest near-matches for unresolved source items.
func (ix *CatalogIndex) Titles() []string { return ix.titles }

// Warnings returns collision and skipped-section warnings recorded during
// the build.
func (ix *CatalogIndex) Warnings() []string { return ix.warnings }
