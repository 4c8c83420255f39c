// Package engine implements GUID-based catalog reconciliation between two
// media servers: indexing, matching, batched container writes, and metadata
// sync.
package engine

import (
	"sort"
	"strings"
)

// MediaItem identifies one playable unit (movie or episode) on one server.
// Items are constructed fresh from each enumeration call and never mutated.
type MediaItem struct {
	Key        string // server-local rating key, opaque outside that server
	Title      string
	Type       string // movie, episode
	Show       string // series title for episodes
	Season     int
	Episode    int
	Section    string // owning library section title
	SectionKey string
	GUIDs      []string // provider GUIDs, lowercased

	// Syncable metadata fields.
	Summary               string
	Tagline               string
	ContentRating         string
	OriginallyAvailableAt string
	TitleSort             string

	// Artwork paths on the owning server.
	Thumb string
	Art   string
}

// guidRank orders provider agents for match preference. Lower wins.
func guidRank(guid string) int {
	switch {
	case strings.HasPrefix(guid, "tmdb://"):
		return 0
	case strings.HasPrefix(guid, "imdb://"):
		return 1
	case strings.HasPrefix(guid, "tvdb://"):
		return 2
	case strings.HasPrefix(guid, "plex://"):
		return 3
	default:
		return 4
	}
}

// OrderedGUIDs returns the item's GUIDs in fixed agent-preference order
// (tmdb, imdb, tvdb, plex, then anything else). Within one agent the
// enumeration order is preserved, so matching stays deterministic.
func (m MediaItem) OrderedGUIDs() []string {
	out := make([]string, len(m.GUIDs))
	copy(out, m.GUIDs)
	sort.SliceStable(out, func(i, j int) bool {
		return guidRank(out[i]) < guidRank(out[j])
	})
	return out
}

// DisplayTitle renders the item for logs and summaries. Episodes carry their
// show context so an unmatched "Pilot" is identifiable.
func (m MediaItem) DisplayTitle() string {
	if m.Type == "episode" && m.Show != "" {
		return m.Show + " - " + m.Title
	}
	return m.Title
}
