package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanFields(t *testing.T) {
	src := movie("s1", "Alpha")
	src.Summary = "A new summary"
	src.ContentRating = "PG-13"
	src.TitleSort = "Alpha, The"

	dest := movie("d1", "Alpha")
	dest.Summary = "The old summary"
	dest.ContentRating = "PG-13" // already equal, not planned
	dest.Tagline = "Keep me"     // empty on source, never clobbered

	writes := PlanFields(src, dest, DefaultSyncFields)
	require.Len(t, writes, 2)
	assert.Equal(t, FieldWrite{Field: "summary", Value: "A new summary"}, writes[0])
	assert.Equal(t, FieldWrite{Field: "titleSort", Value: "Alpha, The"}, writes[1])
}

func TestPlanFieldsWhitespaceEqual(t *testing.T) {
	src := movie("s1", "Alpha")
	src.Summary = "  Same text  "
	dest := movie("d1", "Alpha")
	dest.Summary = "Same text"

	assert.Empty(t, PlanFields(src, dest, []string{"summary"}))
}

func TestPlanFieldsSubset(t *testing.T) {
	src := movie("s1", "Alpha")
	src.Summary = "New"
	src.Tagline = "Also new"
	dest := movie("d1", "Alpha")

	writes := PlanFields(src, dest, []string{"tagline"})
	require.Len(t, writes, 1)
	assert.Equal(t, "tagline", writes[0].Field)
}

func metadataFixture(t *testing.T) (*memServer, *memServer, *CatalogIndex) {
	t.Helper()
	srcItem := movie("s1", "Alpha", "tmdb://1")
	srcItem.Summary = "Fresh summary"
	srcItem.Thumb = "/thumb/s1"
	srcItem.Art = "/art/s1"

	src := newMemServer()
	src.sections = []Section{{Key: "10", Title: "Movies", Type: "movie"}}
	src.sectionItems["10"] = []MediaItem{srcItem}
	src.artwork["/thumb/s1"] = []byte("poster-bytes")
	src.artwork["/art/s1"] = []byte("art-bytes")

	dest := newMemServer()
	dest.sections = []Section{{Key: "1", Title: "Movies", Type: "movie"}}
	dest.sectionItems["1"] = []MediaItem{movie("d1", "Alpha", "tmdb://1")}

	index, err := BuildIndex(context.Background(), dest, discardLogger())
	require.NoError(t, err)
	return src, dest, index
}

func TestSyncAllWritesAndLocks(t *testing.T) {
	src, dest, index := metadataFixture(t)

	s := NewMetadataSyncer(src, dest, index, Filter{}, nil, false, true, discardLogger())
	res, err := s.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.ItemsChanged)
	assert.Equal(t, 1, res.FieldsWritten)
	assert.Equal(t, "Fresh summary", dest.edits["d1"]["summary"])
	assert.True(t, dest.locks["d1"]["summary"], "written fields are locked when requested")
	assert.False(t, dest.locks["d1"]["tagline"], "unwritten fields are never locked")
}

func TestSyncAllArtwork(t *testing.T) {
	src, dest, index := metadataFixture(t)

	s := NewMetadataSyncer(src, dest, index, Filter{}, nil, true, false, discardLogger())
	res, err := s.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.ArtworkCopied)
	assert.Equal(t, []byte("poster-bytes"), dest.posters["d1"])
	assert.Equal(t, []byte("art-bytes"), dest.arts["d1"])
}

func TestSyncAllArtworkFailureDoesNotBlock(t *testing.T) {
	src, dest, index := metadataFixture(t)
	delete(src.artwork, "/thumb/s1") // poster download will fail

	s := NewMetadataSyncer(src, dest, index, Filter{}, nil, true, false, discardLogger())
	res, err := s.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.ArtworkFailed)
	assert.Equal(t, 1, res.ArtworkCopied, "the art upload still happens")
	assert.Equal(t, 1, res.FieldsWritten, "field writes are unaffected")
}

func TestSyncAllUnmatched(t *testing.T) {
	src, dest, index := metadataFixture(t)
	src.sectionItems["10"] = append(src.sectionItems["10"], movie("s2", "Elsewhere", "tmdb://9"))

	s := NewMetadataSyncer(src, dest, index, Filter{}, nil, false, false, discardLogger())
	res, err := s.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Scanned)
	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, "Elsewhere", res.Unmatched[0].Title)
	assert.NotContains(t, dest.edits, "s2")
}

func TestSyncAllTitleFilter(t *testing.T) {
	src, dest, index := metadataFixture(t)

	f, err := NewFilter("^Nothing", "")
	require.NoError(t, err)
	s := NewMetadataSyncer(src, dest, index, f, nil, false, false, discardLogger())
	res, err := s.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 0, res.FieldsWritten)
	assert.Equal(t, 0, dest.mutations)
}
