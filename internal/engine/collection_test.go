package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectionFixture(t *testing.T) (*memServer, *memServer, *CatalogIndex) {
	t.Helper()
	dest := newMemServer()
	dest.sections = []Section{{Key: "1", Title: "Movies", Type: "movie"}}
	dest.sectionItems["1"] = []MediaItem{
		movie("da", "A", "tmdb://a"),
		movie("db", "B", "tmdb://b"),
		movie("dc", "C", "tmdb://c"),
	}

	src := newMemServer()
	src.sections = []Section{{Key: "10", Title: "Movies", Type: "movie"}}

	index, err := BuildIndex(context.Background(), dest, discardLogger())
	require.NoError(t, err)
	return src, dest, index
}

func newCollectionReconciler(src, dest *memServer, index *CatalogIndex, replace bool) *CollectionReconciler {
	log := discardLogger()
	return NewCollectionReconciler(src, dest, dest, index, NewBatchWriter(0, log),
		Filter{}, "", replace, log)
}

func destMemberKeys(dest *memServer, key string) []string {
	var keys []string
	for _, it := range dest.collectionItems[key] {
		keys = append(keys, it.Key)
	}
	return keys
}

func TestReconcileCollectionCreate(t *testing.T) {
	src, dest, index := collectionFixture(t)
	src.collections["10"] = []Collection{{Key: "sc", Title: "Favorites", SectionKey: "10"}}
	src.collectionItems["sc"] = []MediaItem{
		movie("sa", "A", "tmdb://a"),
		movie("sc2", "C", "tmdb://c"),
	}

	results, err := newCollectionReconciler(src, dest, index, false).ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Created)
	assert.False(t, results[0].Updated)

	created := dest.collections["1"][0]
	assert.Equal(t, "Favorites", created.Title)
	assert.Equal(t, []string{"da", "dc"}, destMemberKeys(dest, created.Key))
}

func TestReconcileCollectionUnion(t *testing.T) {
	src, dest, index := collectionFixture(t)
	dest.collections["1"] = []Collection{{Key: "col1", Title: "Favorites", SectionKey: "1"}}
	dest.collectionItems["col1"] = []MediaItem{
		movie("da", "A", "tmdb://a"),
		movie("db", "B", "tmdb://b"),
	}
	src.collections["10"] = []Collection{{Key: "sc", Title: "Favorites", SectionKey: "10"}}
	src.collectionItems["sc"] = []MediaItem{
		movie("sb", "B", "tmdb://b"),
		movie("sc2", "C", "tmdb://c"),
	}

	results, err := newCollectionReconciler(src, dest, index, false).ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Updated)
	assert.False(t, results[0].Replaced)

	// {A,B} union {B,C} = {A,B,C}, with the existing members untouched.
	assert.Equal(t, []string{"da", "db", "dc"}, destMemberKeys(dest, "col1"))
}

func TestReconcileCollectionReplace(t *testing.T) {
	src, dest, index := collectionFixture(t)
	dest.collections["1"] = []Collection{{Key: "col1", Title: "Favorites", SectionKey: "1"}}
	dest.collectionItems["col1"] = []MediaItem{
		movie("da", "A", "tmdb://a"),
		movie("db", "B", "tmdb://b"),
	}
	src.collections["10"] = []Collection{{Key: "sc", Title: "Favorites", SectionKey: "10"}}
	src.collectionItems["sc"] = []MediaItem{
		movie("sb", "B", "tmdb://b"),
		movie("sc2", "C", "tmdb://c"),
	}

	rec := newCollectionReconciler(src, dest, index, true)
	results, err := rec.ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Replaced)

	// The destination holds exactly the matched set, under the same key.
	assert.Equal(t, []string{"db", "dc"}, destMemberKeys(dest, "col1"))
	require.Len(t, dest.collections["1"], 1)

	// Replaying the replace converges to the same member set.
	_, err = rec.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "dc"}, destMemberKeys(dest, "col1"))
}

func TestReconcileCollectionNoMatches(t *testing.T) {
	src, dest, index := collectionFixture(t)
	src.collections["10"] = []Collection{{Key: "sc", Title: "Elsewhere", SectionKey: "10"}}
	src.collectionItems["sc"] = []MediaItem{movie("sx", "X", "tmdb://x")}

	results, err := newCollectionReconciler(src, dest, index, false).ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped())
	assert.Len(t, results[0].Unmatched, 1)
	assert.Equal(t, 0, dest.mutations)
}

func TestReconcileCollectionFilterOnSourceName(t *testing.T) {
	src, dest, index := collectionFixture(t)
	src.collections["10"] = []Collection{
		{Key: "s1", Title: "Favorites", SectionKey: "10"},
		{Key: "s2", Title: "Temp Stash", SectionKey: "10"},
	}
	src.collectionItems["s1"] = []MediaItem{movie("sa", "A", "tmdb://a")}
	src.collectionItems["s2"] = []MediaItem{movie("sb", "B", "tmdb://b")}

	f, err := NewFilter("", "^Temp")
	require.NoError(t, err)
	log := discardLogger()
	rec := NewCollectionReconciler(src, dest, dest, index, NewBatchWriter(0, log),
		f, "", false, log)
	results, err := rec.ReconcileAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Created)
	assert.Equal(t, "filtered", results[1].SkipReason)
}

func TestReconcileCollectionDedupMembers(t *testing.T) {
	src, dest, index := collectionFixture(t)
	src.collections["10"] = []Collection{{Key: "sc", Title: "Favorites", SectionKey: "10"}}
	// Two source entries resolving to the same destination item.
	src.collectionItems["sc"] = []MediaItem{
		movie("s1", "A", "tmdb://a"),
		movie("s2", "A again", "tmdb://a"),
	}

	_, err := newCollectionReconciler(src, dest, index, false).ReconcileAll(context.Background())
	require.NoError(t, err)

	created := dest.collections["1"][0]
	assert.Equal(t, []string{"da"}, destMemberKeys(dest, created.Key))
}
