package plex

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/plexmirror/internal/engine"
)

func TestSections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<MediaContainer size="2">
			<Directory key="1" title="Movies" type="movie"/>
			<Directory key="2" title="TV Shows" type="show"/>
			<Directory key="3" title="Music" type="artist"/>
		</MediaContainer>`)
	})
	client := newTestClient(t, mux)

	sections, err := client.Sections(context.Background())
	require.NoError(t, err)
	require.Len(t, sections, 3)
	assert.Equal(t, engine.Section{Key: "1", Title: "Movies", Type: "movie"}, sections[0])
	assert.True(t, sections[1].Video())
	assert.False(t, sections[2].Video())
}

func TestSectionItemsMovies(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections/1/all", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `<MediaContainer size="1">
			<Video ratingKey="101" title="Alpha" type="movie" summary="A film." tagline="Go." contentRating="PG"
				originallyAvailableAt="2020-01-01" titleSort="Alpha" thumb="/t/101" art="/a/101">
				<Guid id="TMDB://42"/>
				<Guid id="imdb://tt0042"/>
			</Video>
		</MediaContainer>`)
	})
	client := newTestClient(t, mux)

	items, err := client.SectionItems(context.Background(), engine.Section{Key: "1", Title: "Movies", Type: "movie"})
	require.NoError(t, err)
	assert.Equal(t, "includeGuids=1", gotQuery)

	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "101", it.Key)
	assert.Equal(t, []string{"tmdb://42", "imdb://tt0042"}, it.GUIDs, "GUIDs are lowercased")
	assert.Equal(t, "Movies", it.Section)
	assert.Equal(t, "1", it.SectionKey)
	assert.Equal(t, "A film.", it.Summary)
	assert.Equal(t, "/t/101", it.Thumb)
}

func TestSectionItemsShowFetchesEpisodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections/2/all", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("type"))
		assert.Equal(t, "1", r.URL.Query().Get("includeGuids"))
		fmt.Fprint(w, `<MediaContainer size="1">
			<Video ratingKey="201" title="Pilot" type="episode" grandparentTitle="Firefly" parentIndex="1" index="1">
				<Guid id="tvdb://999"/>
			</Video>
		</MediaContainer>`)
	})
	client := newTestClient(t, mux)

	items, err := client.SectionItems(context.Background(), engine.Section{Key: "2", Title: "TV Shows", Type: "show"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "episode", items[0].Type)
	assert.Equal(t, "Firefly", items[0].Show)
	assert.Equal(t, 1, items[0].Season)
	assert.Equal(t, "Firefly - Pilot", items[0].DisplayTitle())
}

func TestPlaylists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/playlists", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<MediaContainer size="2">
			<Playlist ratingKey="11" title="Night In" playlistType="video" smart="0"/>
			<Playlist ratingKey="12" title="Recently Added" playlistType="video" smart="1"/>
		</MediaContainer>`)
	})
	client := newTestClient(t, mux)

	playlists, err := client.Playlists(context.Background())
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	assert.Equal(t, engine.Playlist{Key: "11", Title: "Night In", Type: "video"}, playlists[0])
	assert.True(t, playlists[1].Smart)
}

func TestPlaylistItemsOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/playlists/11/items", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<MediaContainer size="3">
			<Video ratingKey="3" title="Gamma" type="movie"/>
			<Video ratingKey="1" title="Alpha" type="movie"/>
			<Video ratingKey="2" title="Beta" type="movie"/>
		</MediaContainer>`)
	})
	client := newTestClient(t, mux)

	items, err := client.PlaylistItems(context.Background(), "11")
	require.NoError(t, err)
	var keys []string
	for _, it := range items {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []string{"3", "1", "2"}, keys, "playlist order is preserved as served")
}

func TestCollections(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections/1/collections", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<MediaContainer size="1">
			<Directory ratingKey="31" title="Favorites"/>
		</MediaContainer>`)
	})
	client := newTestClient(t, mux)

	colls, err := client.Collections(context.Background(), engine.Section{Key: "1", Title: "Movies", Type: "movie"})
	require.NoError(t, err)
	require.Len(t, colls, 1)
	assert.Equal(t, engine.Collection{Key: "31", Title: "Favorites", SectionKey: "1"}, colls[0])
}

func TestCollectionItems(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/collections/31/children", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<MediaContainer size="1">
			<Video ratingKey="101" title="Alpha" type="movie" librarySectionID="1" librarySectionTitle="Movies">
				<Guid id="tmdb://42"/>
			</Video>
		</MediaContainer>`)
	})
	client := newTestClient(t, mux)

	items, err := client.CollectionItems(context.Background(), "31")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].SectionKey)
	assert.Equal(t, []string{"tmdb://42"}, items[0].GUIDs)
}

func TestArtwork(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/library/metadata/101/thumb/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	})
	client := newTestClient(t, mux)

	data, err := client.Artwork(context.Background(), "/library/metadata/101/thumb/1")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)
}
