package engine

import "context"

// Section is a library section on either server.
type Section struct {
	Key   string
	Title string
	Type  string // movie, show, artist, photo
}

// Video reports whether the section holds matchable video content.
func (s Section) Video() bool {
	return s.Type == "movie" || s.Type == "show"
}

// Playlist is a playlist on either server.
type Playlist struct {
	Key   string
	Title string
	Type  string // video, audio, photo
	Smart bool
}

// Collection is a named collection within one library section.
type Collection struct {
	Key        string
	Title      string
	SectionKey string
}

// Library is the read-only view of one server. Both the source and the
// destination expose it; the engine never mutates through it.
type Library interface {
	Sections(ctx context.Context) ([]Section, error)
	SectionItems(ctx context.Context, section Section) ([]MediaItem, error)
	Playlists(ctx context.Context) ([]Playlist, error)
	PlaylistItems(ctx context.Context, key string) ([]MediaItem, error)
	Collections(ctx context.Context, section Section) ([]Collection, error)
	CollectionItems(ctx context.Context, key string) ([]MediaItem, error)
	Artwork(ctx context.Context, path string) ([]byte, error)
}

// Writer is the mutating side of the destination server. In dry-run mode the
// orchestrator swaps in a recorder so none of these calls reach the network.
type Writer interface {
	CreatePlaylist(ctx context.Context, title string, seed MediaItem) (string, error)
	// CreatePlaylistManual retries creation with the explicit server:// item
	// reference encoding that older servers accept when the standard create
	// is rejected as empty.
	CreatePlaylistManual(ctx context.Context, title string, seed MediaItem) (string, error)
	AddPlaylistItems(ctx context.Context, key string, items []MediaItem) error
	DeletePlaylist(ctx context.Context, key string) error

	CreateCollection(ctx context.Context, sectionKey, title string, seed MediaItem) (string, error)
	CreateCollectionManual(ctx context.Context, sectionKey, title string, seed MediaItem) (string, error)
	AddCollectionItems(ctx context.Context, key string, items []MediaItem) error
	RemoveCollectionItem(ctx context.Context, key string, item MediaItem) error
	DeleteCollection(ctx context.Context, key string) error

	EditFields(ctx context.Context, item MediaItem, fields map[string]string) error
	LockField(ctx context.Context, item MediaItem, field string) error
	UploadPoster(ctx context.Context, item MediaItem, data []byte) error
	UploadArt(ctx context.Context, item MediaItem, data []byte) error
}
