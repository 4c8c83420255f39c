package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vmunix/plexmirror/internal/engine"
)

// itemURI builds the explicit server:// reference for one or more items.
// This is the encoding every server version accepts, used for bulk adds and
// as the manual creation fallback.
func itemURI(machineID string, items []engine.MediaItem) string {
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Key
	}
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s",
		machineID, strings.Join(keys, ","))
}

// libraryURI builds the library:// item reference newer servers prefer on
// container creation.
func libraryURI(machineID string, item engine.MediaItem) string {
	return fmt.Sprintf("library://%s/item/%s",
		machineID, url.QueryEscape("/library/metadata/"+item.Key))
}

func plexType(item engine.MediaItem) string {
	if item.Type == "episode" {
		return "4"
	}
	return "1"
}

// CreatePlaylist creates a video playlist seeded with one item and returns
// its rating key.
func (c *Client) CreatePlaylist(ctx context.Context, title string, seed engine.MediaItem) (string, error) {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return "", err
	}
	return c.createPlaylist(ctx, title, libraryURI(machineID, seed))
}

// CreatePlaylistManual retries creation with the explicit server:// item
// encoding, for servers that reject the standard create as empty.
func (c *Client) CreatePlaylistManual(ctx context.Context, title string, seed engine.MediaItem) (string, error) {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return "", err
	}
	return c.createPlaylist(ctx, title, itemURI(machineID, []engine.MediaItem{seed}))
}

func (c *Client) createPlaylist(ctx context.Context, title, uri string) (string, error) {
	query := url.Values{
		"type":  {"video"},
		"title": {title},
		"smart": {"0"},
		"uri":   {uri},
	}
	var result mediaContainer
	if err := c.callXML(ctx, http.MethodPost, "/playlists", query, &result); err != nil {
		return "", fmt.Errorf("create playlist %q: %w", title, err)
	}
	if len(result.Playlists) > 0 {
		return result.Playlists[0].RatingKey, nil
	}

	// Some server versions answer the create with an empty container; find
	// the playlist by title instead.
	playlists, err := c.Playlists(ctx)
	if err != nil {
		return "", fmt.Errorf("locate created playlist %q: %w", title, err)
	}
	for _, pl := range playlists {
		if pl.Title == title {
			return pl.Key, nil
		}
	}
	return "", fmt.Errorf("playlist %q not found after create", title)
}

// AddPlaylistItems submits one bulk add of items to a playlist.
func (c *Client) AddPlaylistItems(ctx context.Context, key string, items []engine.MediaItem) error {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/playlists/%s/items", key)
	query := url.Values{"uri": {itemURI(machineID, items)}}
	if err := c.call(ctx, http.MethodPut, path, query); err != nil {
		return fmt.Errorf("add %d items to playlist: %w", len(items), err)
	}
	return nil
}

// DeletePlaylist removes a playlist.
func (c *Client) DeletePlaylist(ctx context.Context, key string) error {
	if err := c.call(ctx, http.MethodDelete, "/playlists/"+key, nil); err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	return nil
}

// CreateCollection creates a collection in a section seeded with one item
// and returns its rating key.
func (c *Client) CreateCollection(ctx context.Context, sectionKey, title string, seed engine.MediaItem) (string, error) {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return "", err
	}
	return c.createCollection(ctx, sectionKey, title, seed, libraryURI(machineID, seed))
}

// CreateCollectionManual retries collection creation with the explicit
// server:// item encoding.
func (c *Client) CreateCollectionManual(ctx context.Context, sectionKey, title string, seed engine.MediaItem) (string, error) {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return "", err
	}
	return c.createCollection(ctx, sectionKey, title, seed, itemURI(machineID, []engine.MediaItem{seed}))
}

func (c *Client) createCollection(ctx context.Context, sectionKey, title string, seed engine.MediaItem, uri string) (string, error) {
	query := url.Values{
		"type":      {plexType(seed)},
		"title":     {title},
		"smart":     {"0"},
		"sectionId": {sectionKey},
		"uri":       {uri},
	}
	var result mediaContainer
	if err := c.callXML(ctx, http.MethodPost, "/library/collections", query, &result); err != nil {
		return "", fmt.Errorf("create collection %q: %w", title, err)
	}
	if len(result.Directories) == 0 {
		return "", fmt.Errorf("collection %q not found after create", title)
	}
	return result.Directories[0].RatingKey, nil
}

// AddCollectionItems submits one bulk add of items to a collection.
func (c *Client) AddCollectionItems(ctx context.Context, key string, items []engine.MediaItem) error {
	machineID, err := c.machineIdentifier(ctx)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/library/collections/%s/items", key)
	query := url.Values{"uri": {itemURI(machineID, items)}}
	if err := c.call(ctx, http.MethodPut, path, query); err != nil {
		return fmt.Errorf("add %d items to collection: %w", len(items), err)
	}
	return nil
}

// RemoveCollectionItem drops one member from a collection.
func (c *Client) RemoveCollectionItem(ctx context.Context, key string, item engine.MediaItem) error {
	path := fmt.Sprintf("/library/collections/%s/children/%s", key, item.Key)
	if err := c.call(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("remove %q from collection: %w", item.DisplayTitle(), err)
	}
	return nil
}

// DeleteCollection removes a collection.
func (c *Client) DeleteCollection(ctx context.Context, key string) error {
	if err := c.call(ctx, http.MethodDelete, "/library/collections/"+key, nil); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return nil
}

// EditFields patches metadata fields on one item.
func (c *Client) EditFields(ctx context.Context, item engine.MediaItem, fields map[string]string) error {
	query := url.Values{}
	for field, value := range fields {
		query.Set(field+".value", value)
	}
	path := "/library/metadata/" + item.Key
	if err := c.call(ctx, http.MethodPut, path, query); err != nil {
		return fmt.Errorf("edit fields on %q: %w", item.DisplayTitle(), err)
	}
	return nil
}

// LockField marks a field so automated refreshes cannot overwrite it.
func (c *Client) LockField(ctx context.Context, item engine.MediaItem, field string) error {
	path := "/library/metadata/" + item.Key
	query := url.Values{field + ".locked": {"1"}}
	if err := c.call(ctx, http.MethodPut, path, query); err != nil {
		return fmt.Errorf("lock %s on %q: %w", field, item.DisplayTitle(), err)
	}
	return nil
}

// UploadPoster uploads poster artwork to an item.
func (c *Client) UploadPoster(ctx context.Context, item engine.MediaItem, data []byte) error {
	if err := c.upload(ctx, fmt.Sprintf("/library/metadata/%s/posters", item.Key), data); err != nil {
		return fmt.Errorf("upload poster to %q: %w", item.DisplayTitle(), err)
	}
	return nil
}

// UploadArt uploads background artwork to an item.
func (c *Client) UploadArt(ctx context.Context, item engine.MediaItem, data []byte) error {
	if err := c.upload(ctx, fmt.Sprintf("/library/metadata/%s/arts", item.Key), data); err != nil {
		return fmt.Errorf("upload art to %q: %w", item.DisplayTitle(), err)
	}
	return nil
}

var _ engine.Writer = (*Client)(nil)
