package plex

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/vmunix/plexmirror/internal/engine"
)

// Sections returns all library sections.
func (c *Client) Sections(ctx context.Context) ([]engine.Section, error) {
	var result mediaContainer
	if err := c.getXML(ctx, "/library/sections", nil, &result); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}

	sections := make([]engine.Section, 0, len(result.Directories))
	for _, d := range result.Directories {
		sections = append(sections, engine.Section{Key: d.Key, Title: d.Title, Type: d.Type})
	}
	return sections, nil
}

// SectionItems returns every playable item in a section with its GUIDs: the
// movies of a movie section, the episodes of a show section.
func (c *Client) SectionItems(ctx context.Context, section engine.Section) ([]engine.MediaItem, error) {
	query := url.Values{"includeGuids": {"1"}}
	if section.Type == "show" {
		// Leaf type 4 fetches episodes directly instead of walking shows.
		query.Set("type", "4")
	}

	var result mediaContainer
	path := fmt.Sprintf("/library/sections/%s/all", section.Key)
	if err := c.getXML(ctx, path, query, &result); err != nil {
		return nil, fmt.Errorf("list items of section %q: %w", section.Title, err)
	}

	items := make([]engine.MediaItem, 0, len(result.Videos))
	for _, v := range result.Videos {
		items = append(items, c.toItem(v, section))
	}
	return items, nil
}

// Playlists returns all playlists on the server.
func (c *Client) Playlists(ctx context.Context) ([]engine.Playlist, error) {
	var result mediaContainer
	if err := c.getXML(ctx, "/playlists", nil, &result); err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}

	playlists := make([]engine.Playlist, 0, len(result.Playlists))
	for _, p := range result.Playlists {
		playlists = append(playlists, engine.Playlist{
			Key:   p.RatingKey,
			Title: p.Title,
			Type:  p.PlaylistType,
			Smart: p.smart(),
		})
	}
	return playlists, nil
}

// PlaylistItems returns a playlist's members in playlist order. For a smart
// playlist this is the currently resolved member list.
func (c *Client) PlaylistItems(ctx context.Context, key string) ([]engine.MediaItem, error) {
	var result mediaContainer
	path := fmt.Sprintf("/playlists/%s/items", key)
	if err := c.getXML(ctx, path, url.Values{"includeGuids": {"1"}}, &result); err != nil {
		return nil, fmt.Errorf("list playlist items: %w", err)
	}
	return c.toItems(result.Videos), nil
}

// Collections returns the named collections of one section.
func (c *Client) Collections(ctx context.Context, section engine.Section) ([]engine.Collection, error) {
	var result mediaContainer
	path := fmt.Sprintf("/library/sections/%s/collections", section.Key)
	if err := c.getXML(ctx, path, nil, &result); err != nil {
		return nil, fmt.Errorf("list collections of section %q: %w", section.Title, err)
	}

	collections := make([]engine.Collection, 0, len(result.Directories))
	for _, d := range result.Directories {
		collections = append(collections, engine.Collection{
			Key:        d.RatingKey,
			Title:      d.Title,
			SectionKey: section.Key,
		})
	}
	return collections, nil
}

// CollectionItems returns a collection's members.
func (c *Client) CollectionItems(ctx context.Context, key string) ([]engine.MediaItem, error) {
	var result mediaContainer
	path := fmt.Sprintf("/library/collections/%s/children", key)
	if err := c.getXML(ctx, path, url.Values{"includeGuids": {"1"}}, &result); err != nil {
		return nil, fmt.Errorf("list collection items: %w", err)
	}
	return c.toItems(result.Videos), nil
}

// Artwork downloads a poster or background by its server-relative path.
func (c *Client) Artwork(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, "GET", path, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("download artwork: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read artwork: %w", err)
	}
	return data, nil
}

func (c *Client) toItems(videos []videoXML) []engine.MediaItem {
	items := make([]engine.MediaItem, 0, len(videos))
	for _, v := range videos {
		items = append(items, c.toItem(v, engine.Section{
			Key:   v.LibrarySectionID,
			Title: v.LibrarySectionTitle,
		}))
	}
	return items
}

func (c *Client) toItem(v videoXML, section engine.Section) engine.MediaItem {
	guids := make([]string, 0, len(v.Guids))
	for _, g := range v.Guids {
		if id := strings.ToLower(strings.TrimSpace(g.ID)); id != "" {
			guids = append(guids, id)
		}
	}
	return engine.MediaItem{
		Key:                   v.RatingKey,
		Title:                 v.Title,
		Type:                  v.Type,
		Show:                  v.GrandparentTitle,
		Season:                v.ParentIndex,
		Episode:               v.Index,
		Section:               section.Title,
		SectionKey:            section.Key,
		GUIDs:                 guids,
		Summary:               v.Summary,
		Tagline:               v.Tagline,
		ContentRating:         v.ContentRating,
		OriginallyAvailableAt: v.OriginallyAvailableAt,
		TitleSort:             v.TitleSort,
		Thumb:                 v.Thumb,
		Art:                   v.Art,
	}
}

var _ engine.Library = (*Client)(nil)
