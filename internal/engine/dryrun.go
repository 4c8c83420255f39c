package engine

import (
	"context"
	"fmt"
)

// NopWriter records mutating calls without touching the destination. The
// orchestrator swaps it in for dry runs so every phase executes identically
// up to the write boundary.
type NopWriter struct {
	Ops     []string
	nextKey int
}

// NewNopWriter creates an empty recorder.
func NewNopWriter() *NopWriter {
	return &NopWriter{}
}

func (w *NopWriter) record(format string, args ...any) {
	w.Ops = append(w.Ops, fmt.Sprintf(format, args...))
}

func (w *NopWriter) key() string {
	w.nextKey++
	return fmt.Sprintf("dry-%d", w.nextKey)
}

func (w *NopWriter) CreatePlaylist(_ context.Context, title string, seed MediaItem) (string, error) {
	w.record("create playlist %q seed %q", title, seed.DisplayTitle())
	return w.key(), nil
}

func (w *NopWriter) CreatePlaylistManual(_ context.Context, title string, seed MediaItem) (string, error) {
	w.record("create playlist (manual) %q seed %q", title, seed.DisplayTitle())
	return w.key(), nil
}

func (w *NopWriter) AddPlaylistItems(_ context.Context, key string, items []MediaItem) error {
	w.record("add %d items to playlist %s", len(items), key)
	return nil
}

func (w *NopWriter) DeletePlaylist(_ context.Context, key string) error {
	w.record("delete playlist %s", key)
	return nil
}

func (w *NopWriter) CreateCollection(_ context.Context, sectionKey, title string, seed MediaItem) (string, error) {
	w.record("create collection %q in section %s seed %q", title, sectionKey, seed.DisplayTitle())
	return w.key(), nil
}

func (w *NopWriter) CreateCollectionManual(_ context.Context, sectionKey, title string, seed MediaItem) (string, error) {
	w.record("create collection (manual) %q in section %s seed %q", title, sectionKey, seed.DisplayTitle())
	return w.key(), nil
}

func (w *NopWriter) AddCollectionItems(_ context.Context, key string, items []MediaItem) error {
	w.record("add %d items to collection %s", len(items), key)
	return nil
}

func (w *NopWriter) RemoveCollectionItem(_ context.Context, key string, item MediaItem) error {
	w.record("remove %q from collection %s", item.DisplayTitle(), key)
	return nil
}

func (w *NopWriter) DeleteCollection(_ context.Context, key string) error {
	w.record("delete collection %s", key)
	return nil
}

func (w *NopWriter) EditFields(_ context.Context, item MediaItem, fields map[string]string) error {
	w.record("edit %d fields on %q", len(fields), item.DisplayTitle())
	return nil
}

func (w *NopWriter) LockField(_ context.Context, item MediaItem, field string) error {
	w.record("lock %s on %q", field, item.DisplayTitle())
	return nil
}

func (w *NopWriter) UploadPoster(_ context.Context, item MediaItem, data []byte) error {
	w.record("upload poster (%d bytes) to %q", len(data), item.DisplayTitle())
	return nil
}

func (w *NopWriter) UploadArt(_ context.Context, item MediaItem, data []byte) error {
	w.record("upload art (%d bytes) to %q", len(data), item.DisplayTitle())
	return nil
}

var _ Writer = (*NopWriter)(nil)
