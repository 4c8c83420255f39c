package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// memServer is a synthetic in-memory server implementing both Library and
// Writer. It backs SelfTest and the engine's package tests.
type memServer struct {
	sections        []Section
	sectionItems    map[string][]MediaItem
	failSections    map[string]bool
	playlists       []Playlist
	playlistItems   map[string][]MediaItem
	collections     map[string][]Collection // by section key
	collectionItems map[string][]MediaItem
	artwork         map[string][]byte

	edits   map[string]map[string]string
	locks   map[string]map[string]bool
	posters map[string][]byte
	arts    map[string][]byte

	nextKey      int
	bulkLimit    int  // when >0, bulk adds above this size are rejected
	rejectCreate bool // standard container create is rejected as empty
	mutations    int
}

func newMemServer() *memServer {
	return &memServer{
		sectionItems:    make(map[string][]MediaItem),
		failSections:    make(map[string]bool),
		playlistItems:   make(map[string][]MediaItem),
		collections:     make(map[string][]Collection),
		collectionItems: make(map[string][]MediaItem),
		artwork:         make(map[string][]byte),
		edits:           make(map[string]map[string]string),
		locks:           make(map[string]map[string]bool),
		posters:         make(map[string][]byte),
		arts:            make(map[string][]byte),
	}
}

func (m *memServer) newKey() string {
	m.nextKey++
	return "k" + strconv.Itoa(m.nextKey)
}

// --- Library ---

func (m *memServer) Sections(context.Context) ([]Section, error) {
	return m.sections, nil
}

func (m *memServer) SectionItems(_ context.Context, s Section) ([]MediaItem, error) {
	if m.failSections[s.Key] {
		return nil, fmt.Errorf("section %s unavailable", s.Key)
	}
	return m.sectionItems[s.Key], nil
}

func (m *memServer) Playlists(context.Context) ([]Playlist, error) {
	out := make([]Playlist, len(m.playlists))
	copy(out, m.playlists)
	return out, nil
}

func (m *memServer) PlaylistItems(_ context.Context, key string) ([]MediaItem, error) {
	return m.playlistItems[key], nil
}

func (m *memServer) Collections(_ context.Context, s Section) ([]Collection, error) {
	return m.collections[s.Key], nil
}

func (m *memServer) CollectionItems(_ context.Context, key string) ([]MediaItem, error) {
	return m.collectionItems[key], nil
}

func (m *memServer) Artwork(_ context.Context, path string) ([]byte, error) {
	data, ok := m.artwork[path]
	if !ok {
		return nil, fmt.Errorf("artwork %s not found", path)
	}
	return data, nil
}

// --- Writer ---

func (m *memServer) CreatePlaylist(_ context.Context, title string, seed MediaItem) (string, error) {
	if m.rejectCreate {
		return "", fmt.Errorf("create playlist %q: %w", title, ErrBulkRejected)
	}
	return m.createPlaylist(title, seed), nil
}

func (m *memServer) CreatePlaylistManual(_ context.Context, title string, seed MediaItem) (string, error) {
	return m.createPlaylist(title, seed), nil
}

func (m *memServer) createPlaylist(title string, seed MediaItem) string {
	m.mutations++
	key := m.newKey()
	m.playlists = append(m.playlists, Playlist{Key: key, Title: title, Type: "video"})
	m.playlistItems[key] = []MediaItem{seed}
	return key
}

func (m *memServer) AddPlaylistItems(_ context.Context, key string, items []MediaItem) error {
	if m.bulkLimit > 0 && len(items) > m.bulkLimit {
		return fmt.Errorf("add %d items: %w", len(items), ErrBulkRejected)
	}
	m.mutations++
	m.playlistItems[key] = append(m.playlistItems[key], items...)
	return nil
}

func (m *memServer) DeletePlaylist(_ context.Context, key string) error {
	m.mutations++
	for i, pl := range m.playlists {
		if pl.Key == key {
			m.playlists = append(m.playlists[:i], m.playlists[i+1:]...)
			break
		}
	}
	delete(m.playlistItems, key)
	return nil
}

func (m *memServer) CreateCollection(_ context.Context, sectionKey, title string, seed MediaItem) (string, error) {
	if m.rejectCreate {
		return "", fmt.Errorf("create collection %q: %w", title, ErrBulkRejected)
	}
	return m.createCollection(sectionKey, title, seed), nil
}

func (m *memServer) CreateCollectionManual(_ context.Context, sectionKey, title string, seed MediaItem) (string, error) {
	return m.createCollection(sectionKey, title, seed), nil
}

func (m *memServer) createCollection(sectionKey, title string, seed MediaItem) string {
	m.mutations++
	key := m.newKey()
	m.collections[sectionKey] = append(m.collections[sectionKey],
		Collection{Key: key, Title: title, SectionKey: sectionKey})
	m.collectionItems[key] = []MediaItem{seed}
	return key
}

func (m *memServer) AddCollectionItems(_ context.Context, key string, items []MediaItem) error {
	if m.bulkLimit > 0 && len(items) > m.bulkLimit {
		return fmt.Errorf("add %d items: %w", len(items), ErrBulkRejected)
	}
	m.mutations++
	// The server treats a re-add of an existing member as a no-op.
	present := make(map[string]bool)
	for _, it := range m.collectionItems[key] {
		present[it.Key] = true
	}
	for _, it := range items {
		if present[it.Key] {
			continue
		}
		present[it.Key] = true
		m.collectionItems[key] = append(m.collectionItems[key], it)
	}
	return nil
}

func (m *memServer) RemoveCollectionItem(_ context.Context, key string, item MediaItem) error {
	m.mutations++
	members := m.collectionItems[key]
	for i, it := range members {
		if it.Key == item.Key {
			m.collectionItems[key] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memServer) DeleteCollection(_ context.Context, key string) error {
	m.mutations++
	for sk, colls := range m.collections {
		for i, c := range colls {
			if c.Key == key {
				m.collections[sk] = append(colls[:i], colls[i+1:]...)
				delete(m.collectionItems, key)
				return nil
			}
		}
	}
	return nil
}

func (m *memServer) EditFields(_ context.Context, item MediaItem, fields map[string]string) error {
	m.mutations++
	if m.edits[item.Key] == nil {
		m.edits[item.Key] = make(map[string]string)
	}
	for k, v := range fields {
		m.edits[item.Key][k] = v
	}
	return nil
}

func (m *memServer) LockField(_ context.Context, item MediaItem, field string) error {
	m.mutations++
	if m.locks[item.Key] == nil {
		m.locks[item.Key] = make(map[string]bool)
	}
	m.locks[item.Key][field] = true
	return nil
}

func (m *memServer) UploadPoster(_ context.Context, item MediaItem, data []byte) error {
	m.mutations++
	m.posters[item.Key] = data
	return nil
}

func (m *memServer) UploadArt(_ context.Context, item MediaItem, data []byte) error {
	m.mutations++
	m.arts[item.Key] = data
	return nil
}

var (
	_ Library = (*memServer)(nil)
	_ Writer  = (*memServer)(nil)
)

func movie(key, title string, guids ...string) MediaItem {
	return MediaItem{Key: key, Title: title, Type: "movie", Section: "Movies", SectionKey: "1", GUIDs: guids}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SelfTest exercises the engine's invariants against synthetic fixtures.
// It returns nil when every check passes.
func SelfTest() error {
	ctx := context.Background()
	log := discardLogger()

	// Deterministic matching with agent preference order.
	dest := newMemServer()
	dest.sections = []Section{{Key: "1", Title: "Movies", Type: "movie"}}
	dest.sectionItems["1"] = []MediaItem{
		movie("d1", "Alpha", "tmdb://1", "imdb://tt1"),
		movie("d2", "Beta", "tmdb://2"),
		movie("d3", "Gamma", "imdb://tt3"),
	}
	index, err := BuildIndex(ctx, dest, log)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	src := movie("s1", "Alpha", "imdb://tt1", "tmdb://1")
	first, ok1 := index.Resolve(src)
	second, ok2 := index.Resolve(src)
	if !ok1 || !ok2 || first.Key != second.Key {
		return fmt.Errorf("matcher not deterministic")
	}
	if first.Key != "d1" {
		return fmt.Errorf("matcher preference order broken, got %s", first.Key)
	}
	if _, ok := index.Resolve(movie("s9", "Nowhere", "tmdb://99")); ok {
		return fmt.Errorf("matcher resolved an item with no GUID overlap")
	}

	// Filter gate semantics.
	f, err := NewFilter("^Kids", "Temp")
	if err != nil {
		return err
	}
	if f.Keep("Kids Temp List") || !f.Keep("Kids Movies") || f.Keep("Adult List") {
		return fmt.Errorf("filter gate semantics broken")
	}
	if !(Filter{}).Keep("anything") {
		return fmt.Errorf("empty filter must keep everything")
	}

	// Batch degradation: a destination that rejects bulk adds above 3 items
	// must still receive every item, in order, without re-escalation.
	dest.bulkLimit = 3
	var items []MediaItem
	for i := 0; i < 10; i++ {
		items = append(items, movie(fmt.Sprintf("m%d", i), fmt.Sprintf("Movie %d", i)))
	}
	batch := NewBatchWriter(5, log)
	container := &playlistContainer{writer: dest, title: "Degraded"}
	report, err := batch.Fill(ctx, container, items)
	if err != nil {
		return fmt.Errorf("batch fill: %w", err)
	}
	got := dest.playlistItems[container.key]
	if len(got) != len(items) {
		return fmt.Errorf("batch writer lost items: %d of %d", len(got), len(items))
	}
	for i := range items {
		if got[i].Key != items[i].Key {
			return fmt.Errorf("batch writer broke order at %d", i)
		}
	}
	if report.Fallback != 9 || report.Bulk != 1 {
		return fmt.Errorf("unexpected degradation shape: bulk=%d fallback=%d", report.Bulk, report.Fallback)
	}
	dest.bulkLimit = 0

	// Manual create fallback.
	dest.rejectCreate = true
	container = &playlistContainer{writer: dest, title: "Manual"}
	if err := batch.CreateSeeded(ctx, container, items[0]); err != nil {
		return fmt.Errorf("manual create fallback: %w", err)
	}
	dest.rejectCreate = false

	// Union vs replace collection semantics.
	if err := selfTestCollections(ctx, log); err != nil {
		return err
	}

	// Field non-clobber: empty source tagline never overwrites.
	srcItem := movie("s1", "Alpha")
	srcItem.Summary = "New summary"
	destItem := movie("d1", "Alpha")
	destItem.Tagline = "Keep me"
	writes := PlanFields(srcItem, destItem, DefaultSyncFields)
	for _, w := range writes {
		if w.Field == "tagline" {
			return fmt.Errorf("empty source tagline was planned for write")
		}
	}
	if len(writes) != 1 || writes[0].Field != "summary" {
		return fmt.Errorf("unexpected sync plan: %v", writes)
	}

	// Dry run performs no mutating calls.
	if err := selfTestDryRun(ctx, log); err != nil {
		return err
	}

	return nil
}

func selfTestCollections(ctx context.Context, log *slog.Logger) error {
	a, b, c := movie("da", "A", "tmdb://a"), movie("db", "B", "tmdb://b"), movie("dc", "C", "tmdb://c")

	setup := func() (*memServer, *memServer) {
		dest := newMemServer()
		dest.sections = []Section{{Key: "1", Title: "Movies", Type: "movie"}}
		dest.sectionItems["1"] = []MediaItem{a, b, c}
		dest.collections["1"] = []Collection{{Key: "col1", Title: "Favorites", SectionKey: "1"}}
		dest.collectionItems["col1"] = []MediaItem{a, b}

		src := newMemServer()
		src.sections = []Section{{Key: "10", Title: "Movies", Type: "movie"}}
		src.collections["10"] = []Collection{{Key: "scol", Title: "Favorites", SectionKey: "10"}}
		src.collectionItems["scol"] = []MediaItem{
			movie("sb", "B", "tmdb://b"),
			movie("sc", "C", "tmdb://c"),
		}
		return src, dest
	}

	memberKeys := func(dest *memServer) string {
		var keys []string
		for _, it := range dest.collectionItems["col1"] {
			keys = append(keys, it.Key)
		}
		return strings.Join(keys, ",")
	}

	// Union: {A,B} + {B,C} = {A,B,C}.
	src, dest := setup()
	index, err := BuildIndex(ctx, dest, log)
	if err != nil {
		return err
	}
	rec := NewCollectionReconciler(src, dest, dest, index, NewBatchWriter(0, log),
		Filter{}, "", false, log)
	if _, err := rec.ReconcileAll(ctx); err != nil {
		return err
	}
	if memberKeys(dest) != "da,db,dc" {
		return fmt.Errorf("union semantics broken: %s", memberKeys(dest))
	}

	// Replace: {A,B} replaced by {B,C} = exactly {B,C}.
	src, dest = setup()
	index, err = BuildIndex(ctx, dest, log)
	if err != nil {
		return err
	}
	rec = NewCollectionReconciler(src, dest, dest, index, NewBatchWriter(0, log),
		Filter{}, "", true, log)
	if _, err := rec.ReconcileAll(ctx); err != nil {
		return err
	}
	if memberKeys(dest) != "db,dc" {
		return fmt.Errorf("replace semantics broken: %s", memberKeys(dest))
	}
	return nil
}

func selfTestDryRun(ctx context.Context, log *slog.Logger) error {
	dest := newMemServer()
	dest.sections = []Section{{Key: "1", Title: "Movies", Type: "movie"}}
	dest.sectionItems["1"] = []MediaItem{movie("d1", "Alpha", "tmdb://1")}

	src := newMemServer()
	src.playlists = []Playlist{{Key: "p1", Title: "Night In", Type: "video"}}
	src.playlistItems["p1"] = []MediaItem{movie("s1", "Alpha", "tmdb://1")}

	orch := NewOrchestrator(src, dest, dest, Options{Playlists: true, DryRun: true}, log)
	sum, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("dry run: %w", err)
	}
	if dest.mutations != 0 {
		return fmt.Errorf("dry run performed %d mutating calls", dest.mutations)
	}
	if sum.PlaylistsCreated != 1 {
		return fmt.Errorf("dry run summary diverged: %d playlists created", sum.PlaylistsCreated)
	}
	return nil
}
