package engine

import (
	"context"
	"fmt"
	"log/slog"
)

// CollectionResult is the outcome of reconciling one source collection.
type CollectionResult struct {
	Name       string // destination name after rename template
	Created    bool
	Updated    bool
	Replaced   bool
	SkipReason string
	Report     AddReport
	Unmatched  []MediaItem
	Err        error
}

// Skipped reports whether the collection never reached a server write.
func (r CollectionResult) Skipped() bool { return r.SkipReason != "" }

// Failed reports whether reconciliation of this collection aborted.
func (r CollectionResult) Failed() bool { return r.Err != nil }

// CollectionReconciler mirrors named collection memberships onto the
// destination. With replace the destination ends up holding exactly the
// matched set; without it the matched set is unioned into whatever is
// already there.
type CollectionReconciler struct {
	src     Library
	dest    Library
	writer  Writer
	index   *CatalogIndex
	batch   *BatchWriter
	filter  Filter
	rename  Template
	replace bool
	log     *slog.Logger
}

// NewCollectionReconciler wires a reconciler for one run.
func NewCollectionReconciler(src, dest Library, writer Writer, index *CatalogIndex, batch *BatchWriter,
	filter Filter, rename Template, replace bool, log *slog.Logger) *CollectionReconciler {
	return &CollectionReconciler{
		src:     src,
		dest:    dest,
		writer:  writer,
		index:   index,
		batch:   batch,
		filter:  filter,
		rename:  rename,
		replace: replace,
		log:     log.With("component", "collections"),
	}
}

// ReconcileAll walks every video section on the source and reconciles each
// collection it finds. A section whose collections cannot be listed is
// skipped with a warning.
func (r *CollectionReconciler) ReconcileAll(ctx context.Context) ([]CollectionResult, error) {
	sections, err := r.src.Sections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source sections: %w", err)
	}

	var results []CollectionResult
	for _, s := range sections {
		if !s.Video() {
			continue
		}
		colls, err := r.src.Collections(ctx, s)
		if err != nil {
			r.log.Warn("could not list collections", "section", s.Title, "error", err)
			continue
		}
		for _, coll := range colls {
			results = append(results, r.reconcile(ctx, coll))
		}
	}
	return results, nil
}

func (r *CollectionReconciler) reconcile(ctx context.Context, coll Collection) CollectionResult {
	res := CollectionResult{Name: r.rename.Apply(coll.Title)}

	if !r.filter.Keep(coll.Title) {
		res.SkipReason = "filtered"
		r.log.Debug("collection filtered", "collection", coll.Title)
		return res
	}

	items, err := r.src.CollectionItems(ctx, coll.Key)
	if err != nil {
		res.Err = fmt.Errorf("list items of collection %q: %w", coll.Title, err)
		return res
	}

	matched := r.resolveMembers(items, &res)
	r.log.Debug("collection matched", "collection", coll.Title,
		"matched", len(matched), "total", len(items), "unmatched", len(res.Unmatched))

	if len(matched) == 0 {
		res.SkipReason = "no items matched on destination"
		r.log.Warn("no destination matches for collection", "collection", coll.Title)
		return res
	}

	existing, err := r.findDestCollection(ctx, res.Name)
	if err != nil {
		res.Err = fmt.Errorf("look up destination collection %q: %w", res.Name, err)
		return res
	}

	if existing == nil {
		container := &collectionContainer{
			writer:     r.writer,
			title:      res.Name,
			sectionKey: matched[0].SectionKey,
		}
		report, err := r.batch.Fill(ctx, container, matched)
		res.Report = report
		if err != nil {
			res.Err = fmt.Errorf("create collection %q: %w", res.Name, err)
			return res
		}
		res.Created = true
		r.log.Info("collection created", "collection", res.Name,
			"bulk", report.Bulk, "fallback", report.Fallback, "failed", report.Failed())
		return res
	}

	if r.replace {
		// Clearing membership item by item keeps the collection's identity
		// stable; only the member set changes.
		members, err := r.dest.CollectionItems(ctx, existing.Key)
		if err != nil {
			res.Err = fmt.Errorf("list destination members of %q: %w", res.Name, err)
			return res
		}
		for _, m := range members {
			if err := r.writer.RemoveCollectionItem(ctx, existing.Key, m); err != nil {
				r.log.Warn("failed to remove member", "collection", res.Name,
					"item", m.DisplayTitle(), "error", err)
			}
		}
		res.Replaced = true
	}

	container := &collectionContainer{writer: r.writer, key: existing.Key}
	res.Report = r.batch.Append(ctx, container, matched)
	res.Updated = true
	r.log.Info("collection updated", "collection", res.Name, "replace", r.replace,
		"bulk", res.Report.Bulk, "fallback", res.Report.Fallback, "failed", res.Report.Failed())
	return res
}

// resolveMembers matches the member set, deduplicating on the destination
// key so one destination item is never added twice.
func (r *CollectionReconciler) resolveMembers(items []MediaItem, res *CollectionResult) []MediaItem {
	seen := make(map[string]bool)
	matched := make([]MediaItem, 0, len(items))
	for _, it := range items {
		hit, ok := r.index.Resolve(it)
		if !ok {
			res.Unmatched = append(res.Unmatched, it)
			continue
		}
		if seen[hit.Key] {
			continue
		}
		seen[hit.Key] = true
		matched = append(matched, hit)
	}
	return matched
}

func (r *CollectionReconciler) findDestCollection(ctx context.Context, name string) (*Collection, error) {
	sections, err := r.dest.Sections(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range sections {
		if !s.Video() {
			continue
		}
		colls, err := r.dest.Collections(ctx, s)
		if err != nil {
			r.log.Warn("could not list destination collections", "section", s.Title, "error", err)
			continue
		}
		for _, c := range colls {
			if c.Title == name {
				return &c, nil
			}
		}
	}
	return nil, nil
}

// collectionContainer binds a Writer and a collection behind the batch
// writer's Container interface. For an existing collection only Add is used.
type collectionContainer struct {
	writer     Writer
	title      string
	sectionKey string
	key        string
}

func (c *collectionContainer) Create(ctx context.Context, seed MediaItem) error {
	key, err := c.writer.CreateCollection(ctx, c.sectionKey, c.title, seed)
	if err != nil {
		return err
	}
	c.key = key
	return nil
}

func (c *collectionContainer) CreateManual(ctx context.Context, seed MediaItem) error {
	key, err := c.writer.CreateCollectionManual(ctx, c.sectionKey, c.title, seed)
	if err != nil {
		return err
	}
	c.key = key
	return nil
}

func (c *collectionContainer) Add(ctx context.Context, items []MediaItem) error {
	return c.writer.AddCollectionItems(ctx, c.key, items)
}
