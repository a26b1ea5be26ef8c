package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/justmedia/kodisync/internal/catalog"
)

// Processor finds, creates or updates a media item from one normalized
// record. Every item is processed inside its own transaction so a failure
// never leaves a half-applied entry behind.
type Processor struct {
	store     *catalog.Store
	source    *catalog.Source
	fillEmpty bool
	log       *slog.Logger
}

// NewProcessor builds a processor bound to one source. When fillEmpty is set,
// stale records may still fill attributes the stored item lacks.
func NewProcessor(store *catalog.Store, source *catalog.Source, fillEmpty bool, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{store: store, source: source, fillEmpty: fillEmpty, log: log}
}

// Process applies one record against the catalog and reports the outcome.
// sourceUpdatedAt is the update timestamp the source reported for the entry;
// it drives the newer-wins decision.
func (p *Processor) Process(ctx context.Context, rec *catalog.NormalizedRecord, sourceUpdatedAt time.Time) (*catalog.MediaItem, Action) {
	if rec == nil {
		return nil, ActionSkippedMappingFailed
	}
	if rec.Title == "" {
		p.log.Warn("Skipping item with no title after mapping")
		return nil, ActionSkippedMissingTitle
	}
	if !rec.IDs.HasAny() {
		p.log.Warn("Skipping item without external IDs", "title", rec.Title)
		return nil, ActionSkippedNoIDs
	}

	var item *catalog.MediaItem
	var action Action

	err := p.store.InTx(ctx, func(q *catalog.Queries) error {
		match, err := ResolveIdentity(ctx, q, rec.IDs)
		if err != nil {
			return err
		}

		switch match.Kind {
		case MatchExact:
			p.log.Debug("Exact identifier match", "media_item_id", match.Item.ID, "ids", rec.IDs.Summary())
			item = match.Item
			action, err = p.updateItem(ctx, q, match.Item, rec, sourceUpdatedAt, false)
			return err
		case MatchSubset:
			p.log.Debug("Subset identifier match", "media_item_id", match.Item.ID, "ids", rec.IDs.Summary())
			item = match.Item
			action, err = p.updateItem(ctx, q, match.Item, rec, sourceUpdatedAt, true)
			return err
		default:
			item, err = p.createItem(ctx, q, rec, sourceUpdatedAt)
			action = ActionCreated
			return err
		}
	})
	if err != nil {
		p.log.Error("Failed to process item", "title", rec.Title, "ids", rec.IDs.Summary(), "error", err)
		return nil, ActionError
	}
	return item, action
}

// updateItem applies the newer-wins policy to an existing media item. A
// subset match always updates and merges the wider identifier set; an exact
// match updates only when the source timestamp advanced, falling back to
// filling empty attributes when allowed.
func (p *Processor) updateItem(ctx context.Context, q *catalog.Queries, item *catalog.MediaItem,
	rec *catalog.NormalizedRecord, sourceUpdatedAt time.Time, subsetMatch bool) (Action, error) {

	meta, metaCreated, err := q.GetOrCreateSourceMetadata(ctx, item.ID, p.source.ID)
	if err != nil {
		return ActionError, err
	}

	updateMainData := false
	var updates []catalog.FieldUpdate

	if subsetMatch {
		updateMainData = true
		updates = append(rec.FieldUpdates(), rec.IDUpdates(item)...)
	} else if metaCreated || meta.SourceLastUpdatedAt == nil || sourceUpdatedAt.After(*meta.SourceLastUpdatedAt) {
		updateMainData = true
		updates = rec.FieldUpdates()
	} else if p.fillEmpty {
		updates = rec.FillEmptyUpdates(item)
		if len(updates) > 0 {
			p.log.Debug("Filling empty fields", "media_item_id", item.ID, "count", len(updates))
		}
	}

	if !updateMainData && len(updates) == 0 {
		p.log.Debug("Source data not newer, skipping", "media_item_id", item.ID)
		return ActionSkipped, nil
	}

	action := ActionSkipped
	if len(updates) > 0 {
		if err := q.UpdateMediaItemFields(ctx, item.ID, updates); err != nil {
			return ActionError, err
		}
		action = ActionUpdated
	}

	if updateMainData {
		// A relation failure on the update path is logged and absorbed so the
		// field updates above still land.
		changed, err := p.syncRelations(ctx, q, item.ID, rec)
		if err != nil {
			p.log.Error("Failed to update genre/country relations", "media_item_id", item.ID, "error", err)
		} else if changed {
			action = ActionUpdated
		}

		if err := p.stampMetadata(ctx, q, meta, metaCreated, sourceUpdatedAt); err != nil {
			p.log.Error("Failed to update source timestamp", "media_item_id", item.ID, "error", err)
		}
	}

	return action, nil
}

// createItem inserts a new media item with its relations and source metadata.
func (p *Processor) createItem(ctx context.Context, q *catalog.Queries, rec *catalog.NormalizedRecord,
	sourceUpdatedAt time.Time) (*catalog.MediaItem, error) {

	item, err := q.CreateMediaItem(ctx, rec)
	if err != nil {
		return nil, err
	}
	p.log.Info("Created media item", "media_item_id", item.ID, "title", item.Title)

	if _, err := p.syncRelations(ctx, q, item.ID, rec); err != nil {
		return nil, err
	}

	meta, metaCreated, err := q.GetOrCreateSourceMetadata(ctx, item.ID, p.source.ID)
	if err != nil {
		p.log.Error("Failed to create source metadata", "media_item_id", item.ID, "error", err)
		return item, nil
	}
	if err := p.stampMetadata(ctx, q, meta, metaCreated, sourceUpdatedAt); err != nil {
		p.log.Error("Failed to set source timestamp", "media_item_id", item.ID, "error", err)
	}
	return item, nil
}

// syncRelations converges the item's genre and country sets onto the record's
// and reports whether anything changed. Membership is replaced only when the
// sets actually differ.
func (p *Processor) syncRelations(ctx context.Context, q *catalog.Queries, itemID int64, rec *catalog.NormalizedRecord) (bool, error) {
	changed := false

	genresChanged, err := p.syncNamedSet(ctx, itemID, rec.Genres,
		func(name string) (int64, string, error) {
			g, created, err := q.GetOrCreateGenre(ctx, name)
			if err != nil {
				return 0, "", err
			}
			if created {
				p.log.Debug("Created genre", "name", g.Name)
			}
			return g.ID, g.Name, nil
		},
		func() (map[int64]string, error) { return q.MediaItemGenreIDs(ctx, itemID) },
		func(ids map[int64]string) error { return q.SetMediaItemGenres(ctx, itemID, ids) })
	if err != nil {
		return changed, err
	}
	changed = changed || genresChanged

	countriesChanged, err := p.syncNamedSet(ctx, itemID, rec.Countries,
		func(name string) (int64, string, error) {
			c, created, err := q.GetOrCreateCountry(ctx, name)
			if err != nil {
				return 0, "", err
			}
			if created {
				p.log.Debug("Created country", "name", c.Name)
			}
			return c.ID, c.Name, nil
		},
		func() (map[int64]string, error) { return q.MediaItemCountryIDs(ctx, itemID) },
		func(ids map[int64]string) error { return q.SetMediaItemCountries(ctx, itemID, ids) })
	if err != nil {
		return changed, err
	}
	return changed || countriesChanged, nil
}

func (p *Processor) syncNamedSet(ctx context.Context, itemID int64, names []string,
	getOrCreate func(string) (int64, string, error),
	current func() (map[int64]string, error),
	replace func(map[int64]string) error) (bool, error) {

	target := make(map[int64]string, len(names))
	for _, name := range names {
		id, stored, err := getOrCreate(name)
		if err != nil {
			return false, err
		}
		target[id] = stored
	}

	existing, err := current()
	if err != nil {
		return false, err
	}
	if sameIDSet(existing, target) {
		return false, nil
	}
	if err := replace(target); err != nil {
		return false, err
	}
	return true, nil
}

// stampMetadata advances the source timestamp when it changed or the metadata
// row was just created.
func (p *Processor) stampMetadata(ctx context.Context, q *catalog.Queries, meta *catalog.SourceMetadata,
	metaCreated bool, sourceUpdatedAt time.Time) error {

	if !metaCreated && meta.SourceLastUpdatedAt != nil && meta.SourceLastUpdatedAt.Equal(sourceUpdatedAt) {
		return nil
	}
	return q.SetSourceTimestamp(ctx, meta.ID, sourceUpdatedAt)
}

func sameIDSet(a, b map[int64]string) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}
