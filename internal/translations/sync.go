package translations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/justmedia/kodisync/internal/catalog"
	"github.com/justmedia/kodisync/internal/kodik"
)

// Syncer refreshes seasons, episodes, screenshots and per-translation
// playable links for media items by querying the source's search endpoint
// with the item's external identifiers.
type Syncer struct {
	store   *catalog.Store
	client  *kodik.Client
	source  *catalog.Source
	cleanup bool
	log     *slog.Logger
}

// NewSyncer builds a link synchronizer for one source. When cleanup is set,
// link rows not seen during an item's refresh are deleted afterwards.
func NewSyncer(store *catalog.Store, client *kodik.Client, source *catalog.Source, cleanup bool, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{store: store, client: client, source: source, cleanup: cleanup, log: log}
}

// SyncOptions selects which media items to refresh.
type SyncOptions struct {
	// IDs names specific media items; takes precedence over All.
	IDs []int64
	// All refreshes every media item.
	All bool
	// Limit caps the number of items when All is set; 0 means no cap.
	Limit int
	// SkipUpdatedWithin skips items whose source metadata was stamped within
	// this window; 0 disables the filter.
	SkipUpdatedWithin time.Duration
}

// Run refreshes the selected items one by one. A failure on one item is
// logged and counted, never aborts the rest of the run.
func (s *Syncer) Run(ctx context.Context, opts SyncOptions) (processed, failed int, err error) {
	trMap, err := s.store.TranslationsByKodikID(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("loading translation dictionary: %w", err)
	}
	if len(trMap) == 0 {
		s.log.Warn("Translation table is empty, run 'translations populate' first")
	}

	items, err := s.selectItems(ctx, opts)
	if err != nil {
		return 0, 0, err
	}
	s.log.Info("Found media items to process", "count", len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return processed, failed, err
		}
		ok, err := s.SyncItem(ctx, item, trMap)
		if err != nil {
			s.log.Error("Failed to sync media item", "media_item_id", item.ID, "error", err)
			failed++
			continue
		}
		if ok {
			processed++
		}
	}
	return processed, failed, nil
}

func (s *Syncer) selectItems(ctx context.Context, opts SyncOptions) ([]*catalog.MediaItem, error) {
	if len(opts.IDs) > 0 {
		items, err := s.store.ListMediaItems(ctx, catalog.ListMediaItemsOptions{IDs: opts.IDs})
		if err != nil {
			return nil, err
		}
		if len(items) != len(opts.IDs) {
			found := make(map[int64]bool, len(items))
			for _, item := range items {
				found[item.ID] = true
			}
			var missing []int64
			for _, id := range opts.IDs {
				if !found[id] {
					missing = append(missing, id)
				}
			}
			s.log.Warn("Some media items were not found", "ids", missing)
		}
		return items, nil
	}

	listOpts := catalog.ListMediaItemsOptions{Limit: opts.Limit}
	if opts.SkipUpdatedWithin > 0 {
		cutoff := time.Now().Add(-opts.SkipUpdatedWithin)
		listOpts.SourceID = s.source.ID
		listOpts.UpdatedBefore = &cutoff
		s.log.Info("Skipping items with source metadata newer than cutoff", "cutoff", cutoff)
	}
	return s.store.ListMediaItems(ctx, listOpts)
}

// SyncItem refreshes one media item. It reports false without error when the
// item carries no external identifiers to search by.
func (s *Syncer) SyncItem(ctx context.Context, item *catalog.MediaItem, trMap map[int]catalog.Translation) (bool, error) {
	if !item.IDs.HasAny() {
		s.log.Warn("Skipping item without external IDs", "media_item_id", item.ID)
		return false, nil
	}

	s.log.Debug("Searching source for item", "media_item_id", item.ID, "ids", item.IDs.Summary())
	resp, err := s.client.SearchByIDs(ctx, kodik.SearchParams{
		IDs:              item.IDs,
		WithEpisodesData: true,
		WithMaterialData: true,
		Limit:            kodik.MaxPageLimit,
	})
	if err != nil {
		return false, fmt.Errorf("searching source: %w", err)
	}

	if len(resp.Results) == 0 {
		s.log.Debug("No translation variants found", "media_item_id", item.ID)
	} else {
		s.log.Debug("Found translation variants", "media_item_id", item.ID, "count", len(resp.Results))
	}

	checkStart := time.Now()
	err = s.store.InTx(ctx, func(q *catalog.Queries) error {
		touched := make([]int64, 0, len(resp.Results))

		for i := range resp.Results {
			touched = s.syncVariant(ctx, q, item, &resp.Results[i], trMap, checkStart, touched)
		}

		if s.cleanup {
			deleted, err := q.DeleteStaleLinks(ctx, item.ID, s.source.ID, touched)
			if err != nil {
				return fmt.Errorf("cleaning up stale links: %w", err)
			}
			if deleted > 0 {
				s.log.Info("Cleaned up stale links", "media_item_id", item.ID, "deleted", deleted)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// syncVariant applies one translation variant: the main link plus every
// season, episode, screenshot and episode link it carries. Individual row
// failures are logged and absorbed so one bad entry cannot sink the variant.
func (s *Syncer) syncVariant(ctx context.Context, q *catalog.Queries, item *catalog.MediaItem,
	variant *kodik.Item, trMap map[int]catalog.Translation, checkStart time.Time, touched []int64) []int64 {

	if variant.Translation == nil {
		s.log.Warn("Skipping variant without translation data", "media_item_id", item.ID)
		return touched
	}
	tr, ok := trMap[variant.Translation.ID]
	if !ok {
		s.log.Warn("Skipping variant with unknown translation",
			"media_item_id", item.ID, "translation_id", variant.Translation.ID)
		return touched
	}
	trID := &tr.ID
	quality := nonEmptyPtr(variant.Quality)

	if variant.Link != "" {
		linkID, created, err := q.UpsertMainLink(ctx, item.ID, trID, s.source.ID, catalog.LinkAttrs{
			PlayerLink:       variant.Link,
			QualityInfo:      quality,
			SourceSpecificID: nonEmptyPtr(variant.ID),
			LastSeenAt:       checkStart,
		})
		if err != nil {
			s.log.Error("Failed to save main link",
				"media_item_id", item.ID, "translation", tr.Title, "error", err)
		} else {
			touched = append(touched, linkID)
			s.log.Debug("Saved main link", "media_item_id", item.ID, "translation", tr.Title, "created", created)
		}
	}

	for seasonKey, seasonMedia := range variant.Seasons {
		seasonNumber, err := strconv.Atoi(seasonKey)
		if err != nil || seasonNumber < -1 {
			s.log.Warn("Skipping invalid season number", "media_item_id", item.ID, "season", seasonKey)
			continue
		}

		season, err := q.GetOrCreateSeason(ctx, item.ID, seasonNumber)
		if err != nil {
			s.log.Error("Failed to get or create season",
				"media_item_id", item.ID, "season", seasonNumber, "error", err)
			continue
		}

		for episodeKey, episodeMedia := range seasonMedia.Episodes {
			episodeNumber, err := strconv.Atoi(episodeKey)
			if err != nil || episodeNumber <= 0 {
				s.log.Warn("Skipping invalid episode number",
					"media_item_id", item.ID, "season", seasonNumber, "episode", episodeKey)
				continue
			}

			episode, err := q.UpsertEpisode(ctx, season.ID, episodeNumber, nonEmptyPtr(episodeMedia.Title))
			if err != nil {
				s.log.Error("Failed to upsert episode",
					"media_item_id", item.ID, "season", seasonNumber, "episode", episodeNumber, "error", err)
				continue
			}

			for _, url := range episodeMedia.Screenshots {
				if !strings.HasPrefix(url, "http") {
					continue
				}
				if _, err := q.AddScreenshot(ctx, episode.ID, url); err != nil {
					s.log.Error("Failed to save screenshot", "episode_id", episode.ID, "url", url, "error", err)
				}
			}

			if episodeMedia.Link == "" {
				continue
			}
			linkID, _, err := q.UpsertEpisodeLink(ctx, episode.ID, trID, s.source.ID, catalog.LinkAttrs{
				PlayerLink:  episodeMedia.Link,
				QualityInfo: quality,
				LastSeenAt:  checkStart,
			})
			if err != nil {
				s.log.Error("Failed to save episode link",
					"episode_id", episode.ID, "translation", tr.Title, "error", err)
				continue
			}
			touched = append(touched, linkID)
		}
	}

	return touched
}

func nonEmptyPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
