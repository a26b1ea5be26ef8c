// Package translations maintains the voiceover/subtitle track dictionary and
// synchronizes per-track playable links, seasons and episodes.
package translations

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/justmedia/kodisync/internal/catalog"
	"github.com/justmedia/kodisync/internal/kodik"
)

// PopulateResult counts the outcome of one dictionary refresh.
type PopulateResult struct {
	Total   int
	Created int
	Updated int
	Skipped int
}

// Populator refreshes the translation dictionary from the source API.
type Populator struct {
	store  *catalog.Store
	client *kodik.Client
	log    *slog.Logger
}

// NewPopulator builds a dictionary populator.
func NewPopulator(store *catalog.Store, client *kodik.Client, log *slog.Logger) *Populator {
	if log == nil {
		log = slog.Default()
	}
	return &Populator{store: store, client: client, log: log}
}

// Populate fetches the full dictionary and upserts every entry inside a
// single transaction. When clear is set, existing rows are removed first.
func (p *Populator) Populate(ctx context.Context, clear bool) (*PopulateResult, error) {
	if clear {
		deleted, err := p.store.DeleteAllTranslations(ctx)
		if err != nil {
			return nil, fmt.Errorf("clearing translations: %w", err)
		}
		p.log.Warn("Cleared existing translations", "deleted", deleted)
	}

	resp, err := p.client.Translations(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching translations: %w", err)
	}

	result := &PopulateResult{Total: len(resp.Results)}
	p.log.Info("Fetched translations from API", "count", result.Total)

	err = p.store.InTx(ctx, func(q *catalog.Queries) error {
		for _, entry := range resp.Results {
			if entry.ID <= 0 || strings.TrimSpace(entry.Title) == "" {
				p.log.Warn("Skipping translation entry with missing id or title",
					"id", entry.ID, "title", entry.Title)
				result.Skipped++
				continue
			}
			created, changed, err := q.UpsertTranslation(ctx, entry.ID, entry.Title)
			if err != nil {
				p.log.Error("Failed to upsert translation", "id", entry.ID, "error", err)
				result.Skipped++
				continue
			}
			switch {
			case created:
				result.Created++
			case changed:
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
