package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/justmedia/kodisync/internal/kodik"
)

// RunOptions control one pagination run over the source listing.
type RunOptions struct {
	// PageLimit caps the number of fetched pages; 0 means no cap.
	PageLimit int
	// TargetPage fetches pages sequentially but only starts processing from
	// this page number; 0 processes from the first page.
	TargetPage int
	// ItemsPerPage is the API page size (1-100).
	ItemsPerPage int
	// StartPageLink resumes from an opaque next_page URL of a previous run.
	StartPageLink string

	Types            []string
	Year             int
	SortBy           string
	SortOrder        string
	WithMaterialData bool
}

// Runner pages through the source listing and feeds every entry to the
// processor. A page fetch failure stops the run immediately: retrying or
// skipping a page could silently drop entries from the middle of the stream.
type Runner struct {
	client    *kodik.Client
	processor *Processor
	log       *slog.Logger
}

// NewRunner builds a runner over a source client and processor.
func NewRunner(client *kodik.Client, processor *Processor, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{client: client, processor: processor, log: log}
}

// Run executes the pagination loop. It returns the outcome counters together
// with the error that stopped the run early, if any; the stats collected up
// to that point are valid either way.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (Stats, error) {
	stats := make(Stats)
	nextPage := opts.StartPageLink

	for page := 1; ; page++ {
		if opts.PageLimit > 0 && page > opts.PageLimit {
			r.log.Info("Reached page limit, stopping", "limit", opts.PageLimit)
			break
		}

		params := kodik.ListParams{
			Limit:            opts.ItemsPerPage,
			Types:            opts.Types,
			Year:             opts.Year,
			Sort:             opts.SortBy,
			Order:            opts.SortOrder,
			WithMaterialData: opts.WithMaterialData,
		}
		if nextPage != "" {
			params = kodik.ListParams{PageLink: nextPage}
		}

		start := time.Now()
		resp, err := r.client.List(ctx, params)
		if err != nil {
			return stats, fmt.Errorf("fetching page %d: %w", page, err)
		}
		r.log.Info("Fetched page", "page", page, "items", len(resp.Results),
			"total", resp.Total, "took", time.Since(start).Round(time.Millisecond))

		if opts.TargetPage > 0 && page < opts.TargetPage {
			r.log.Info("Skipping page before target", "page", page, "target", opts.TargetPage)
		} else {
			for i := range resp.Results {
				if err := ctx.Err(); err != nil {
					return stats, err
				}
				stats.Add(r.processItem(ctx, &resp.Results[i]))
			}
		}

		nextPage = resp.NextPage
		if nextPage == "" {
			r.log.Info("No next page link, finished")
			break
		}
	}

	return stats, nil
}

// processItem maps and upserts one payload entry, classifying the outcome.
func (r *Runner) processItem(ctx context.Context, item *kodik.Item) Action {
	if item.UpdatedAt == "" {
		r.log.Warn("Entry has no updated_at, skipping", "id", item.ID)
		return ActionSkippedBadTimestamp
	}
	updatedAt, err := time.Parse(time.RFC3339, item.UpdatedAt)
	if err != nil {
		r.log.Warn("Could not parse updated_at, skipping", "id", item.ID, "value", item.UpdatedAt)
		return ActionSkippedBadTimestamp
	}

	rec, err := kodik.MapItem(item)
	if err != nil {
		if errors.Is(err, kodik.ErrMissingTitle) {
			r.log.Warn("Entry has no title, skipping", "id", item.ID)
			return ActionSkippedMissingTitle
		}
		r.log.Warn("Could not map entry, skipping", "id", item.ID, "error", err)
		return ActionSkippedMappingFailed
	}

	_, action := r.processor.Process(ctx, rec, updatedAt)
	return action
}
