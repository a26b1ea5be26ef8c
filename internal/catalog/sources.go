package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetOrCreateSource returns the source with the given slug, creating it on
// first use.
func (q *Queries) GetOrCreateSource(ctx context.Context, name, slug string) (*Source, error) {
	var s Source
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name, slug FROM sources WHERE slug = ?`, slug).
		Scan(&s.ID, &s.Name, &s.Slug)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up source %q: %w", slug, err)
	}

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO sources (name, slug) VALUES (?, ?)`, name, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to create source %q: %w", slug, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Source{ID: id, Name: name, Slug: slug}, nil
}

// GetOrCreateSourceMetadata loads the per-(item, source) staleness record,
// creating an empty one (no timestamp yet) when missing. The second return
// reports whether the row was just created.
func (q *Queries) GetOrCreateSourceMetadata(ctx context.Context, mediaItemID, sourceID int64) (*SourceMetadata, bool, error) {
	meta, err := q.MetadataFor(ctx, mediaItemID, sourceID)
	if err == nil {
		return meta, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO media_item_source_metadata (media_item_id, source_id, source_last_updated_at)
		VALUES (?, ?, NULL)`, mediaItemID, sourceID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create source metadata: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, err
	}
	return &SourceMetadata{ID: id, MediaItemID: mediaItemID, SourceID: sourceID}, true, nil
}

// MetadataFor loads the staleness record for one (item, source) pair.
func (q *Queries) MetadataFor(ctx context.Context, mediaItemID, sourceID int64) (*SourceMetadata, error) {
	var meta SourceMetadata
	var ts sql.NullString
	err := q.db.QueryRowContext(ctx, `
		SELECT id, media_item_id, source_id, source_last_updated_at
		FROM media_item_source_metadata
		WHERE media_item_id = ? AND source_id = ?`, mediaItemID, sourceID).
		Scan(&meta.ID, &meta.MediaItemID, &meta.SourceID, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source metadata: %w", err)
	}
	if meta.SourceLastUpdatedAt, err = fromNullTime(ts); err != nil {
		return nil, fmt.Errorf("failed to parse source timestamp: %w", err)
	}
	return &meta, nil
}

// SetSourceTimestamp advances the last-seen source timestamp for a metadata
// row.
func (q *Queries) SetSourceTimestamp(ctx context.Context, metadataID int64, ts time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE media_item_source_metadata SET source_last_updated_at = ? WHERE id = ?`,
		formatTime(ts), metadataID)
	if err != nil {
		return fmt.Errorf("failed to update source timestamp: %w", err)
	}
	return nil
}
