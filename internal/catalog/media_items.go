package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const mediaItemColumns = `id, title, original_title, media_type, release_year, description, poster_url,
	kinopoisk_id, imdb_id, shikimori_id, mydramalist_id, created_at, updated_at`

// updatableColumns whitelists the columns UpdateMediaItemFields may touch.
var updatableColumns = map[string]bool{
	"title":            true,
	"original_title":   true,
	"media_type":       true,
	"release_year":     true,
	"description":      true,
	"poster_url":       true,
	FieldKinopoiskID:   true,
	FieldIMDBID:        true,
	FieldShikimoriID:   true,
	FieldMyDramaListID: true,
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMediaItem(row rowScanner) (*MediaItem, error) {
	var (
		m                               MediaItem
		mediaType                       string
		origTitle, desc, poster         sql.NullString
		kinopoisk, imdb, shikimori, mdl sql.NullString
		year                            sql.NullInt64
		createdAt, updatedAt            string
	)
	err := row.Scan(&m.ID, &m.Title, &origTitle, &mediaType, &year, &desc, &poster,
		&kinopoisk, &imdb, &shikimori, &mdl, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	m.MediaType = MediaType(mediaType)
	m.OriginalTitle = fromNullString(origTitle)
	m.Description = fromNullString(desc)
	m.PosterURL = fromNullString(poster)
	if year.Valid {
		y := int(year.Int64)
		m.ReleaseYear = &y
	}
	m.IDs = ExternalIDs{
		Kinopoisk:   fromNullString(kinopoisk),
		IMDB:        fromNullString(imdb),
		Shikimori:   fromNullString(shikimori),
		MyDramaList: fromNullString(mdl),
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if m.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &m, nil
}

// idArg binds an identifier for a NULL-aware comparison: absent and empty
// values both bind as NULL.
func idArg(ids ExternalIDs, field string) any {
	v := ids.Get(field)
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

// CreateMediaItem inserts a new media item with every attribute the record
// carries, identifiers included.
func (q *Queries) CreateMediaItem(ctx context.Context, rec *NormalizedRecord) (*MediaItem, error) {
	now := formatTime(time.Now())
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO media_items (title, original_title, media_type, release_year, description, poster_url,
			kinopoisk_id, imdb_id, shikimori_id, mydramalist_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Title, nullString(rec.OriginalTitle), string(rec.MediaType), nullInt(rec.ReleaseYear),
		nullString(rec.Description), nullString(rec.PosterURL),
		idArg(rec.IDs, FieldKinopoiskID), idArg(rec.IDs, FieldIMDBID),
		idArg(rec.IDs, FieldShikimoriID), idArg(rec.IDs, FieldMyDramaListID),
		now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert media item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted media item id: %w", err)
	}
	return q.GetMediaItem(ctx, id)
}

// GetMediaItem loads one media item by primary key.
func (q *Queries) GetMediaItem(ctx context.Context, id int64) (*MediaItem, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+mediaItemColumns+` FROM media_items WHERE id = ?`, id)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

// FindMediaItemByIDs looks up the media item matching the identifier
// combination exactly: an absent identifier requires the stored column to be
// NULL as well. Returns (nil, nil) when nothing matches and
// ErrMultipleMatches when the uniqueness invariant is broken.
func (q *Queries) FindMediaItemByIDs(ctx context.Context, ids ExternalIDs) (*MediaItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+mediaItemColumns+` FROM media_items
		WHERE kinopoisk_id IS ? AND imdb_id IS ? AND shikimori_id IS ? AND mydramalist_id IS ?
		ORDER BY id LIMIT 2`,
		idArg(ids, FieldKinopoiskID), idArg(ids, FieldIMDBID),
		idArg(ids, FieldShikimoriID), idArg(ids, FieldMyDramaListID))
	if err != nil {
		return nil, fmt.Errorf("failed to query exact identifier match: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return items[0], nil
	default:
		return nil, ErrMultipleMatches
	}
}

// FindSubsetCandidates returns media items that share at least one
// identifier with ids and hold no conflicting value in any identifier column
// ids supplies. The caller applies the subset and priority rules.
func (q *Queries) FindSubsetCandidates(ctx context.Context, ids ExternalIDs) ([]*MediaItem, error) {
	nonEmpty := ids.NonEmpty()
	if len(nonEmpty) == 0 {
		return nil, nil
	}

	var shares []string
	var args []any
	for _, field := range IDFields() {
		if v, ok := nonEmpty[field]; ok {
			shares = append(shares, field+" = ?")
			args = append(args, v)
		}
	}
	where := "(" + strings.Join(shares, " OR ") + ")"
	for _, field := range IDFields() {
		if v, ok := nonEmpty[field]; ok {
			where += " AND (" + field + " IS NULL OR " + field + " = ?)"
			args = append(args, v)
		}
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+mediaItemColumns+` FROM media_items WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subset candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateMediaItemFields applies a field-update whitelist to one media item.
// Only whitelisted columns are accepted; updated_at advances alongside.
func (q *Queries) UpdateMediaItemFields(ctx context.Context, id int64, updates []FieldUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	set := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+2)
	for _, u := range updates {
		if !updatableColumns[u.Column] {
			return fmt.Errorf("catalog: column %q is not updatable", u.Column)
		}
		set = append(set, u.Column+" = ?")
		args = append(args, u.Value)
	}
	set = append(set, "updated_at = ?")
	args = append(args, formatTime(time.Now()), id)

	res, err := q.db.ExecContext(ctx,
		`UPDATE media_items SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update media item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMediaItemsOptions filters ListMediaItems. When UpdatedBefore is set,
// items whose metadata for SourceID was stamped at or after that moment are
// skipped (items without metadata are always included).
type ListMediaItemsOptions struct {
	IDs           []int64
	Limit         int
	SourceID      int64
	UpdatedBefore *time.Time
}

// ListMediaItems returns media items ordered by primary key.
func (q *Queries) ListMediaItems(ctx context.Context, opts ListMediaItemsOptions) ([]*MediaItem, error) {
	cols := make([]string, 0, 13)
	for _, c := range strings.Split(mediaItemColumns, ",") {
		cols = append(cols, "m."+strings.TrimSpace(c))
	}
	query := `SELECT ` + strings.Join(cols, ", ") + ` FROM media_items m`
	var args []any
	var where []string

	if opts.UpdatedBefore != nil {
		query += ` LEFT JOIN media_item_source_metadata sm
			ON sm.media_item_id = m.id AND sm.source_id = ?`
		args = append(args, opts.SourceID)
		where = append(where, `(sm.source_last_updated_at IS NULL OR sm.source_last_updated_at < ?)`)
		args = append(args, formatTime(*opts.UpdatedBefore))
	}
	if len(opts.IDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(opts.IDs)), ",")
		where = append(where, `m.id IN (`+placeholders+`)`)
		for _, id := range opts.IDs {
			args = append(args, id)
		}
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY m.id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list media items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
