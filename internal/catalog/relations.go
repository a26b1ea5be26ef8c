package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Genre/country tables are identical name-keyed dedup tables; the helpers
// below are shared between them. Names match case-insensitively (the columns
// are COLLATE NOCASE) while the first-seen trimmed casing is what gets
// stored.

func (q *Queries) getOrCreateNamed(ctx context.Context, table, name string) (int64, string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, "", false, fmt.Errorf("catalog: empty %s name", strings.TrimSuffix(table, "s"))
	}

	var id int64
	var stored string
	err := q.db.QueryRowContext(ctx,
		`SELECT id, name FROM `+table+` WHERE name = ?`, name).Scan(&id, &stored)
	if err == nil {
		return id, stored, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, "", false, fmt.Errorf("failed to look up %s %q: %w", table, name, err)
	}

	res, err := q.db.ExecContext(ctx, `INSERT INTO `+table+` (name) VALUES (?)`, name)
	if err != nil {
		return 0, "", false, fmt.Errorf("failed to insert %s %q: %w", table, name, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, "", false, err
	}
	return id, name, true, nil
}

func (q *Queries) relatedNamed(ctx context.Context, table, joinTable, fkColumn string, mediaItemID int64) (map[int64]string, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT t.id, t.name FROM `+table+` t
		JOIN `+joinTable+` j ON j.`+fkColumn+` = t.id
		WHERE j.media_item_id = ?`, mediaItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s for media item %d: %w", table, mediaItemID, err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

func (q *Queries) setRelatedNamed(ctx context.Context, joinTable, fkColumn string, mediaItemID int64, ids map[int64]string) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM `+joinTable+` WHERE media_item_id = ?`, mediaItemID); err != nil {
		return fmt.Errorf("failed to clear %s for media item %d: %w", joinTable, mediaItemID, err)
	}
	for id := range ids {
		if _, err := q.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+joinTable+` (media_item_id, `+fkColumn+`) VALUES (?, ?)`,
			mediaItemID, id); err != nil {
			return fmt.Errorf("failed to relate %s %d to media item %d: %w", fkColumn, id, mediaItemID, err)
		}
	}
	return nil
}

// GetOrCreateGenre returns the genre matching name case-insensitively,
// creating it with the trimmed original casing when missing.
func (q *Queries) GetOrCreateGenre(ctx context.Context, name string) (*Genre, bool, error) {
	id, stored, created, err := q.getOrCreateNamed(ctx, "genres", name)
	if err != nil {
		return nil, false, err
	}
	return &Genre{ID: id, Name: stored}, created, nil
}

// GetOrCreateCountry is the country counterpart of GetOrCreateGenre.
func (q *Queries) GetOrCreateCountry(ctx context.Context, name string) (*Country, bool, error) {
	id, stored, created, err := q.getOrCreateNamed(ctx, "countries", name)
	if err != nil {
		return nil, false, err
	}
	return &Country{ID: id, Name: stored}, created, nil
}

// MediaItemGenreIDs returns the item's current genre set keyed by id.
func (q *Queries) MediaItemGenreIDs(ctx context.Context, mediaItemID int64) (map[int64]string, error) {
	return q.relatedNamed(ctx, "genres", "media_item_genres", "genre_id", mediaItemID)
}

// MediaItemCountryIDs returns the item's current country set keyed by id.
func (q *Queries) MediaItemCountryIDs(ctx context.Context, mediaItemID int64) (map[int64]string, error) {
	return q.relatedNamed(ctx, "countries", "media_item_countries", "country_id", mediaItemID)
}

// SetMediaItemGenres replaces the item's genre set.
func (q *Queries) SetMediaItemGenres(ctx context.Context, mediaItemID int64, genres map[int64]string) error {
	return q.setRelatedNamed(ctx, "media_item_genres", "genre_id", mediaItemID, genres)
}

// SetMediaItemCountries replaces the item's country set.
func (q *Queries) SetMediaItemCountries(ctx context.Context, mediaItemID int64, countries map[int64]string) error {
	return q.setRelatedNamed(ctx, "media_item_countries", "country_id", mediaItemID, countries)
}
