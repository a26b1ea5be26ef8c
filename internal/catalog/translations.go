package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// UpsertTranslation creates or refreshes a translation dictionary row keyed
// by the source's numeric id. It reports whether the row was created and
// whether an existing title changed.
func (q *Queries) UpsertTranslation(ctx context.Context, kodikID int, title string) (created, changed bool, err error) {
	title = strings.TrimSpace(title)

	var id int64
	var stored string
	err = q.db.QueryRowContext(ctx,
		`SELECT id, title FROM translations WHERE kodik_id = ?`, kodikID).Scan(&id, &stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := q.db.ExecContext(ctx,
			`INSERT INTO translations (kodik_id, title) VALUES (?, ?)`, kodikID, title); err != nil {
			return false, false, fmt.Errorf("failed to insert translation %d: %w", kodikID, err)
		}
		return true, false, nil
	case err != nil:
		return false, false, fmt.Errorf("failed to look up translation %d: %w", kodikID, err)
	}

	if stored == title {
		return false, false, nil
	}
	if _, err := q.db.ExecContext(ctx,
		`UPDATE translations SET title = ? WHERE id = ?`, title, id); err != nil {
		return false, false, fmt.Errorf("failed to update translation %d: %w", kodikID, err)
	}
	return false, true, nil
}

// TranslationsByKodikID loads the whole translation lookup table keyed by the
// source's numeric id.
func (q *Queries) TranslationsByKodikID(ctx context.Context) (map[int]Translation, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, kodik_id, title FROM translations`)
	if err != nil {
		return nil, fmt.Errorf("failed to load translations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int]Translation)
	for rows.Next() {
		var t Translation
		if err := rows.Scan(&t.ID, &t.KodikID, &t.Title); err != nil {
			return nil, err
		}
		out[t.KodikID] = t
	}
	return out, rows.Err()
}

// DeleteAllTranslations clears the lookup table and returns the number of
// removed rows.
func (q *Queries) DeleteAllTranslations(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM translations`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear translations: %w", err)
	}
	return res.RowsAffected()
}
