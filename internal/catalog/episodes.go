package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetOrCreateSeason returns the season row for (media item, number), creating
// it when missing. Number 0 and -1 are valid sentinels (extras, specials).
func (q *Queries) GetOrCreateSeason(ctx context.Context, mediaItemID int64, number int) (*Season, error) {
	var s Season
	err := q.db.QueryRowContext(ctx, `
		SELECT id, media_item_id, season_number FROM seasons
		WHERE media_item_id = ? AND season_number = ?`, mediaItemID, number).
		Scan(&s.ID, &s.MediaItemID, &s.Number)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up season %d: %w", number, err)
	}

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO seasons (media_item_id, season_number) VALUES (?, ?)`, mediaItemID, number)
	if err != nil {
		return nil, fmt.Errorf("failed to create season %d: %w", number, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Season{ID: id, MediaItemID: mediaItemID, Number: number}, nil
}

// UpsertEpisode creates the episode row for (season, number) or refreshes its
// title.
func (q *Queries) UpsertEpisode(ctx context.Context, seasonID int64, number int, title *string) (*Episode, error) {
	var e Episode
	var stored sql.NullString
	err := q.db.QueryRowContext(ctx, `
		SELECT id, season_id, episode_number, title FROM episodes
		WHERE season_id = ? AND episode_number = ?`, seasonID, number).
		Scan(&e.ID, &e.SeasonID, &e.Number, &stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := q.db.ExecContext(ctx,
			`INSERT INTO episodes (season_id, episode_number, title) VALUES (?, ?, ?)`,
			seasonID, number, nullString(title))
		if err != nil {
			return nil, fmt.Errorf("failed to create episode %d: %w", number, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		return &Episode{ID: id, SeasonID: seasonID, Number: number, Title: title}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up episode %d: %w", number, err)
	}

	e.Title = fromNullString(stored)
	if !equalPtr(e.Title, title) {
		if _, err := q.db.ExecContext(ctx,
			`UPDATE episodes SET title = ? WHERE id = ?`, nullString(title), e.ID); err != nil {
			return nil, fmt.Errorf("failed to update episode %d: %w", number, err)
		}
		e.Title = title
	}
	return &e, nil
}

// AddScreenshot records an episode screenshot, deduplicated by its globally
// unique URL. Reports whether a new row was inserted.
func (q *Queries) AddScreenshot(ctx context.Context, episodeID int64, url string) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO screenshots (episode_id, url) VALUES (?, ?)`, episodeID, url)
	if err != nil {
		return false, fmt.Errorf("failed to insert screenshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// EpisodeScreenshots returns the URLs stored for one episode.
func (q *Queries) EpisodeScreenshots(ctx context.Context, episodeID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT url FROM screenshots WHERE episode_id = ? ORDER BY id`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load screenshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
