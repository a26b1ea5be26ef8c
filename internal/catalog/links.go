package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// LinkAttrs carries the mutable attributes of a playable link row.
type LinkAttrs struct {
	PlayerLink       string
	QualityInfo      *string
	SourceSpecificID *string
	LastSeenAt       time.Time
}

func (q *Queries) upsertLink(ctx context.Context, lookupWhere string, lookupArgs []any,
	mediaItemID, episodeID *int64, translationID *int64, sourceID int64, attrs LinkAttrs) (int64, bool, error) {

	var id int64
	err := q.db.QueryRowContext(ctx,
		`SELECT id FROM media_source_links WHERE `+lookupWhere, lookupArgs...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := q.db.ExecContext(ctx, `
			INSERT INTO media_source_links
				(media_item_id, episode_id, source_id, translation_id,
				 player_link, quality_info, source_specific_id, last_seen_at, added_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			nullInt64(mediaItemID), nullInt64(episodeID), sourceID, nullInt64(translationID),
			attrs.PlayerLink, nullString(attrs.QualityInfo), nullString(attrs.SourceSpecificID),
			formatTime(attrs.LastSeenAt), formatTime(time.Now()))
		if err != nil {
			return 0, false, fmt.Errorf("failed to insert link: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, false, err
		}
		return id, true, nil
	case err != nil:
		return 0, false, fmt.Errorf("failed to look up link: %w", err)
	}

	if _, err := q.db.ExecContext(ctx, `
		UPDATE media_source_links
		SET player_link = ?, quality_info = ?, source_specific_id = ?, last_seen_at = ?
		WHERE id = ?`,
		attrs.PlayerLink, nullString(attrs.QualityInfo), nullString(attrs.SourceSpecificID),
		formatTime(attrs.LastSeenAt), id); err != nil {
		return 0, false, fmt.Errorf("failed to update link %d: %w", id, err)
	}
	return id, false, nil
}

// UpsertMainLink creates or refreshes the movie-level link row keyed by
// (media item, translation, source).
func (q *Queries) UpsertMainLink(ctx context.Context, mediaItemID int64, translationID *int64, sourceID int64, attrs LinkAttrs) (int64, bool, error) {
	return q.upsertLink(ctx,
		`media_item_id = ? AND episode_id IS NULL AND source_id = ? AND translation_id IS ?`,
		[]any{mediaItemID, sourceID, nullInt64(translationID)},
		&mediaItemID, nil, translationID, sourceID, attrs)
}

// UpsertEpisodeLink creates or refreshes the episode-scoped link row keyed by
// (episode, translation, source).
func (q *Queries) UpsertEpisodeLink(ctx context.Context, episodeID int64, translationID *int64, sourceID int64, attrs LinkAttrs) (int64, bool, error) {
	return q.upsertLink(ctx,
		`episode_id = ? AND source_id = ? AND translation_id IS ?`,
		[]any{episodeID, sourceID, nullInt64(translationID)},
		nil, &episodeID, translationID, sourceID, attrs)
}

// DeleteStaleLinks removes every link row in the media item's scope (its main
// links and all of its episodes' links) for the given source whose primary
// key is not in keep. Returns the number of deleted rows.
func (q *Queries) DeleteStaleLinks(ctx context.Context, mediaItemID, sourceID int64, keep []int64) (int64, error) {
	query := `
		DELETE FROM media_source_links
		WHERE source_id = ?
		  AND ((media_item_id = ? AND episode_id IS NULL)
		       OR episode_id IN (SELECT e.id FROM episodes e
		                         JOIN seasons s ON s.id = e.season_id
		                         WHERE s.media_item_id = ?))`
	args := []any{sourceID, mediaItemID, mediaItemID}
	if len(keep) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
		query += ` AND id NOT IN (` + placeholders + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}

	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale links: %w", err)
	}
	return res.RowsAffected()
}

// LinksForMediaItem returns every link in the item's scope for one source,
// ordered by primary key.
func (q *Queries) LinksForMediaItem(ctx context.Context, mediaItemID, sourceID int64) ([]MediaSourceLink, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, media_item_id, episode_id, source_id, translation_id,
		       player_link, quality_info, source_specific_id, last_seen_at, added_at
		FROM media_source_links
		WHERE source_id = ?
		  AND ((media_item_id = ? AND episode_id IS NULL)
		       OR episode_id IN (SELECT e.id FROM episodes e
		                         JOIN seasons s ON s.id = e.season_id
		                         WHERE s.media_item_id = ?))
		ORDER BY id`, sourceID, mediaItemID, mediaItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var links []MediaSourceLink
	for rows.Next() {
		var (
			l                  MediaSourceLink
			itemID, epID, trID sql.NullInt64
			quality, specific  sql.NullString
			lastSeen           sql.NullString
			addedAt            string
		)
		if err := rows.Scan(&l.ID, &itemID, &epID, &l.SourceID, &trID,
			&l.PlayerLink, &quality, &specific, &lastSeen, &addedAt); err != nil {
			return nil, err
		}
		if itemID.Valid {
			l.MediaItemID = &itemID.Int64
		}
		if epID.Valid {
			l.EpisodeID = &epID.Int64
		}
		if trID.Valid {
			l.TranslationID = &trID.Int64
		}
		l.QualityInfo = fromNullString(quality)
		l.SourceSpecificID = fromNullString(specific)
		if l.LastSeenAt, err = fromNullTime(lastSeen); err != nil {
			return nil, err
		}
		if l.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
