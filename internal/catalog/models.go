// Package catalog holds the canonical media data model and its SQLite store.
package catalog

import (
	"fmt"
	"strings"
	"time"
)

// MediaType is the canonical media type enum. External type strings are
// mapped onto these values at the source-client boundary; anything the
// mapping does not recognize becomes MediaTypeUnknown.
type MediaType string

const (
	MediaTypeMovie             MediaType = "movie"
	MediaTypeTVShow            MediaType = "tv_show"
	MediaTypeAnimeMovie        MediaType = "anime_movie"
	MediaTypeAnimeSeries       MediaType = "anime_series"
	MediaTypeCartoonMovie      MediaType = "cartoon_movie"
	MediaTypeCartoonSeries     MediaType = "cartoon_series"
	MediaTypeDocumentaryMovie  MediaType = "documentary_movie"
	MediaTypeDocumentarySeries MediaType = "documentary_series"
	MediaTypeUnknown           MediaType = "unknown"
)

// Column names for the four external identifier fields, in priority order
// (kinopoisk and imdb outrank shikimori and mydramalist during subset
// matching).
const (
	FieldKinopoiskID   = "kinopoisk_id"
	FieldIMDBID        = "imdb_id"
	FieldShikimoriID   = "shikimori_id"
	FieldMyDramaListID = "mydramalist_id"
)

// IDFields lists the external identifier columns in their canonical order.
func IDFields() []string {
	return []string{FieldKinopoiskID, FieldIMDBID, FieldShikimoriID, FieldMyDramaListID}
}

// ExternalIDs collects the foreign-system identifiers that recognize the same
// title across independent fetches. A nil pointer means the source did not
// report that identifier.
type ExternalIDs struct {
	Kinopoisk   *string
	IMDB        *string
	Shikimori   *string
	MyDramaList *string
}

// Get returns the value for the given identifier column, or nil.
func (ids ExternalIDs) Get(field string) *string {
	switch field {
	case FieldKinopoiskID:
		return ids.Kinopoisk
	case FieldIMDBID:
		return ids.IMDB
	case FieldShikimoriID:
		return ids.Shikimori
	case FieldMyDramaListID:
		return ids.MyDramaList
	}
	return nil
}

// NonEmpty returns the identifiers that carry a value, keyed by column name.
func (ids ExternalIDs) NonEmpty() map[string]string {
	out := make(map[string]string, 4)
	for _, field := range IDFields() {
		if v := ids.Get(field); v != nil && *v != "" {
			out[field] = *v
		}
	}
	return out
}

// HasAny reports whether at least one identifier is set.
func (ids ExternalIDs) HasAny() bool {
	return len(ids.NonEmpty()) > 0
}

// HasPriorityID reports whether a kinopoisk or imdb identifier is set. These
// two carry more weight than shikimori/mydramalist when breaking subset-match
// ties.
func (ids ExternalIDs) HasPriorityID() bool {
	ne := ids.NonEmpty()
	return ne[FieldKinopoiskID] != "" || ne[FieldIMDBID] != ""
}

// Summary renders a short human-friendly description of the set identifiers.
func (ids ExternalIDs) Summary() string {
	var parts []string
	for _, field := range IDFields() {
		if v := ids.Get(field); v != nil && *v != "" {
			parts = append(parts, fmt.Sprintf("%s:%s", strings.TrimSuffix(field, "_id"), *v))
		}
	}
	if len(parts) == 0 {
		return "no IDs"
	}
	return strings.Join(parts, ", ")
}

// MediaItem is the canonical entity for a film, show or anime. At most one
// MediaItem may hold any given non-null external identifier value; the store
// enforces this with partial unique indexes.
type MediaItem struct {
	ID            int64
	Title         string
	OriginalTitle *string
	MediaType     MediaType
	ReleaseYear   *int
	Description   *string
	PosterURL     *string
	IDs           ExternalIDs
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Genre is a name-keyed dedup table entry.
type Genre struct {
	ID   int64
	Name string
}

// Country is a name-keyed dedup table entry.
type Country struct {
	ID   int64
	Name string
}

// Source is an upstream data provider, identified by slug.
type Source struct {
	ID   int64
	Name string
	Slug string
}

// Translation is a voiceover/subtitle track dictionary entry identified by
// the source's numeric id. Rows are populated by a dedicated command; the
// link synchronizer treats the table as read-only lookup data.
type Translation struct {
	ID      int64
	KodikID int
	Title   string
}

// Season groups episodes under a media item. Number 0 is used for
// extras/OVAs and -1 for specials; anything below -1 is invalid.
type Season struct {
	ID          int64
	MediaItemID int64
	Number      int
}

// Episode belongs to a season. Episode numbers must be positive.
type Episode struct {
	ID       int64
	SeasonID int64
	Number   int
	Title    *string
}

// Screenshot is an episode-scoped image keyed by a globally unique URL.
type Screenshot struct {
	ID        int64
	EpisodeID int64
	URL       string
}

// MediaSourceLink is a playable link scoped to either a media item (a main,
// movie-level link) or a single episode, never both halves empty. LastSeenAt
// drives staleness-based cleanup.
type MediaSourceLink struct {
	ID               int64
	MediaItemID      *int64
	EpisodeID        *int64
	SourceID         int64
	TranslationID    *int64
	PlayerLink       string
	QualityInfo      *string
	SourceSpecificID *string
	LastSeenAt       *time.Time
	AddedAt          time.Time
}

// SourceMetadata records the last update timestamp a source reported for a
// media item. This is the sole signal for the newer-wins staleness decision
// and is distinct from the item's own UpdatedAt.
type SourceMetadata struct {
	ID                  int64
	MediaItemID         int64
	SourceID            int64
	SourceLastUpdatedAt *time.Time
}
