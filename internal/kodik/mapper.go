package kodik

import (
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/justmedia/kodisync/internal/catalog"
)

var (
	// ErrMissingID is returned when a payload entry has no source-internal id.
	ErrMissingID = errors.New("kodik: payload entry has no id")
	// ErrMissingTitle is returned when neither title nor title_orig is set.
	ErrMissingTitle = errors.New("kodik: payload entry has no title")
)

// mediaTypes maps the API's type strings onto the canonical enum. Anything
// missing from the table becomes MediaTypeUnknown.
var mediaTypes = map[string]catalog.MediaType{
	"foreign-movie":      catalog.MediaTypeMovie,
	"russian-movie":      catalog.MediaTypeMovie,
	"multi-part-film":    catalog.MediaTypeMovie,
	"foreign-serial":     catalog.MediaTypeTVShow,
	"russian-serial":     catalog.MediaTypeTVShow,
	"anime":              catalog.MediaTypeAnimeMovie,
	"anime-serial":       catalog.MediaTypeAnimeSeries,
	"soviet-cartoon":     catalog.MediaTypeCartoonMovie,
	"foreign-cartoon":    catalog.MediaTypeCartoonMovie,
	"russian-cartoon":    catalog.MediaTypeCartoonMovie,
	"cartoon-serial":     catalog.MediaTypeCartoonSeries,
	"documentary-movie":  catalog.MediaTypeDocumentaryMovie,
	"documentary-serial": catalog.MediaTypeDocumentarySeries,
}

// MapMediaType converts an API type string to the canonical enum. Unknown
// strings are logged and mapped to MediaTypeUnknown, never rejected.
func MapMediaType(apiType string) catalog.MediaType {
	if apiType == "" {
		return catalog.MediaTypeUnknown
	}
	if mt, ok := mediaTypes[apiType]; ok {
		return mt
	}
	slog.Warn("Unknown media type from API, falling back to unknown", "type", apiType)
	return catalog.MediaTypeUnknown
}

// MapItem reduces one API result entry to a normalized catalog record.
// Identifier fields from material_data take precedence over the top-level
// ones; empty strings count as absent everywhere.
func MapItem(item *Item) (*catalog.NormalizedRecord, error) {
	if item == nil || item.ID == "" {
		return nil, ErrMissingID
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = strings.TrimSpace(item.TitleOrig)
	}
	if title == "" {
		return nil, ErrMissingTitle
	}

	rec := &catalog.NormalizedRecord{
		Title:         title,
		OriginalTitle: nonEmptyPtr(item.TitleOrig),
		MediaType:     MapMediaType(item.Type),
		IDs: catalog.ExternalIDs{
			Kinopoisk:   item.KinopoiskID.Ptr(),
			IMDB:        item.IMDBID.Ptr(),
			Shikimori:   item.ShikimoriID.Ptr(),
			MyDramaList: item.MyDramaListID.Ptr(),
		},
	}
	if item.Year > 0 {
		year := item.Year
		rec.ReleaseYear = &year
	}

	if md := item.MaterialData; md != nil {
		rec.Description = nonEmptyPtr(md.Description)
		rec.PosterURL = nonEmptyPtr(md.PosterURL)

		overrideID(&rec.IDs.Kinopoisk, md.KinopoiskID)
		overrideID(&rec.IDs.IMDB, md.IMDBID)
		overrideID(&rec.IDs.Shikimori, md.ShikimoriID)
		overrideID(&rec.IDs.MyDramaList, md.MyDramaListID)

		rec.Genres = cleanNames(md.Genres, md.AnimeGenres, md.DramaGenres)
		rec.Countries = cleanNames(md.Countries)
	}

	return rec, nil
}

func nonEmptyPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func overrideID(dst **string, v FlexString) {
	if v != "" {
		*dst = v.Ptr()
	}
}

func cleanNames(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
