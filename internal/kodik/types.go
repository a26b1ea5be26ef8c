package kodik

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexString decodes a JSON value that the API emits either as a string or as
// a bare number. Numbers are kept in their literal textual form.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("kodik: value %q is neither string nor number: %w", data, err)
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the underlying text.
func (f FlexString) String() string { return string(f) }

// Ptr returns a pointer to the value, or nil when it is empty.
func (f FlexString) Ptr() *string {
	if f == "" {
		return nil
	}
	s := string(f)
	return &s
}

// TranslationRef identifies the voiceover/subtitle track attached to a result
// entry.
type TranslationRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// MaterialData is the optional enrichment block returned when the request
// sets with_material_data. Its identifiers take precedence over the
// top-level ones when both are present.
type MaterialData struct {
	Description   string     `json:"description"`
	PosterURL     string     `json:"poster_url"`
	KinopoiskID   FlexString `json:"kinopoisk_id"`
	IMDBID        FlexString `json:"imdb_id"`
	ShikimoriID   FlexString `json:"shikimori_id"`
	MyDramaListID FlexString `json:"mydramalist_id"`
	Genres        []string   `json:"genres"`
	AnimeGenres   []string   `json:"anime_genres"`
	DramaGenres   []string   `json:"drama_genres"`
	Countries     []string   `json:"countries"`
}

// EpisodeMedia is one episode entry inside a season block. The API emits
// either a bare player-link string or an object with link, title and
// screenshots.
type EpisodeMedia struct {
	Link        string
	Title       string
	Screenshots []string
}

// UnmarshalJSON implements json.Unmarshaler for the string-or-object episode
// shape.
func (e *EpisodeMedia) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var link string
		if err := json.Unmarshal(data, &link); err != nil {
			return err
		}
		*e = EpisodeMedia{Link: link}
		return nil
	}
	var obj struct {
		Link        string   `json:"link"`
		Title       string   `json:"title"`
		Screenshots []string `json:"screenshots"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("kodik: episode entry is neither string nor object: %w", err)
	}
	*e = EpisodeMedia(obj)
	return nil
}

// SeasonMedia is one season block inside a result entry, keyed by season
// number in the parent map.
type SeasonMedia struct {
	Link     string                  `json:"link"`
	Episodes map[string]EpisodeMedia `json:"episodes"`
}

// Item is one result entry of a list or search response.
type Item struct {
	ID            string                 `json:"id"`
	Title         string                 `json:"title"`
	TitleOrig     string                 `json:"title_orig"`
	Type          string                 `json:"type"`
	Link          string                 `json:"link"`
	Year          int                    `json:"year"`
	Quality       string                 `json:"quality"`
	KinopoiskID   FlexString             `json:"kinopoisk_id"`
	IMDBID        FlexString             `json:"imdb_id"`
	ShikimoriID   FlexString             `json:"shikimori_id"`
	MyDramaListID FlexString             `json:"mdl_id"`
	UpdatedAt     string                 `json:"updated_at"`
	Translation   *TranslationRef        `json:"translation"`
	MaterialData  *MaterialData          `json:"material_data"`
	Seasons       map[string]SeasonMedia `json:"seasons"`
}

// ListResponse is the envelope of the paginated /list endpoint. NextPage
// carries an opaque URL to the following page, empty on the last one.
type ListResponse struct {
	Total    int    `json:"total"`
	PrevPage string `json:"prev_page"`
	NextPage string `json:"next_page"`
	Results  []Item `json:"results"`
}

// SearchResponse is the envelope of the /search endpoint.
type SearchResponse struct {
	Total   int    `json:"total"`
	Results []Item `json:"results"`
}

// TranslationEntry is one row of the /translations/v2 dictionary.
type TranslationEntry struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// TranslationsResponse is the envelope of the /translations/v2 endpoint.
type TranslationsResponse struct {
	Total   int                `json:"total"`
	Results []TranslationEntry `json:"results"`
}
