package catalog

// NormalizedRecord is the mapper's output: one external payload reduced to
// the canonical item attributes plus genre/country name lists. Optional
// attributes are pointers so that "absent in the payload" and "present but
// empty" stay distinguishable downstream.
type NormalizedRecord struct {
	Title         string
	OriginalTitle *string
	MediaType     MediaType
	ReleaseYear   *int
	Description   *string
	PosterURL     *string
	IDs           ExternalIDs

	Genres    []string
	Countries []string
}

// FieldUpdate is one entry of an explicit field-update whitelist. Updates are
// applied through a single typed call so that only fields present in the diff
// are ever touched.
type FieldUpdate struct {
	Column string
	Value  any
}

// FieldUpdates returns the whitelist of non-identity attribute updates this
// record carries. Title and media type are always present; optional fields
// are included only when the payload reported them.
func (r *NormalizedRecord) FieldUpdates() []FieldUpdate {
	updates := []FieldUpdate{
		{Column: "title", Value: r.Title},
		{Column: "media_type", Value: string(r.MediaType)},
	}
	if r.OriginalTitle != nil {
		updates = append(updates, FieldUpdate{Column: "original_title", Value: *r.OriginalTitle})
	}
	if r.ReleaseYear != nil {
		updates = append(updates, FieldUpdate{Column: "release_year", Value: *r.ReleaseYear})
	}
	if r.Description != nil {
		updates = append(updates, FieldUpdate{Column: "description", Value: *r.Description})
	}
	if r.PosterURL != nil {
		updates = append(updates, FieldUpdate{Column: "poster_url", Value: *r.PosterURL})
	}
	return updates
}

// IDUpdates returns updates for every identifier the record supplies that the
// item lacks or disagrees with. Used on the subset-match path to widen an
// existing item's identity.
func (r *NormalizedRecord) IDUpdates(item *MediaItem) []FieldUpdate {
	var updates []FieldUpdate
	for _, field := range IDFields() {
		incoming := r.IDs.Get(field)
		if incoming == nil || *incoming == "" {
			continue
		}
		current := item.IDs.Get(field)
		if current == nil || *current != *incoming {
			updates = append(updates, FieldUpdate{Column: field, Value: *incoming})
		}
	}
	return updates
}

// FillEmptyUpdates returns updates for attributes that are currently unset on
// the item but reported by the record. It never overwrites populated fields,
// making fill-empty mode a strictly monotonic enrichment.
func (r *NormalizedRecord) FillEmptyUpdates(item *MediaItem) []FieldUpdate {
	var updates []FieldUpdate
	if emptyPtr(item.OriginalTitle) && !emptyPtr(r.OriginalTitle) {
		updates = append(updates, FieldUpdate{Column: "original_title", Value: *r.OriginalTitle})
	}
	if item.ReleaseYear == nil && r.ReleaseYear != nil {
		updates = append(updates, FieldUpdate{Column: "release_year", Value: *r.ReleaseYear})
	}
	if emptyPtr(item.Description) && !emptyPtr(r.Description) {
		updates = append(updates, FieldUpdate{Column: "description", Value: *r.Description})
	}
	if emptyPtr(item.PosterURL) && !emptyPtr(r.PosterURL) {
		updates = append(updates, FieldUpdate{Column: "poster_url", Value: *r.PosterURL})
	}
	return updates
}

func emptyPtr(s *string) bool {
	return s == nil || *s == ""
}
