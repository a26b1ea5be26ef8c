package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justmedia/kodisync/internal/catalog"
)

func newProcessorFixture(t *testing.T, fillEmpty bool) (*Processor, *catalog.Store, *catalog.Source) {
	t.Helper()
	store := newTestStore(t)
	source, err := store.GetOrCreateSource(context.Background(), "Kodik", "kodik")
	require.NoError(t, err)
	return NewProcessor(store, source, fillEmpty, nil), store, source
}

func fullRecord() *catalog.NormalizedRecord {
	return &catalog.NormalizedRecord{
		Title:         "Матрица",
		OriginalTitle: strPtr("The Matrix"),
		MediaType:     catalog.MediaTypeMovie,
		ReleaseYear:   intPtr(1999),
		Description:   strPtr("A hacker learns the truth."),
		PosterURL:     strPtr("https://posters.example/matrix.jpg"),
		IDs:           catalog.ExternalIDs{Kinopoisk: strPtr("301"), IMDB: strPtr("tt0133093")},
		Genres:        []string{"Action", "Sci-Fi"},
		Countries:     []string{"USA"},
	}
}

func intPtr(i int) *int { return &i }

func TestProcessCreatesNewItem(t *testing.T) {
	p, store, source := newProcessorFixture(t, false)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	item, action := p.Process(ctx, fullRecord(), ts)
	assert.Equal(t, ActionCreated, action)
	require.NotNil(t, item)

	got, err := store.GetMediaItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Матрица", got.Title)
	assert.Equal(t, "301", *got.IDs.Kinopoisk)

	genres, err := store.MediaItemGenreIDs(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, genres, 2)
	countries, err := store.MediaItemCountryIDs(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, countries, 1)

	meta, err := store.MetadataFor(ctx, item.ID, source.ID)
	require.NoError(t, err)
	require.NotNil(t, meta.SourceLastUpdatedAt)
	assert.True(t, meta.SourceLastUpdatedAt.Equal(ts))
}

func TestProcessSkipsRecordsWithoutIDs(t *testing.T) {
	p, store, _ := newProcessorFixture(t, false)
	ctx := context.Background()

	item, action := p.Process(ctx, record("No IDs", catalog.ExternalIDs{}), time.Now())
	assert.Equal(t, ActionSkippedNoIDs, action)
	assert.Nil(t, item)

	items, err := store.ListMediaItems(ctx, catalog.ListMediaItemsOptions{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestProcessSkipsMissingTitleAndNilRecord(t *testing.T) {
	p, _, _ := newProcessorFixture(t, false)
	ctx := context.Background()

	_, action := p.Process(ctx, nil, time.Now())
	assert.Equal(t, ActionSkippedMappingFailed, action)

	_, action = p.Process(ctx, record("", catalog.ExternalIDs{Kinopoisk: strPtr("1")}), time.Now())
	assert.Equal(t, ActionSkippedMissingTitle, action)
}

func TestProcessIsIdempotent(t *testing.T) {
	p, _, _ := newProcessorFixture(t, false)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first, action := p.Process(ctx, fullRecord(), ts)
	require.Equal(t, ActionCreated, action)

	// Same record with the same timestamp: data is not newer, nothing moves.
	second, action := p.Process(ctx, fullRecord(), ts)
	assert.Equal(t, ActionSkipped, action)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
}

func TestProcessNewerWins(t *testing.T) {
	p, store, _ := newProcessorFixture(t, false)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	created, action := p.Process(ctx, fullRecord(), ts)
	require.Equal(t, ActionCreated, action)

	rec := fullRecord()
	rec.Title = "The Matrix (remastered)"
	rec.Description = strPtr("Updated description.")

	// Older payload loses.
	_, action = p.Process(ctx, rec, ts.Add(-time.Hour))
	assert.Equal(t, ActionSkipped, action)
	got, err := store.GetMediaItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Матрица", got.Title)

	// Newer payload wins.
	_, action = p.Process(ctx, rec, ts.Add(time.Hour))
	assert.Equal(t, ActionUpdated, action)
	got, err = store.GetMediaItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Matrix (remastered)", got.Title)
	assert.Equal(t, "Updated description.", *got.Description)
}

func TestProcessStaleDataNeverOverwrites(t *testing.T) {
	p, store, _ := newProcessorFixture(t, false)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	created, _ := p.Process(ctx, fullRecord(), ts)

	rec := fullRecord()
	rec.Genres = []string{"Horror"}
	_, action := p.Process(ctx, rec, ts.Add(-time.Hour))
	assert.Equal(t, ActionSkipped, action)

	// Relations stay as the newer payload set them.
	genres, err := store.MediaItemGenreIDs(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, genres, 2)
}

func TestProcessFillEmptyFields(t *testing.T) {
	p, store, _ := newProcessorFixture(t, true)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	sparse := record("Matrix", catalog.ExternalIDs{Kinopoisk: strPtr("301")})
	created, action := p.Process(ctx, sparse, ts)
	require.Equal(t, ActionCreated, action)

	// A stale payload may still fill attributes that are empty, but must not
	// touch populated ones.
	rec := record("Renamed", catalog.ExternalIDs{Kinopoisk: strPtr("301")})
	rec.Description = strPtr("Late description.")
	rec.ReleaseYear = intPtr(1999)
	_, action = p.Process(ctx, rec, ts.Add(-time.Hour))
	assert.Equal(t, ActionUpdated, action)

	got, err := store.GetMediaItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Matrix", got.Title) // title was populated, kept
	assert.Equal(t, "Late description.", *got.Description)
	assert.Equal(t, 1999, *got.ReleaseYear)
}

func TestProcessSubsetMatchMergesIDs(t *testing.T) {
	p, store, _ := newProcessorFixture(t, false)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	created, _ := p.Process(ctx, record("Matrix", catalog.ExternalIDs{Kinopoisk: strPtr("301")}), ts)

	// A subset match bypasses the staleness guard: identity information is
	// applied even from an older payload.
	rec := record("Matrix", catalog.ExternalIDs{Kinopoisk: strPtr("301"), IMDB: strPtr("tt0133093")})
	merged, action := p.Process(ctx, rec, ts.Add(-time.Hour))
	assert.Equal(t, ActionUpdated, action)
	require.NotNil(t, merged)
	assert.Equal(t, created.ID, merged.ID)

	got, err := store.GetMediaItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "301", *got.IDs.Kinopoisk)
	require.NotNil(t, got.IDs.IMDB)
	assert.Equal(t, "tt0133093", *got.IDs.IMDB)

	// No duplicate row was created.
	items, err := store.ListMediaItems(ctx, catalog.ListMediaItemsOptions{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestProcessConflictingIDsCreateSeparateItems(t *testing.T) {
	p, store, _ := newProcessorFixture(t, false)
	ctx := context.Background()
	ts := time.Now()

	_, action := p.Process(ctx,
		record("A", catalog.ExternalIDs{Kinopoisk: strPtr("1"), IMDB: strPtr("tt1")}), ts)
	require.Equal(t, ActionCreated, action)

	_, action = p.Process(ctx,
		record("B", catalog.ExternalIDs{Kinopoisk: strPtr("2"), IMDB: strPtr("tt1")}), ts)
	// Shares imdb but conflicts on kinopoisk: creating would violate the
	// imdb uniqueness index, so the item fails rather than merges.
	assert.Equal(t, ActionError, action)

	items, err := store.ListMediaItems(ctx, catalog.ListMediaItemsOptions{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestProcessRelationConvergence(t *testing.T) {
	p, store, _ := newProcessorFixture(t, false)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	created, _ := p.Process(ctx, fullRecord(), ts)

	// Newer payload with identical relations: fields are rewritten but the
	// membership rows are left untouched.
	_, action := p.Process(ctx, fullRecord(), ts.Add(time.Hour))
	assert.Equal(t, ActionUpdated, action)

	// Newer payload with a different genre set replaces membership.
	rec := fullRecord()
	rec.Genres = []string{"Action"}
	_, action = p.Process(ctx, rec, ts.Add(2*time.Hour))
	assert.Equal(t, ActionUpdated, action)

	genres, err := store.MediaItemGenreIDs(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, genres, 1)
	for _, name := range genres {
		assert.Equal(t, "Action", name)
	}
}

func TestStatsSummary(t *testing.T) {
	s := make(Stats)
	assert.Equal(t, "no items processed", s.Summary())

	s.Add(ActionCreated)
	s.Add(ActionCreated)
	s.Add(ActionSkipped)
	assert.Equal(t, 3, s.Total())
	assert.Equal(t, "created=2 skipped=1", s.Summary())

	other := Stats{ActionError: 1}
	s.Merge(other)
	assert.Equal(t, 4, s.Total())
}
