package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateGenreCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, created, err := store.GetOrCreateGenre(ctx, " Drama ")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Drama", first.Name)

	// A different casing resolves to the same row and keeps the stored name.
	second, created, err := store.GetOrCreateGenre(ctx, "dRaMa")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Drama", second.Name)

	_, _, err = store.GetOrCreateGenre(ctx, "   ")
	require.Error(t, err)
}

func TestSetMediaItemGenresReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.CreateMediaItem(ctx, testRecord("X", ExternalIDs{Kinopoisk: strPtr("1")}))
	require.NoError(t, err)

	drama, _, err := store.GetOrCreateGenre(ctx, "Drama")
	require.NoError(t, err)
	action, _, err := store.GetOrCreateGenre(ctx, "Action")
	require.NoError(t, err)

	err = store.SetMediaItemGenres(ctx, item.ID, map[int64]string{drama.ID: drama.Name, action.ID: action.Name})
	require.NoError(t, err)

	got, err := store.MediaItemGenreIDs(ctx, item.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Replacing with a smaller set removes the old membership.
	err = store.SetMediaItemGenres(ctx, item.ID, map[int64]string{drama.ID: drama.Name})
	require.NoError(t, err)

	got, err = store.MediaItemGenreIDs(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Drama", got[drama.ID])

	// Clearing works too.
	require.NoError(t, store.SetMediaItemGenres(ctx, item.ID, nil))
	got, err = store.MediaItemGenreIDs(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetOrCreateCountry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	usa, created, err := store.GetOrCreateCountry(ctx, "USA")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := store.GetOrCreateCountry(ctx, "usa")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, usa.ID, again.ID)
}

func TestGetOrCreateSource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	source, err := store.GetOrCreateSource(ctx, "Kodik", "kodik")
	require.NoError(t, err)
	require.NotZero(t, source.ID)

	again, err := store.GetOrCreateSource(ctx, "Kodik", "kodik")
	require.NoError(t, err)
	assert.Equal(t, source.ID, again.ID)
}

func TestSourceMetadataLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.CreateMediaItem(ctx, testRecord("X", ExternalIDs{Kinopoisk: strPtr("1")}))
	require.NoError(t, err)
	source, err := store.GetOrCreateSource(ctx, "Kodik", "kodik")
	require.NoError(t, err)

	_, err = store.MetadataFor(ctx, item.ID, source.ID)
	require.ErrorIs(t, err, ErrNotFound)

	meta, created, err := store.GetOrCreateSourceMetadata(ctx, item.ID, source.ID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, meta.SourceLastUpdatedAt)

	_, created, err = store.GetOrCreateSourceMetadata(ctx, item.ID, source.ID)
	require.NoError(t, err)
	assert.False(t, created)

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetSourceTimestamp(ctx, meta.ID, ts))

	got, err := store.MetadataFor(ctx, item.ID, source.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SourceLastUpdatedAt)
	assert.True(t, got.SourceLastUpdatedAt.Equal(ts))
}

func TestUpsertTranslation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, changed, err := store.UpsertTranslation(ctx, 767, "HDrezka Studio")
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, changed)

	// Same title is a no-op.
	created, changed, err = store.UpsertTranslation(ctx, 767, "HDrezka Studio")
	require.NoError(t, err)
	assert.False(t, created)
	assert.False(t, changed)

	// A different title updates in place.
	created, changed, err = store.UpsertTranslation(ctx, 767, "HDrezka")
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, changed)

	byID, err := store.TranslationsByKodikID(ctx)
	require.NoError(t, err)
	require.Contains(t, byID, 767)
	assert.Equal(t, "HDrezka", byID[767].Title)

	deleted, err := store.DeleteAllTranslations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
