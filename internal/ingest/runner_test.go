package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justmedia/kodisync/internal/kodik"
)

func listItem(id, title, kinopoiskID string) map[string]any {
	return map[string]any{
		"id":           id,
		"title":        title,
		"type":         "foreign-movie",
		"year":         1999,
		"kinopoisk_id": kinopoiskID,
		"updated_at":   "2024-05-01T10:00:00Z",
	}
}

func newRunnerFixture(t *testing.T, baseURL string) *Runner {
	t.Helper()
	store := newTestStore(t)
	source, err := store.GetOrCreateSource(context.Background(), "Kodik", "kodik")
	require.NoError(t, err)
	client, err := kodik.NewClient("test-token", kodik.WithBaseURL(baseURL), kodik.WithRateLimit(1000))
	require.NoError(t, err)
	return NewRunner(client, NewProcessor(store, source, false, nil), nil)
}

func TestRunnerFollowsPagination(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var resp map[string]any
		if r.URL.Query().Get("page") == "2" {
			resp = map[string]any{
				"total":   3,
				"results": []any{listItem("m3", "Third", "3")},
			}
		} else {
			resp = map[string]any{
				"total":     3,
				"next_page": server.URL + "/list?token=test-token&page=2",
				"results":   []any{listItem("m1", "First", "1"), listItem("m2", "Second", "2")},
			}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	runner := newRunnerFixture(t, server.URL)
	stats, err := runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats[ActionCreated])
	assert.Equal(t, 3, stats.Total())
}

func TestRunnerStopsOnFetchFailure(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"total":     2,
			"next_page": server.URL + "/list?token=test-token&page=2",
			"results":   []any{listItem("m1", "First", "1")},
		}))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	runner := newRunnerFixture(t, server.URL)
	stats, err := runner.Run(context.Background(), RunOptions{})

	// The failure stops paging but the first page's work is kept.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2")
	assert.Equal(t, 1, stats[ActionCreated])
}

func TestRunnerHonorsPageLimit(t *testing.T) {
	pagesServed := 0
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"next_page": server.URL + fmt.Sprintf("/list?token=test-token&page=%d", pagesServed+1),
			"results":   []any{listItem(fmt.Sprintf("m%d", pagesServed), "Title", fmt.Sprintf("%d", pagesServed))},
		}))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	runner := newRunnerFixture(t, server.URL)
	stats, err := runner.Run(context.Background(), RunOptions{PageLimit: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, pagesServed)
	assert.Equal(t, 2, stats[ActionCreated])
}

func TestRunnerTargetPageSkipsEarlierPages(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var resp map[string]any
		if r.URL.Query().Get("page") == "2" {
			resp = map[string]any{"results": []any{listItem("m2", "Wanted", "2")}}
		} else {
			resp = map[string]any{
				"next_page": server.URL + "/list?token=test-token&page=2",
				"results":   []any{listItem("m1", "Skipped", "1")},
			}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	runner := newRunnerFixture(t, server.URL)
	stats, err := runner.Run(context.Background(), RunOptions{TargetPage: 2})
	require.NoError(t, err)

	// Page 1 is fetched for its cursor but its items are not processed.
	assert.Equal(t, 1, stats.Total())
	assert.Equal(t, 1, stats[ActionCreated])
}

func TestRunnerCountsUnprocessableEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		badTimestamp := listItem("m1", "Bad ts", "1")
		badTimestamp["updated_at"] = "yesterday-ish"
		noTitle := map[string]any{"id": "m2", "updated_at": "2024-05-01T10:00:00Z"}
		noIDs := map[string]any{"id": "m3", "title": "No IDs", "updated_at": "2024-05-01T10:00:00Z"}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"results": []any{badTimestamp, noTitle, noIDs, listItem("m4", "Good", "4")},
		}))
	}))
	defer server.Close()

	runner := newRunnerFixture(t, server.URL)
	stats, err := runner.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats[ActionSkippedBadTimestamp])
	assert.Equal(t, 1, stats[ActionSkippedMissingTitle])
	assert.Equal(t, 1, stats[ActionSkippedNoIDs])
	assert.Equal(t, 1, stats[ActionCreated])
}
