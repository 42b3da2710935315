package scrape

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/run", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://www.tiktok.com/@user/video/1", body["url"])
		assert.Equal(t, "high", body["quality"])

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"runId": "run-42"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	runID, err := client.StartRun(context.Background(), "https://www.tiktok.com/@user/video/1", "high")
	require.NoError(t, err)
	assert.Equal(t, "run-42", runID)
}

func TestStartRun_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	_, err := client.StartRun(context.Background(), "https://x.com/u/status/1", "high")
	assert.ErrorContains(t, err, "status 500")
}

func TestGetRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/run/run-42", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"status":          "SUCCEEDED",
			"resultDatasetId": "ds-7",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	run, err := client.GetRun(context.Background(), "run-42")
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, run.Status)
	assert.Equal(t, "ds-7", run.DatasetID)
	assert.True(t, run.Terminal())
}

func TestRunTerminal(t *testing.T) {
	assert.True(t, Run{Status: RunSucceeded}.Terminal())
	assert.True(t, Run{Status: RunFailed}.Terminal())
	assert.True(t, Run{Status: RunAborted}.Terminal())
	assert.False(t, Run{Status: "RUNNING"}.Terminal())
	assert.False(t, Run{Status: "READY"}.Terminal())
}

func TestDatasetItems_FieldFallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/datasets/ds-7/items", r.URL.Path)
		w.Write([]byte(`[
			{"mediaUrl": "https://cdn/x.mp4", "duration": 12},
			{"video_url": "https://cdn/y.mp4", "durationSeconds": 30, "width": 720, "height": 1280}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")
	items, err := client.DatasetItems(context.Background(), "ds-7")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "https://cdn/x.mp4", items[0].ResolvedURL())
	assert.Equal(t, float64(12), items[0].ResolvedDuration())

	assert.Equal(t, "https://cdn/y.mp4", items[1].ResolvedURL())
	assert.Equal(t, float64(30), items[1].ResolvedDuration())
	assert.Equal(t, 720, items[1].Width)
}

func TestItemResolvedURL_PrefersMediaURL(t *testing.T) {
	item := Item{MediaURL: "https://cdn/a.mp4", VideoURL: "https://cdn/b.mp4"}
	assert.Equal(t, "https://cdn/a.mp4", item.ResolvedURL())

	assert.Equal(t, "", Item{}.ResolvedURL())
}
