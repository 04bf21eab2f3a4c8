package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbier/divrank/internal/httpapi"
	"github.com/greenbier/divrank/internal/matcher"
	"github.com/greenbier/divrank/internal/models"
	"github.com/greenbier/divrank/internal/profilecache"
)

func TestScrapeTeamMatches_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"date":"2026-01-05","opponent":"Desert United SC","score_for":3,"score_against":1,"competition":"league"}]`))
	}))
	defer srv.Close()

	roster := []models.Team{
		{TeamKey: "phoenix_united", DisplayName: "Phoenix United", RankEligible: true},
		{TeamKey: "desert_sc_united", DisplayName: "Desert United SC", RankEligible: true},
	}
	m := matcher.New(roster, 0.85, 0.60)

	dir := t.TempDir()
	cache, err := profilecache.Load(dir + "/cache.json")
	require.NoError(t, err)

	team := models.Team{TeamKey: "phoenix_united", DisplayName: "Phoenix United", ExternalID: "42", RankEligible: true}
	div := models.Division{Key: "az-b-u11"}

	result, err := ScrapeTeamMatches(context.Background(), httpapi.New("t/1.0", 5*time.Second, 2, time.Millisecond, time.Millisecond, 1, time.Millisecond), cache, m, team, srv.URL+"?team=%s", "http://example.invalid/search?q=%s", div, nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, 0, result.Skipped)
}

func TestScrapeTeamMatches_MissingExternalIDFails(t *testing.T) {
	roster := []models.Team{{TeamKey: "a", DisplayName: "A", RankEligible: true}}
	m := matcher.New(roster, 0.85, 0.60)
	dir := t.TempDir()
	cache, err := profilecache.Load(dir + "/cache.json")
	require.NoError(t, err)

	team := models.Team{TeamKey: "a", DisplayName: "A", RankEligible: true}
	_, err = ScrapeTeamMatches(context.Background(), httpapi.New("t/1.0", 5*time.Second, 2, time.Millisecond, time.Millisecond, 1, time.Millisecond), cache, m, team, "http://example.invalid/%s", "http://example.invalid/search?q=%s", models.Division{Key: "x"}, nil)
	assert.Error(t, err)
}

func TestScrapeTeamMatches_SkipsRowsWithBadDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"date":"not-a-date","opponent":"Desert United SC","score_for":1,"score_against":0}]`))
	}))
	defer srv.Close()

	roster := []models.Team{{TeamKey: "a", DisplayName: "A", RankEligible: true}}
	m := matcher.New(roster, 0.85, 0.60)
	dir := t.TempDir()
	cache, err := profilecache.Load(dir + "/cache.json")
	require.NoError(t, err)

	team := models.Team{TeamKey: "a", DisplayName: "A", ExternalID: "1", RankEligible: true}
	result, err := ScrapeTeamMatches(context.Background(), httpapi.New("t/1.0", 5*time.Second, 2, time.Millisecond, time.Millisecond, 1, time.Millisecond), cache, m, team, srv.URL+"?id=%s", "http://example.invalid/search?q=%s", models.Division{Key: "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, len(result.Matches))
	assert.Equal(t, 1, result.Skipped)
}

func TestScrapeTeamMatches_SearchResolvesOnCacheMiss(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"A","external_id":"99"}]`))
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "99" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"date":"2026-01-05","opponent":"B","score_for":2,"score_against":1}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	roster := []models.Team{
		{TeamKey: "a", DisplayName: "A", RankEligible: true},
		{TeamKey: "b", DisplayName: "B", RankEligible: true},
	}
	m := matcher.New(roster, 0.85, 0.60)
	dir := t.TempDir()
	cache, err := profilecache.Load(dir + "/cache.json")
	require.NoError(t, err)

	team := models.Team{TeamKey: "a", DisplayName: "A", RankEligible: true}
	result, err := ScrapeTeamMatches(context.Background(), httpapi.New("t/1.0", 5*time.Second, 2, time.Millisecond, time.Millisecond, 1, time.Millisecond), cache, m, team, srv.URL+"/profile?id=%s", srv.URL+"/search?q=%s", models.Division{Key: "x"}, nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)

	entry, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, "99", entry.ExternalID)
}

func TestScrapeTeamMatches_404InvalidatesCacheAndRetriesSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"A","external_id":"new-id"}]`))
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "stale-id" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"date":"2026-01-05","opponent":"B","score_for":1,"score_against":1}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	roster := []models.Team{
		{TeamKey: "a", DisplayName: "A", RankEligible: true},
		{TeamKey: "b", DisplayName: "B", RankEligible: true},
	}
	m := matcher.New(roster, 0.85, 0.60)
	dir := t.TempDir()
	cache, err := profilecache.Load(dir + "/cache.json")
	require.NoError(t, err)
	cache.Put("a", "stale-id")

	team := models.Team{TeamKey: "a", DisplayName: "A", RankEligible: true}
	result, err := ScrapeTeamMatches(context.Background(), httpapi.New("t/1.0", 5*time.Second, 2, time.Millisecond, time.Millisecond, 1, time.Millisecond), cache, m, team, srv.URL+"/profile?id=%s", srv.URL+"/search?q=%s", models.Division{Key: "x"}, nil)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)

	entry, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, "new-id", entry.ExternalID)
}
