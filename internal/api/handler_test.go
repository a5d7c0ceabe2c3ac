package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/studybot/internal/config"
	sr "github.com/example/studybot/internal/spaced_repetition"
	"github.com/example/studybot/pkg/models"
)

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func catalog(prefix string, n int) []models.VocabularyItem {
	items := make([]models.VocabularyItem, n)
	for i := range items {
		id := fmt.Sprintf("%s%d", prefix, i)
		items[i] = models.VocabularyItem{ID: id, Term: "term-" + id, Meaning: "meaning-" + id}
	}
	return items
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	tracker := sr.NewTracker(sr.NewPolicy(), sr.WithClock(func() time.Time { return now }))
	tracker.Load("english", map[string]models.MasteryRecord{
		"e0": {Mastery: models.MasteryWeak, NextDueAt: now.Add(-time.Hour)},
		"e1": {Mastery: models.MasteryAlmost, NextDueAt: now.Add(time.Hour)},
		"e2": {Mastery: models.MasteryMastered, NextDueAt: now.Add(30 * 24 * time.Hour)},
	})
	catalogs := map[string][]models.VocabularyItem{
		"english": catalog("e", 5),
		"history": catalog("h", 2),
	}

	srv := httptest.NewServer(NewHandler(tracker, catalogs, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListSubjects(t *testing.T) {
	srv := newTestServer(t)

	var body []SubjectSummary
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/subjects", &body))
	assert.Equal(t, []SubjectSummary{
		{Subject: "english", Items: 5},
		{Subject: "history", Items: 2},
	}, body)
}

func TestSubjectStats(t *testing.T) {
	srv := newTestServer(t)

	var body StatsResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/subjects/english/stats", &body))
	assert.Equal(t, "english", body.Subject)
	assert.Equal(t, 5, body.Total)
	assert.Equal(t, map[string]int{
		"new":      2,
		"weak":     1,
		"learning": 0,
		"almost":   1,
		"mastered": 1,
	}, body.Levels)
}

func TestSubjectStats_Unknown(t *testing.T) {
	srv := newTestServer(t)

	var body ErrorResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/v1/subjects/physics/stats", &body))
	assert.Equal(t, "unknown subject", body.Error)
	assert.NotEmpty(t, body.RequestID)
}

func TestDueItems(t *testing.T) {
	srv := newTestServer(t)

	var due DueResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/subjects/english/due", &due))
	assert.False(t, due.IncludeDueSoon)
	require.Equal(t, 1, due.Count)
	assert.Equal(t, "e0", due.Items[0].ID)

	var soon DueResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/subjects/english/due?soon=true", &soon))
	assert.True(t, soon.IncludeDueSoon)
	require.Equal(t, 2, soon.Count)
	assert.Equal(t, "e0", soon.Items[0].ID)
	assert.Equal(t, "e1", soon.Items[1].ID)

	var empty DueResponse
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/v1/subjects/history/due", &empty))
	assert.Zero(t, empty.Count)
	assert.NotNil(t, empty.Items)
}

func TestDueItems_BadQuery(t *testing.T) {
	srv := newTestServer(t)

	var body ErrorResponse
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/v1/subjects/english/due?soon=maybe", &body))
}

func TestServer_RunStopsWithContext(t *testing.T) {
	s := NewServer(config.APIConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, http.NotFoundHandler(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
