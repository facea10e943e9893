package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/eventstore"
	"git.home.luguber.info/inful/docsync/internal/queue"
)

type fakeQueue struct {
	length int
	active []queue.Job
	jobs   map[string]queue.Job
}

func (q *fakeQueue) Length() int             { return q.length }
func (q *fakeQueue) ActiveJobs() []queue.Job { return q.active }
func (q *fakeQueue) JobSnapshot(id string) (queue.Job, bool) {
	j, ok := q.jobs[id]
	return j, ok
}

func newStore(t *testing.T) *eventstore.SQLiteStore {
	t.Helper()
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestHealthCheck(t *testing.T) {
	h := NewMonitoringHandlers(nil, &fakeQueue{length: 3, active: []queue.Job{{ID: "a"}}})
	rec := httptest.NewRecorder()
	h.HandleHealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Queued)
	assert.Equal(t, 1, resp.Running)

	rec = httptest.NewRecorder()
	h.HandleHealthCheck(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleRun(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.Append(ctx, eventstore.RunRecord{RunID: "r1", State: "received", Repository: "acme/docs", Timestamp: now}))
	require.NoError(t, store.Append(ctx, eventstore.RunRecord{RunID: "r1", State: "done", Timestamp: now.Add(time.Second)}))

	mux := http.NewServeMux()
	mux.HandleFunc("/runs/{id}", NewMonitoringHandlers(store, nil).HandleRun)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/r1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "done", resp.State)
	assert.Equal(t, "acme/docs", resp.Repository)
	assert.Len(t, resp.Transitions, 2)
	assert.Nil(t, resp.Job)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRunReportsQueuedJob(t *testing.T) {
	store := newStore(t)
	created := time.Now().UTC().Truncate(time.Second)
	q := &fakeQueue{jobs: map[string]queue.Job{
		"r2": {ID: "r2", Kind: queue.JobKindWiki, Status: queue.JobStatusQueued, CreatedAt: created},
	}}
	mux := http.NewServeMux()
	mux.HandleFunc("/runs/{id}", NewMonitoringHandlers(store, q).HandleRun)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/r2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "r2", resp.RunID)
	assert.Equal(t, "queued", resp.State)
	require.NotNil(t, resp.Job)
	assert.Equal(t, queue.JobKindWiki, resp.Job.Kind)
	assert.True(t, created.Equal(resp.Started))
}

func TestHandleRuns(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	for i, state := range []string{"received", "syncing", "done"} {
		require.NoError(t, store.Append(ctx, eventstore.RunRecord{
			RunID: "r1", State: state, Timestamp: base.Add(time.Duration(i) * time.Hour),
		}))
	}
	h := NewMonitoringHandlers(store, nil)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.HandleRuns(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}
	decode := func(rec *httptest.ResponseRecorder) []string {
		var resp RunListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		states := make([]string, 0, len(resp.Records))
		for _, r := range resp.Records {
			states = append(states, r.State)
		}
		return states
	}

	rec := get("/runs?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"done", "syncing"}, decode(rec))

	rec = get("/runs?since=2026-01-02T03:30:00Z&until=2026-01-02T05:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"syncing", "done"}, decode(rec))

	rec = get("/runs?since=2030-01-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"records":[]}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get("/runs?limit=zero").Code)
	assert.Equal(t, http.StatusBadRequest, get("/runs?since=yesterday").Code)

	rec = httptest.NewRecorder()
	NewMonitoringHandlers(nil, nil).HandleRuns(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteJSONPretty(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, writeJSON(rec, httptest.NewRequest(http.MethodGet, "/x?pretty=1", nil), http.StatusOK, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", rec.Body.String())

	rec = httptest.NewRecorder()
	require.NoError(t, writeJSON(rec, httptest.NewRequest(http.MethodGet, "/x", nil), http.StatusCreated, map[string]int{"a": 1}))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "{\"a\":1}\n", rec.Body.String())
}
