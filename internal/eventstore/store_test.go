package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndByRun(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	for _, state := range []string{"Received", "Classified", "Syncing", "Done"} {
		require.NoError(t, store.Append(ctx, RunRecord{RunID: "run-1", State: state, Repository: "acme/docs"}))
	}
	require.NoError(t, store.Append(ctx, RunRecord{RunID: "run-2", State: "Discarded", Detail: "self-authored"}))

	recs, err := store.ByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, "Received", recs[0].State)
	assert.Equal(t, "Done", recs[3].State)
	assert.Equal(t, "acme/docs", recs[3].Repository)
	assert.False(t, recs[0].Timestamp.IsZero())

	recs, err = store.ByRun(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestAppendRequiresRunID(t *testing.T) {
	assert.Error(t, newStore(t).Append(t.Context(), RunRecord{State: "Done"}))
}

func TestRangeAndRecent(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, store.Append(ctx, RunRecord{RunID: "a", State: "Done", Timestamp: base}))
	require.NoError(t, store.Append(ctx, RunRecord{RunID: "b", State: "Done", Timestamp: base.Add(30 * time.Minute)}))
	require.NoError(t, store.Append(ctx, RunRecord{RunID: "c", State: "Failed", Timestamp: base.Add(50 * time.Minute)}))

	recs, err := store.Range(ctx, base.Add(10*time.Minute), base.Add(40*time.Minute))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].RunID)

	recs, err = store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].RunID)
	assert.Equal(t, "b", recs[1].RunID)
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), RunRecord{RunID: "r", State: "Done"}))
	require.NoError(t, store.Close())

	store, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	recs, err := store.ByRun(t.Context(), "r")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSummarize(t *testing.T) {
	_, ok := Summarize(nil)
	assert.False(t, ok)

	t0 := time.Now()
	s, ok := Summarize([]RunRecord{
		{RunID: "r", State: "Received", Timestamp: t0},
		{RunID: "r", State: "Syncing", Repository: "acme/docs", Timestamp: t0.Add(time.Second)},
		{RunID: "r", State: "Failed", Detail: "push rejected", Timestamp: t0.Add(2 * time.Second)},
	})
	require.True(t, ok)
	assert.Equal(t, "Failed", s.State)
	assert.Equal(t, "push rejected", s.Detail)
	assert.Equal(t, "acme/docs", s.Repository)
	assert.Equal(t, t0, s.Started)
	assert.Len(t, s.Transitions, 3)
}
