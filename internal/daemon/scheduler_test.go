package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_ScheduleEvery(t *testing.T) {
	t.Run("returns job id for valid interval", func(t *testing.T) {
		s, err := NewScheduler()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		id, err := s.ScheduleEvery("test", 10*time.Second, func() {})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		s, err := NewScheduler()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		_, err = s.ScheduleEvery("test", 0, func() {})
		require.Error(t, err)
	})

	t.Run("runs the task", func(t *testing.T) {
		s, err := NewScheduler()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		var runs atomic.Int32
		_, err = s.ScheduleEvery("tick", 20*time.Millisecond, func() { runs.Add(1) })
		require.NoError(t, err)
		s.Start(context.Background())

		assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	})
}

func TestResyncTask(t *testing.T) {
	var calls atomic.Int32
	ok := resyncTask(context.Background(), func(context.Context) (string, error) {
		calls.Add(1)
		return "run-1", nil
	})
	failing := resyncTask(context.Background(), func(context.Context) (string, error) {
		calls.Add(1)
		return "", errors.New("queue full")
	})

	require.NotPanics(t, ok)
	require.NotPanics(t, failing)
	assert.EqualValues(t, 2, calls.Load())
}
