package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStarted(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestRunJobNow(t *testing.T) {
	s := newStarted(t)

	var runs atomic.Int32
	require.NoError(t, s.AddSingletonJob("refresh", "Refresh", "refreshes things", "@hourly",
		gocron.DurationJob(time.Hour),
		func(ctx context.Context) error {
			runs.Add(1)
			return nil
		}, false))
	s.Start()

	require.NoError(t, s.RunJobNow("refresh"))
	require.Eventually(t, func() bool {
		info, _ := s.Job("refresh")
		return info.Status == JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	info, ok := s.Job("refresh")
	require.True(t, ok)
	assert.Equal(t, 1, info.RunCount)
	assert.Equal(t, int32(1), runs.Load())
	assert.False(t, info.LastRun.IsZero())
}

func TestInstantAfterStart(t *testing.T) {
	s := newStarted(t)

	done := make(chan struct{})
	require.NoError(t, s.AddSingletonJob("boot", "Boot", "", "@daily",
		gocron.DurationJob(24*time.Hour),
		func(ctx context.Context) error {
			close(done)
			return nil
		}, true))
	s.Start()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run after start")
	}
}

func TestFailingJobRecordsError(t *testing.T) {
	s := newStarted(t)

	require.NoError(t, s.AddSingletonJob("broken", "Broken", "", "@hourly",
		gocron.DurationJob(time.Hour),
		func(ctx context.Context) error { return errors.New("provider unavailable") }, false))
	s.Start()

	require.NoError(t, s.RunJobNow("broken"))
	require.Eventually(t, func() bool {
		info, _ := s.Job("broken")
		return info.Status == JobStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	info, _ := s.Job("broken")
	assert.Equal(t, 1, info.ErrorCount)
	assert.Equal(t, "provider unavailable", info.LastError)
}

func TestDisabledJobIsSkipped(t *testing.T) {
	s := newStarted(t)

	var runs atomic.Int32
	require.NoError(t, s.AddSingletonJob("quiet", "Quiet", "", "@hourly",
		gocron.DurationJob(time.Hour),
		func(ctx context.Context) error {
			runs.Add(1)
			return nil
		}, false))
	require.NoError(t, s.SetEnabled("quiet", false))
	s.Start()

	require.NoError(t, s.RunJobNow("quiet"))
	time.Sleep(100 * time.Millisecond)

	info, _ := s.Job("quiet")
	assert.Zero(t, runs.Load())
	assert.Zero(t, info.RunCount)
	assert.False(t, info.Enabled)
}

func TestUnknownJob(t *testing.T) {
	s := newStarted(t)
	assert.Error(t, s.RunJobNow("missing"))
	assert.Error(t, s.SetEnabled("missing", true))
	_, ok := s.Job("missing")
	assert.False(t, ok)
	assert.Empty(t, s.Jobs())
}

func TestJobsAreSorted(t *testing.T) {
	s := newStarted(t)
	noop := func(context.Context) error { return nil }
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, s.AddSingletonJob(id, id, "", "@hourly", gocron.DurationJob(time.Hour), noop, false))
	}
	ids := []string{}
	for _, j := range s.Jobs() {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
