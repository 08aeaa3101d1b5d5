package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (f *fakeCleaner) CleanupOldNotifications(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected deadline")
	}
	return f.n, f.err
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler(&fakeCleaner{}, "whenever", quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whenever")
}

func TestRunCleanupCountsDeleted(t *testing.T) {
	c := &fakeCleaner{n: 4}
	s, err := NewScheduler(c, "@daily", quiet())
	require.NoError(t, err)

	s.RunCleanup(context.Background())
	s.RunCleanup(context.Background())
	assert.Equal(t, int64(2), s.Runs())
	assert.Equal(t, int64(8), s.Removed())
}

func TestRunCleanupFailureIsNotCounted(t *testing.T) {
	c := &fakeCleaner{n: 4, err: errors.New("db down")}
	s, err := NewScheduler(c, "@daily", quiet())
	require.NoError(t, err)

	s.RunCleanup(context.Background())
	assert.Equal(t, int64(1), s.Runs())
	assert.Zero(t, s.Removed())
}

func TestSchedulerFiresOnSchedule(t *testing.T) {
	c := &fakeCleaner{n: 1}
	s, err := NewScheduler(c, "@every 1s", quiet())
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return c.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
