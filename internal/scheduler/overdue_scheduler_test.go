package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls []time.Time
	count int
	err   error
}

func (f *fakeSweeper) MarkOverdueInspections(_ context.Context, now time.Time) (int, error) {
	f.calls = append(f.calls, now)
	return f.count, f.err
}

func TestOverdueScheduler_RunOnce(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	sweeper := &fakeSweeper{count: 3}
	s := NewOverdueScheduler(sweeper, "")
	s.now = func() time.Time { return now }

	assert.Equal(t, DefaultOverdueSpec, s.spec)
	assert.Equal(t, 3, s.RunOnce(context.Background()))
	require.Len(t, sweeper.calls, 1)
	assert.Equal(t, now, sweeper.calls[0])
}

func TestOverdueScheduler_RunOnceReportsPartialProgress(t *testing.T) {
	sweeper := &fakeSweeper{count: 1, err: errors.New("scheduling store unavailable")}
	s := NewOverdueScheduler(sweeper, "*/5 * * * *")

	assert.Equal(t, 1, s.RunOnce(context.Background()))
}

func TestOverdueScheduler_InvalidSpec(t *testing.T) {
	s := NewOverdueScheduler(&fakeSweeper{}, "not a cron spec")
	assert.Error(t, s.Start())
}

func TestOverdueScheduler_StartStop(t *testing.T) {
	s := NewOverdueScheduler(&fakeSweeper{}, "@every 1h")
	require.NoError(t, s.Start())
	s.Stop()
}
