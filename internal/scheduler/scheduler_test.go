package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fudata/internal/config"
	"fudata/internal/testutil"
)

func TestSchedulerRejectsBadCronSpec(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	s := New(config.SchedulerConfig{CronSpec: "not a cron spec"}, func(context.Context, time.Time) error {
		return nil
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Start(ctx))
}

func TestSchedulerRunsJob(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	var runs int32
	done := make(chan struct{})
	job := func(ctx context.Context, date time.Time) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(done)
		}
		return nil
	}

	// Every-second spec keeps the test fast.
	s := New(config.SchedulerConfig{CronSpec: "@every 1s"}, job, logger)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- s.Start(ctx) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run")
	}
	cancel()

	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(1))
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	s := New(config.SchedulerConfig{CronSpec: "30 18 * * 1-5"}, func(context.Context, time.Time) error {
		return nil
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-finished:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
