package application_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/igmedia/internal/application"
	"github.com/ericfisherdev/igmedia/internal/domain/model"
)

type countingRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingRefresher) Refresh(_ context.Context, _ bool) (application.RefreshResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return application.RefreshResult{}, c.err
}

func (c *countingRefresher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type countingSyncer struct {
	mu    sync.Mutex
	calls []application.SyncOptions
	err   error
}

func (c *countingSyncer) Sync(_ context.Context, opts application.SyncOptions) (application.SyncReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, opts)
	return application.SyncReport{RunID: "run", Fetched: opts.Limit}, c.err
}

func (c *countingSyncer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func startScheduler(t *testing.T, s *application.Scheduler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestScheduler_RefreshesOnStartAndInterval(t *testing.T) {
	refresher := &countingRefresher{err: model.ErrTokenExchange}
	syncer := &countingSyncer{}
	s := application.NewScheduler(refresher, syncer, application.SchedulerConfig{
		RefreshInterval: 10 * time.Millisecond,
		SyncInterval:    time.Hour,
	})

	startScheduler(t, s)

	assert.Eventually(t, func() bool { return refresher.count() >= 3 }, time.Second, 5*time.Millisecond,
		"refresh failures must not stop the loop")
	assert.Zero(t, syncer.count(), "auto sync is off")
}

func TestScheduler_AutoSync(t *testing.T) {
	refresher := &countingRefresher{}
	syncer := &countingSyncer{err: model.ErrNotAuthorized}
	s := application.NewScheduler(refresher, syncer, application.SchedulerConfig{
		RefreshInterval: time.Hour,
		AutoSync:        true,
		SyncInterval:    10 * time.Millisecond,
		SyncLimit:       40,
	})

	startScheduler(t, s)

	assert.Eventually(t, func() bool { return syncer.count() >= 2 }, time.Second, 5*time.Millisecond)
	syncer.mu.Lock()
	assert.Equal(t, 40, syncer.calls[0].Limit)
	syncer.mu.Unlock()
}

func TestScheduler_TriggerSync(t *testing.T) {
	syncer := &countingSyncer{}
	s := application.NewScheduler(&countingRefresher{}, syncer, application.SchedulerConfig{
		RefreshInterval: time.Hour,
		SyncInterval:    time.Hour,
	})

	startScheduler(t, s)

	report, err := s.TriggerSync(context.Background(), application.SyncOptions{Limit: 7, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 7, report.Fetched)
	assert.Equal(t, 1, syncer.count())
}

func TestScheduler_TriggerSyncHonorsContext(t *testing.T) {
	s := application.NewScheduler(&countingRefresher{}, &countingSyncer{}, application.SchedulerConfig{
		RefreshInterval: time.Hour,
		SyncInterval:    time.Hour,
	})

	// Not started: nothing receives the request.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.TriggerSync(ctx, application.SyncOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
