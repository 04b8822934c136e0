package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
)

// TokenRefresher is the slice of OAuthService the scheduler drives.
type TokenRefresher interface {
	Refresh(ctx context.Context, force bool) (RefreshResult, error)
}

// MediaSyncer is the slice of SyncService the scheduler drives.
type MediaSyncer interface {
	Sync(ctx context.Context, opts SyncOptions) (SyncReport, error)
}

// SchedulerConfig sets the scheduler cadences.
type SchedulerConfig struct {
	RefreshInterval time.Duration
	AutoSync        bool
	SyncInterval    time.Duration
	SyncLimit       int
}

// syncRequest represents a manual sync trigger.
type syncRequest struct {
	opts SyncOptions
	done chan syncResult
}

type syncResult struct {
	report SyncReport
	err    error
}

// Scheduler runs the daily token refresh check and, when enabled, the
// periodic media sync. Manual syncs are serialized through the same loop.
type Scheduler struct {
	refresher TokenRefresher
	syncer    MediaSyncer
	cfg       SchedulerConfig
	syncCh    chan syncRequest
}

// NewScheduler creates a Scheduler.
func NewScheduler(refresher TokenRefresher, syncer MediaSyncer, cfg SchedulerConfig) *Scheduler {
	if cfg.SyncLimit == 0 {
		cfg.SyncLimit = DefaultSyncLimit
	}
	return &Scheduler{
		refresher: refresher,
		syncer:    syncer,
		cfg:       cfg,
		syncCh:    make(chan syncRequest),
	}
}

// Start runs an immediate refresh check, then loops on the configured
// intervals until ctx is canceled. Failures are logged and never stop the loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.checkRefresh(ctx)

	refreshTicker := time.NewTicker(s.cfg.RefreshInterval)
	defer refreshTicker.Stop()

	var syncTick <-chan time.Time
	if s.cfg.AutoSync {
		syncTicker := time.NewTicker(s.cfg.SyncInterval)
		defer syncTicker.Stop()
		syncTick = syncTicker.C
	}

	slog.Info("scheduler started",
		"refresh_interval", s.cfg.RefreshInterval,
		"auto_sync", s.cfg.AutoSync,
		"sync_interval", s.cfg.SyncInterval,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-refreshTicker.C:
			s.checkRefresh(ctx)
		case <-syncTick:
			s.scheduledSync(ctx)
		case req := <-s.syncCh:
			report, err := s.syncer.Sync(ctx, req.opts)
			req.done <- syncResult{report: report, err: err}
		}
	}
}

// TriggerSync runs a sync on the scheduler loop, bypassing the interval. It
// blocks until the sync completes or ctx is canceled.
func (s *Scheduler) TriggerSync(ctx context.Context, opts SyncOptions) (SyncReport, error) {
	done := make(chan syncResult, 1)
	req := syncRequest{opts: opts, done: done}

	select {
	case s.syncCh <- req:
	case <-ctx.Done():
		return SyncReport{}, ctx.Err()
	}

	select {
	case res := <-done:
		return res.report, res.err
	case <-ctx.Done():
		return SyncReport{}, ctx.Err()
	}
}

func (s *Scheduler) checkRefresh(ctx context.Context) {
	res, err := s.refresher.Refresh(ctx, false)
	switch {
	case errors.Is(err, model.ErrNotAuthorized):
		slog.Debug("token refresh skipped: not authorized")
	case errors.Is(err, model.ErrTokenExpired):
		slog.Warn("token refresh impossible", "error", err)
	case err != nil:
		slog.Error("scheduled token refresh failed", "error", err)
	case res.Refreshed:
		slog.Info("scheduled token refresh done", "days_until_expiry", res.DaysUntilExpiry)
	default:
		slog.Debug("token refresh not needed", "days_until_expiry", res.DaysUntilExpiry)
	}
}

func (s *Scheduler) scheduledSync(ctx context.Context) {
	_, err := s.syncer.Sync(ctx, SyncOptions{Limit: s.cfg.SyncLimit})
	switch {
	case IsNotAuthorized(err):
		slog.Warn("scheduled sync skipped", "error", err)
	case err != nil:
		slog.Error("scheduled sync failed", "error", err)
	}
}
