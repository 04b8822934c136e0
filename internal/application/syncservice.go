package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

// Media listing limits accepted by the provider.
const (
	DefaultSyncLimit = 25
	MinSyncLimit     = 1
	MaxSyncLimit     = 100
)

// StalenessPolicy hides media older than MaxAgeDays after each sync.
type StalenessPolicy struct {
	Enabled    bool
	MaxAgeDays int
}

// SyncOptions controls a single sync run. Limit is clamped like any other
// value, so callers apply DefaultSyncLimit themselves. Force skips the
// readiness gate; the fetch still fails when no token exists.
type SyncOptions struct {
	Limit int
	Force bool
}

// ReconcileResult counts what happened to each fetched item.
type ReconcileResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	RunID    string        `json:"run_id"`
	Fetched  int           `json:"fetched"`
	Created  int           `json:"created"`
	Updated  int           `json:"updated"`
	Failed   int           `json:"failed"`
	Hidden   int           `json:"hidden"`
	Duration time.Duration `json:"duration_ns"`
}

// SyncService reconciles the provider's media listing into local records.
type SyncService struct {
	creds  driven.CredentialStore
	media  driven.MediaStore
	client driven.InstagramClient
	policy StalenessPolicy
	now    func() time.Time
}

// NewSyncService creates a SyncService with all required dependencies.
func NewSyncService(
	creds driven.CredentialStore,
	media driven.MediaStore,
	client driven.InstagramClient,
	policy StalenessPolicy,
) *SyncService {
	return &SyncService{
		creds:  creds,
		media:  media,
		client: client,
		policy: policy,
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (s *SyncService) SetClock(now func() time.Time) {
	s.now = now
}

// IsReady reports whether a token and app id are present and the token has
// not expired.
func (s *SyncService) IsReady(ctx context.Context) (bool, error) {
	cred, err := s.creds.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("load credential: %w", err)
	}
	return s.ready(cred), nil
}

func (s *SyncService) ready(cred model.Credential) bool {
	return cred.HasValidCredentials() && !cred.IsExpired(s.now())
}

// FetchRemoteMedia returns one page of the account's media, as provided.
// limit is clamped to [MinSyncLimit, MaxSyncLimit].
func (s *SyncService) FetchRemoteMedia(ctx context.Context, limit int) ([]model.RemoteMedia, error) {
	cred, err := s.creds.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return s.fetch(ctx, cred, limit)
}

func (s *SyncService) fetch(ctx context.Context, cred model.Credential, limit int) ([]model.RemoteMedia, error) {
	if !cred.HasToken() {
		return nil, fmt.Errorf("%w: no access token; authorize the account first", model.ErrNotAuthorized)
	}

	items, err := s.client.FetchMedia(ctx, cred.AccessToken, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: fetch media: %w", model.ErrAPIRequest, err)
	}
	return items, nil
}

// Reconcile upserts items in the order given. New records start visible;
// existing records keep their visibility. A failing item is logged and
// counted without stopping the batch. The only error returned is a canceled
// context.
func (s *SyncService) Reconcile(ctx context.Context, items []model.RemoteMedia, fallbackUsername string) (ReconcileResult, error) {
	var res ReconcileResult

	for _, remote := range items {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		item, err := remote.ToMediaItem(fallbackUsername)
		if err != nil {
			slog.Warn("skipping invalid media item", "remote_id", remote.ID, "error", err)
			res.Failed++
			continue
		}
		item.IsVisible = true

		created, err := s.media.Upsert(ctx, item)
		if err != nil {
			slog.Error("media upsert failed", "remote_id", remote.ID, "error", err)
			res.Failed++
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	return res, nil
}

// ApplyStalenessPolicy hides visible media posted more than maxAgeDays ago.
// Media without a posted timestamp is never hidden by age.
func (s *SyncService) ApplyStalenessPolicy(ctx context.Context, maxAgeDays int) (int, error) {
	if maxAgeDays < 1 {
		return 0, fmt.Errorf("max age must be at least 1 day, got %d", maxAgeDays)
	}

	cutoff := s.now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	hidden, err := s.media.HideOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("hide stale media: %w", err)
	}

	if hidden > 0 {
		slog.Info("stale media hidden", "count", hidden, "max_age_days", maxAgeDays)
	}
	return hidden, nil
}

// Sync runs one full fetch, reconcile and staleness pass.
func (s *SyncService) Sync(ctx context.Context, opts SyncOptions) (SyncReport, error) {
	start := time.Now()
	report := SyncReport{RunID: uuid.NewString()}

	cred, err := s.creds.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load credential: %w", err)
	}
	if !opts.Force && !s.ready(cred) {
		return report, fmt.Errorf("%w: account is not connected or the token has expired", model.ErrNotAuthorized)
	}

	items, err := s.fetch(ctx, cred, opts.Limit)
	if err != nil {
		return report, err
	}
	report.Fetched = len(items)

	res, err := s.Reconcile(ctx, items, cred.Username)
	report.Created, report.Updated, report.Failed = res.Created, res.Updated, res.Failed
	if err != nil {
		return report, fmt.Errorf("reconcile media: %w", err)
	}

	if s.policy.Enabled {
		if report.Hidden, err = s.ApplyStalenessPolicy(ctx, s.policy.MaxAgeDays); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start).Round(time.Millisecond)
	slog.Info("media sync complete",
		"run_id", report.RunID,
		"fetched", report.Fetched,
		"created", report.Created,
		"updated", report.Updated,
		"failed", report.Failed,
		"hidden", report.Hidden,
		"duration", report.Duration,
	)

	return report, nil
}

// SyncOne re-fetches a single media object and upserts it.
func (s *SyncService) SyncOne(ctx context.Context, remoteID string) (model.MediaItem, error) {
	cred, err := s.creds.Load(ctx)
	if err != nil {
		return model.MediaItem{}, fmt.Errorf("load credential: %w", err)
	}
	if !cred.HasToken() {
		return model.MediaItem{}, fmt.Errorf("%w: no access token; authorize the account first", model.ErrNotAuthorized)
	}

	remote, err := s.client.FetchMediaByID(ctx, cred.AccessToken, remoteID)
	if err != nil {
		return model.MediaItem{}, fmt.Errorf("%w: fetch media %s: %w", model.ErrAPIRequest, remoteID, err)
	}
	if remote == nil {
		return model.MediaItem{}, fmt.Errorf("remote media %s: %w", remoteID, model.ErrMediaNotFound)
	}

	item, err := remote.ToMediaItem(cred.Username)
	if err != nil {
		return model.MediaItem{}, err
	}
	item.IsVisible = true

	if _, err := s.media.Upsert(ctx, item); err != nil {
		return model.MediaItem{}, fmt.Errorf("upsert media %s: %w", remoteID, err)
	}

	stored, err := s.media.GetByRemoteID(ctx, item.RemoteID)
	if err != nil {
		return model.MediaItem{}, fmt.Errorf("reload media %s: %w", remoteID, err)
	}
	if stored == nil {
		return model.MediaItem{}, fmt.Errorf("reload media %s: %w", remoteID, model.ErrMediaNotFound)
	}
	return *stored, nil
}

func clampLimit(limit int) int {
	return max(MinSyncLimit, min(limit, MaxSyncLimit))
}

// IsNotAuthorized reports whether err means sync cannot proceed until the
// account is (re)authorized.
func IsNotAuthorized(err error) bool {
	return errors.Is(err, model.ErrNotAuthorized) || errors.Is(err, model.ErrTokenExpired)
}
