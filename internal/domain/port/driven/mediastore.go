package driven

import (
	"context"
	"time"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
)

// MediaQuery filters and orders catalog listings. Zero values mean no filter,
// newest first, and no limit.
type MediaQuery struct {
	VisibleOnly bool
	MediaType   model.MediaType
	Sort        model.CatalogSort
	Limit       int
}

// MediaStore defines the driven port for media record persistence.
type MediaStore interface {
	// Upsert inserts item when no record with its RemoteID exists, using
	// item.IsVisible as the initial visibility. Otherwise every field except
	// the id, remote id, visibility and created_at is overwritten. created
	// reports which branch ran.
	Upsert(ctx context.Context, item model.MediaItem) (created bool, err error)

	// GetByRemoteID returns nil, nil when no record exists.
	GetByRemoteID(ctx context.Context, remoteID string) (*model.MediaItem, error)

	// GetByID returns nil, nil when no record exists.
	GetByID(ctx context.Context, id int64) (*model.MediaItem, error)

	List(ctx context.Context, q MediaQuery) ([]model.MediaItem, error)

	// SetVisibility returns model.ErrMediaNotFound if id does not exist.
	SetVisibility(ctx context.Context, id int64, visible bool) error

	// HideOlderThan sets is_visible=false on every visible record whose
	// posted_at is before cutoff. Records without posted_at are untouched.
	HideOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
