package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

// MaxCatalogLimit caps a single catalog page.
const MaxCatalogLimit = 500

// ErrInvalidQuery is returned for catalog queries with unknown filters.
var ErrInvalidQuery = errors.New("invalid catalog query")

// CatalogQuery selects media for presentation. Zero values list every record,
// newest first.
type CatalogQuery struct {
	VisibleOnly bool
	MediaType   model.MediaType
	Sort        model.CatalogSort
	Limit       int
}

// CatalogService serves the persisted media collection to presentation code.
type CatalogService struct {
	media driven.MediaStore
}

// NewCatalogService creates a CatalogService backed by media.
func NewCatalogService(media driven.MediaStore) *CatalogService {
	return &CatalogService{media: media}
}

// List returns media matching q.
func (s *CatalogService) List(ctx context.Context, q CatalogQuery) ([]model.MediaItem, error) {
	if q.MediaType != "" && !q.MediaType.Valid() {
		return nil, fmt.Errorf("%w: unknown media type %q", ErrInvalidQuery, q.MediaType)
	}
	if q.Sort == "" {
		q.Sort = model.SortNewest
	}
	if !q.Sort.Valid() {
		return nil, fmt.Errorf("%w: unknown sort %q", ErrInvalidQuery, q.Sort)
	}
	if q.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}

	items, err := s.media.List(ctx, driven.MediaQuery{
		VisibleOnly: q.VisibleOnly,
		MediaType:   q.MediaType,
		Sort:        q.Sort,
		Limit:       min(q.Limit, MaxCatalogLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return items, nil
}

// ToggleVisibility flips the visibility of each id and returns how many were
// toggled. Unknown ids are skipped.
func (s *CatalogService) ToggleVisibility(ctx context.Context, ids []int64) (int, error) {
	var toggled int
	for _, id := range ids {
		item, err := s.media.GetByID(ctx, id)
		if err != nil {
			return toggled, fmt.Errorf("get media %d: %w", id, err)
		}
		if item == nil {
			slog.Debug("toggle skipped unknown media", "id", id)
			continue
		}
		if err := s.media.SetVisibility(ctx, id, !item.IsVisible); err != nil {
			return toggled, fmt.Errorf("toggle media %d: %w", id, err)
		}
		toggled++
	}

	slog.Info("media visibility toggled", "requested", len(ids), "toggled", toggled)
	return toggled, nil
}

// SetVisibility sets the operator-controlled visibility flag of one record.
func (s *CatalogService) SetVisibility(ctx context.Context, id int64, visible bool) error {
	if err := s.media.SetVisibility(ctx, id, visible); err != nil {
		return err
	}
	slog.Info("media visibility set", "id", id, "visible", visible)
	return nil
}
