package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/igmedia/internal/domain/model"
	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.MediaStore = (*MediaRepo)(nil)

// MediaRepo is the SQLite implementation of the MediaStore port interface.
type MediaRepo struct {
	db *DB
}

// NewMediaRepo creates a new MediaRepo backed by the given DB.
func NewMediaRepo(db *DB) *MediaRepo {
	return &MediaRepo{db: db}
}

const mediaColumns = `id, remote_id, media_type, media_url, thumbnail_url, permalink, caption,
	posted_at, username, like_count, comments_count, is_visible, created_at, updated_at`

// orderClauses maps catalog sorts to SQL. Keys are the only values ever
// interpolated into a query.
var orderClauses = map[model.CatalogSort]string{
	model.SortNewest:       "posted_at DESC, id DESC",
	model.SortOldest:       "posted_at ASC, id ASC",
	model.SortMostLiked:    "like_count DESC, id DESC",
	model.SortMostComments: "comments_count DESC, id DESC",
}

// Upsert inserts or updates a media record keyed by remote_id. The lookup and
// write share one transaction on the single writer connection.
func (r *MediaRepo) Upsert(ctx context.Context, item model.MediaItem) (bool, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin media upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM media WHERE remote_id = ?`, item.RemoteID).Scan(&id)
	created := errors.Is(err, sql.ErrNoRows)
	if err != nil && !created {
		return false, fmt.Errorf("lookup media %s: %w", item.RemoteID, err)
	}

	postedAt := nullableTime(item.PostedAt)

	if created {
		const insert = `
			INSERT INTO media (
				remote_id, media_type, media_url, thumbnail_url, permalink, caption,
				posted_at, username, like_count, comments_count, is_visible
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, insert,
			item.RemoteID, string(item.MediaType), item.MediaURL, item.ThumbnailURL, item.Permalink,
			item.Caption, postedAt, item.Username, item.LikeCount, item.CommentsCount, boolToInt(item.IsVisible),
		)
		if err != nil {
			return false, fmt.Errorf("insert media %s: %w", item.RemoteID, err)
		}
	} else {
		// is_visible is operator-owned and deliberately absent here.
		const update = `
			UPDATE media SET
				media_type = ?, media_url = ?, thumbnail_url = ?, permalink = ?, caption = ?,
				posted_at = ?, username = ?, like_count = ?, comments_count = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`
		_, err = tx.ExecContext(ctx, update,
			string(item.MediaType), item.MediaURL, item.ThumbnailURL, item.Permalink, item.Caption,
			postedAt, item.Username, item.LikeCount, item.CommentsCount, id,
		)
		if err != nil {
			return false, fmt.Errorf("update media %s: %w", item.RemoteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit media %s: %w", item.RemoteID, err)
	}
	return created, nil
}

// GetByRemoteID retrieves a record by provider id. Returns nil, nil if absent.
func (r *MediaRepo) GetByRemoteID(ctx context.Context, remoteID string) (*model.MediaItem, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE remote_id = ?`
	item, err := scanMedia(r.db.Reader.QueryRowContext(ctx, query, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media %s: %w", remoteID, err)
	}
	return item, nil
}

// GetByID retrieves a record by local id. Returns nil, nil if absent.
func (r *MediaRepo) GetByID(ctx context.Context, id int64) (*model.MediaItem, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = ?`
	item, err := scanMedia(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get media %d: %w", id, err)
	}
	return item, nil
}

// List returns records matching q.
func (r *MediaRepo) List(ctx context.Context, q driven.MediaQuery) ([]model.MediaItem, error) {
	var where []string
	var args []any

	if q.VisibleOnly {
		where = append(where, "is_visible = 1")
	}
	if q.MediaType != "" {
		where = append(where, "media_type = ?")
		args = append(args, string(q.MediaType))
	}

	order, ok := orderClauses[q.Sort]
	if !ok {
		order = orderClauses[model.SortNewest]
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + mediaColumns + ` FROM media`)
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY " + order)
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := r.db.Reader.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	items := []model.MediaItem{}
	for rows.Next() {
		item, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media: %w", err)
	}

	return items, nil
}

// SetVisibility sets the operator-controlled visibility flag.
func (r *MediaRepo) SetVisibility(ctx context.Context, id int64, visible bool) error {
	const query = `UPDATE media SET is_visible = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, boolToInt(visible), id)
	if err != nil {
		return fmt.Errorf("set visibility of media %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("media %d: %w", id, model.ErrMediaNotFound)
	}
	return nil
}

// HideOlderThan hides visible records posted before cutoff.
func (r *MediaRepo) HideOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	const query = `
		UPDATE media SET is_visible = 0, updated_at = CURRENT_TIMESTAMP
		WHERE is_visible = 1 AND posted_at IS NOT NULL AND posted_at < ?
	`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("hide media older than %s: %w", formatTime(cutoff), err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return int(rows), nil
}

func scanMedia(s scanner) (*model.MediaItem, error) {
	var item model.MediaItem
	var mediaType string
	var postedAt sql.NullString
	var isVisible int
	var createdAt, updatedAt string

	err := s.Scan(
		&item.ID, &item.RemoteID, &mediaType, &item.MediaURL, &item.ThumbnailURL, &item.Permalink,
		&item.Caption, &postedAt, &item.Username, &item.LikeCount, &item.CommentsCount,
		&isVisible, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.MediaType = model.MediaType(mediaType)
	item.IsVisible = isVisible != 0

	if postedAt.Valid && postedAt.String != "" {
		if item.PostedAt, err = parseTime(postedAt.String); err != nil {
			return nil, fmt.Errorf("parse posted_at: %w", err)
		}
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &item, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
