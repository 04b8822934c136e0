package model

import (
	"fmt"
	"net/url"
	"time"
)

// MediaItem is the local record of one remote media object. Only URLs are
// kept; the binary content stays with the provider.
type MediaItem struct {
	ID            int64
	RemoteID      string
	MediaType     MediaType
	MediaURL      string
	ThumbnailURL  string
	Permalink     string
	Caption       string
	PostedAt      time.Time // zero when the provider gave no timestamp
	Username      string
	LikeCount     int
	CommentsCount int
	IsVisible     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the fields a fetched payload must carry.
func (m MediaItem) Validate() error {
	if m.RemoteID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMedia)
	}
	if !m.MediaType.Valid() {
		return fmt.Errorf("%w: unsupported media_type %q", ErrInvalidMedia, m.MediaType)
	}
	if m.MediaURL == "" {
		return fmt.Errorf("%w: missing media_url", ErrInvalidMedia)
	}
	u, err := url.Parse(m.MediaURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: media_url is not an absolute URL", ErrInvalidMedia)
	}
	return nil
}

// RemoteMedia is one entry of the provider's media listing, as returned.
type RemoteMedia struct {
	ID            string `json:"id"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	Permalink     string `json:"permalink,omitempty"`
	Caption       string `json:"caption,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	Username      string `json:"username,omitempty"`
	LikeCount     *int   `json:"like_count,omitempty"`
	CommentsCount *int   `json:"comments_count,omitempty"`
}

// remoteTimeLayouts are tried in order; the graph API emits "+0000" offsets.
var remoteTimeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	time.RFC3339Nano,
}

// ToMediaItem maps r onto a MediaItem and validates it. fallbackUsername is
// used when the payload carries no username. IsVisible is left false; the
// caller decides visibility for new records.
func (r RemoteMedia) ToMediaItem(fallbackUsername string) (MediaItem, error) {
	item := MediaItem{
		RemoteID:     r.ID,
		MediaType:    MediaType(r.MediaType),
		MediaURL:     r.MediaURL,
		ThumbnailURL: r.ThumbnailURL,
		Permalink:    r.Permalink,
		Caption:      r.Caption,
		Username:     r.Username,
	}
	if item.Username == "" {
		item.Username = fallbackUsername
	}
	if r.LikeCount != nil {
		item.LikeCount = *r.LikeCount
	}
	if r.CommentsCount != nil {
		item.CommentsCount = *r.CommentsCount
	}

	if r.Timestamp != "" {
		posted, err := parseRemoteTime(r.Timestamp)
		if err != nil {
			return MediaItem{}, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
		}
		item.PostedAt = posted
	}

	if err := item.Validate(); err != nil {
		return MediaItem{}, err
	}
	return item, nil
}

func parseRemoteTime(s string) (time.Time, error) {
	for _, layout := range remoteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
