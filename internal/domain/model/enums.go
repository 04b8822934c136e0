package model

// TokenState represents where the credential sits in the authorization lifecycle.
type TokenState string

const (
	TokenStateUnauthorized    TokenState = "UNAUTHORIZED"
	TokenStatePendingCallback TokenState = "PENDING_CALLBACK"
	TokenStateAuthorized      TokenState = "AUTHORIZED"
	TokenStateExpiringSoon    TokenState = "EXPIRING_SOON"
	TokenStateExpired         TokenState = "EXPIRED"
)

// MediaType is the provider's classification of a media object.
type MediaType string

const (
	MediaTypeImage    MediaType = "IMAGE"
	MediaTypeVideo    MediaType = "VIDEO"
	MediaTypeCarousel MediaType = "CAROUSEL_ALBUM"
)

// Valid reports whether t is one of the enumerated media types.
func (t MediaType) Valid() bool {
	switch t {
	case MediaTypeImage, MediaTypeVideo, MediaTypeCarousel:
		return true
	}
	return false
}

// DisplayName returns a short human label for t.
func (t MediaType) DisplayName() string {
	switch t {
	case MediaTypeImage:
		return "Image"
	case MediaTypeVideo:
		return "Video"
	case MediaTypeCarousel:
		return "Carousel"
	}
	return string(t)
}

// CatalogSort is an ordering accepted by catalog queries.
type CatalogSort string

const (
	SortNewest       CatalogSort = "posted_at desc"
	SortOldest       CatalogSort = "posted_at asc"
	SortMostLiked    CatalogSort = "like_count desc"
	SortMostComments CatalogSort = "comments_count desc"
)

// Valid reports whether s is a supported ordering.
func (s CatalogSort) Valid() bool {
	switch s {
	case SortNewest, SortOldest, SortMostLiked, SortMostComments:
		return true
	}
	return false
}
