package driven

import (
	"context"
	"time"
)

// StateStore binds issued OAuth state values to the pending authorization
// until the callback arrives or the binding expires.
type StateStore interface {
	Put(ctx context.Context, state string, expiresAt time.Time) error

	// Exists reports whether state was issued and has not expired.
	Exists(ctx context.Context, state string) (bool, error)

	Delete(ctx context.Context, state string) error

	// Pending reports whether any unexpired state is outstanding.
	Pending(ctx context.Context) (bool, error)
}
