package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateStore_PutExistsDelete(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "abc", time.Now().Add(time.Minute)))

	ok, err := store.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Exists(ctx, "abd")
	require.NoError(t, err)
	assert.False(t, ok, "lookup is exact-match")

	require.NoError(t, store.Delete(ctx, "abc"))
	ok, err = store.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateStore_Expiry(t *testing.T) {
	store := NewStateStore()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "abc", now.Add(10*time.Minute)))

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	now = now.Add(11 * time.Minute)

	ok, err := store.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err = store.Pending(ctx)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestStateStore_PutSweepsExpired(t *testing.T) {
	store := NewStateStore()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "old", now.Add(time.Minute)))
	now = now.Add(time.Hour)
	require.NoError(t, store.Put(ctx, "new", now.Add(time.Minute)))

	assert.Len(t, store.states, 1)
}
