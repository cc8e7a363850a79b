package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/deliverysync/backend/internal/domain/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, restaurantID string, platform delivery.Platform, createdAt time.Time) *delivery.Session {
	t.Helper()
	s, err := delivery.NewSession(restaurantID, platform, []byte(`{"cookies":[]}`), createdAt)
	require.NoError(t, err)
	return s
}

func TestGormSessionRepository_UpsertSupersedes(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSessionRepository(setupDeliveryTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	old := newTestSession(t, "r1", delivery.PlatformDoorDash, now.Add(-48*time.Hour))
	require.NoError(t, repo.Upsert(ctx, old))
	require.NoError(t, repo.Revoke(ctx, "r1", delivery.PlatformDoorDash))

	fresh := newTestSession(t, "r1", delivery.PlatformDoorDash, now)
	fresh.Blob = []byte(`{"cookies":[{"name":"sid"}]}`)
	require.NoError(t, repo.Upsert(ctx, fresh))

	found, err := repo.FindByKey(ctx, "r1", delivery.PlatformDoorDash)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, found.ID)
	assert.Equal(t, fresh.Blob, found.Blob)
	assert.False(t, found.Revoked)
	assert.True(t, found.IsValid(now))
	assert.Equal(t, 0, found.AgeInDays(now))

	sessions, err := repo.FindByRestaurant(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestGormSessionRepository_ExistsAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSessionRepository(setupDeliveryTestDB(t))

	exists, err := repo.Exists(ctx, "r1", delivery.PlatformUberEats)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, repo.Upsert(ctx, newTestSession(t, "r1", delivery.PlatformUberEats, time.Now())))

	exists, err = repo.Exists(ctx, "r1", delivery.PlatformUberEats)
	require.NoError(t, err)
	assert.True(t, exists)

	removed, err := repo.Delete(ctx, "r1", delivery.PlatformUberEats)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, "r1", delivery.PlatformUberEats)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = repo.FindByKey(ctx, "r1", delivery.PlatformUberEats)
	assert.ErrorIs(t, err, delivery.ErrNotFound)
}

func TestGormSessionRepository_TouchAndMarkValidated(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSessionRepository(setupDeliveryTestDB(t))
	created := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	require.NoError(t, repo.Upsert(ctx, newTestSession(t, "r1", delivery.PlatformDoorDash, created)))

	used := created.Add(30 * time.Minute)
	require.NoError(t, repo.Touch(ctx, "r1", delivery.PlatformDoorDash, used))
	require.NoError(t, repo.MarkValidated(ctx, "r1", delivery.PlatformDoorDash, used))

	found, err := repo.FindByKey(ctx, "r1", delivery.PlatformDoorDash)
	require.NoError(t, err)
	assert.True(t, found.LastUsedAt.Equal(used))
	require.NotNil(t, found.LastValidatedAt)
	assert.True(t, found.LastValidatedAt.Equal(used))
	assert.True(t, found.CreatedAt.Equal(created))

	err = repo.Touch(ctx, "r1", delivery.PlatformUberEats, used)
	assert.ErrorIs(t, err, delivery.ErrNotFound)
}

func TestGormSessionRepository_DeleteCreatedBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSessionRepository(setupDeliveryTestDB(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, newTestSession(t, "r1", delivery.PlatformDoorDash, now.AddDate(0, 0, -45))))
	require.NoError(t, repo.Upsert(ctx, newTestSession(t, "r2", delivery.PlatformDoorDash, now.AddDate(0, 0, -31))))
	require.NoError(t, repo.Upsert(ctx, newTestSession(t, "r1", delivery.PlatformUberEats, now.AddDate(0, 0, -2))))

	cutoff := now.AddDate(0, 0, -30)

	removed, err := repo.DeleteCreatedBefore(ctx, "", cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	removed, err = repo.DeleteCreatedBefore(ctx, "", cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed, "second sweep removes nothing")

	exists, err := repo.Exists(ctx, "r1", delivery.PlatformUberEats)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGormSessionRepository_DeleteCreatedBefore_ScopedToRestaurant(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSessionRepository(setupDeliveryTestDB(t))
	now := time.Now().UTC()

	require.NoError(t, repo.Upsert(ctx, newTestSession(t, "r1", delivery.PlatformDoorDash, now.AddDate(0, 0, -2))))
	require.NoError(t, repo.Upsert(ctx, newTestSession(t, "r2", delivery.PlatformDoorDash, now.AddDate(0, 0, -2))))

	removed, err := repo.DeleteCreatedBefore(ctx, "r2", now.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	exists, err := repo.Exists(ctx, "r1", delivery.PlatformDoorDash)
	require.NoError(t, err)
	assert.True(t, exists, "another restaurant's session survives")

	exists, err = repo.Exists(ctx, "r2", delivery.PlatformDoorDash)
	require.NoError(t, err)
	assert.False(t, exists)
}
