package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCreateAndGetActive(t *testing.T) {
	db := setupTestDB(t)
	svc := NewEventService(db, db, disabledCache(t))

	created, err := svc.Create(context.Background(), "U-13 Championship", "Annual youth tournament", 500000, "")
	require.NoError(t, err)
	assert.Equal(t, "NGN", created.Currency)
	assert.Equal(t, int64(500000), created.Amount)
	assert.True(t, created.IsActive)

	active, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, created.ID, active.ID)
}

func TestEventCreateSingleton(t *testing.T) {
	db := setupTestDB(t)
	svc := NewEventService(db, db, disabledCache(t))

	_, err := svc.Create(context.Background(), "U-13 Championship", "Annual youth tournament", 500000, "NGN")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "Another Event", "Second attempt", 100000, "NGN")
	assert.ErrorIs(t, err, ErrEventExists)
}

func TestEventGetActiveNone(t *testing.T) {
	db := setupTestDB(t)
	svc := NewEventService(db, db, disabledCache(t))

	_, err := svc.GetActive(context.Background())
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventUpdateAmount(t *testing.T) {
	db := setupTestDB(t)
	svc := NewEventService(db, db, disabledCache(t))

	created, err := svc.Create(context.Background(), "U-13 Championship", "Annual youth tournament", 500000, "NGN")
	require.NoError(t, err)

	updated, err := svc.UpdateAmount(context.Background(), created.ID, 750000)
	require.NoError(t, err)
	assert.Equal(t, int64(750000), updated.Amount)

	active, err := svc.GetActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(750000), active.Amount)
}

func TestEventUpdateAmountUnknownID(t *testing.T) {
	db := setupTestDB(t)
	svc := NewEventService(db, db, disabledCache(t))

	_, err := svc.UpdateAmount(context.Background(), uuid.New(), 750000)
	assert.Error(t, err)
}
