package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/changesync/internal/models"
	"github.com/iudanet/changesync/internal/server/storage"
)

func setupTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "server.db")
	s, err := New(context.Background(), dbPath)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
	}

	return s, cleanup
}

func newTestRecord(kind models.EntityKind, id string, rev uint64) *models.Record {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.Record{
		Kind:      kind,
		ID:        id,
		Rev:       rev,
		Checksum:  "sum",
		UpdatedBy: "local",
		Data:      json.RawMessage(`{"id":"` + id + `"}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func upsert(s *Storage, rec *models.Record, expectedRev uint64) error {
	return s.WithinTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.Upsert(ctx, rec, expectedRev)
	})
}

func TestStorage_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	rec := newTestRecord(models.EntityCategory, "c1", 1)
	require.NoError(t, upsert(s, rec, 0))

	got, err := s.GetRecord(ctx, models.EntityCategory, "c1")
	require.NoError(t, err)
	assert.Equal(t, rec.Rev, got.Rev)
	assert.Equal(t, rec.Checksum, got.Checksum)
	assert.JSONEq(t, string(rec.Data), string(got.Data))
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))

	_, err = s.GetRecord(ctx, models.EntityProduct, "c1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_CompareAndSwap(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, upsert(s, newTestRecord(models.EntityProduct, "p1", 3), 0))

	assert.ErrorIs(t, upsert(s, newTestRecord(models.EntityProduct, "p1", 4), 0), storage.ErrRevisionMismatch)
	assert.ErrorIs(t, upsert(s, newTestRecord(models.EntityProduct, "p1", 4), 2), storage.ErrRevisionMismatch)
	assert.ErrorIs(t, upsert(s, newTestRecord(models.EntityProduct, "p1", 3), 3), storage.ErrInvalidRecord)
	assert.NoError(t, upsert(s, newTestRecord(models.EntityProduct, "p1", 4), 3))
}

func TestStorage_UnknownKind(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	err := upsert(s, newTestRecord("order", "o1", 1), 0)
	assert.Error(t, err)
}

func TestStorage_WithinTx_Rollback(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	errBoom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		require.NoError(t, tx.Upsert(ctx, newTestRecord(models.EntityProduct, "p1", 1), 0))

		rec, err := tx.FindByKey(ctx, models.EntityProduct, "p1")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), rec.Rev)

		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)

	_, err = s.GetRecord(ctx, models.EntityProduct, "p1")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_CanceledContext(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestStorage_Closed(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)

	require.NoError(t, s.Ping(ctx))
	cleanup()

	assert.ErrorIs(t, s.Ping(ctx), storage.ErrStoreClosed)
	_, err := s.GetRecord(ctx, models.EntityProduct, "p1")
	assert.ErrorIs(t, err, storage.ErrStoreClosed)
}
