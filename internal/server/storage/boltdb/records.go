package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/changesync/internal/models"
	"github.com/iudanet/changesync/internal/server/storage"
)

// WithinTx выполняет fn в одной write-транзакции bbolt.
// bbolt сериализует write-транзакции, ошибка fn откатывает все изменения.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return fn(ctx, &recordTx{tx: tx})
	})
	return mapError(err)
}

// GetRecord retrieves a record outside of a transaction
// Returns ErrRecordNotFound if the record does not exist
func (s *Storage) GetRecord(ctx context.Context, kind models.EntityKind, id string) (*models.Record, error) {
	var rec *models.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = getRecord(tx, kind, id)
		return err
	})
	if err != nil {
		return nil, mapError(err)
	}

	return rec, nil
}

// recordTx реализует storage.Tx поверх *bbolt.Tx
type recordTx struct {
	tx *bbolt.Tx
}

func (t *recordTx) FindByKey(ctx context.Context, kind models.EntityKind, id string) (*models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return getRecord(t.tx, kind, id)
}

func (t *recordTx) Upsert(ctx context.Context, rec *models.Record, expectedRev uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := storage.CheckWrite(rec, expectedRev); err != nil {
		return err
	}

	bucket, err := kindBucket(t.tx, rec.Kind)
	if err != nil {
		return err
	}

	// Compare-and-swap по текущей ревизии
	var currentRev uint64
	if data := bucket.Get([]byte(rec.ID)); data != nil {
		current := &models.Record{}
		if err := json.Unmarshal(data, current); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}
		currentRev = current.Rev
	}
	if currentRev != expectedRev {
		return fmt.Errorf("%w: %s/%s expected rev %d, got %d",
			storage.ErrRevisionMismatch, rec.Kind, rec.ID, expectedRev, currentRev)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := bucket.Put([]byte(rec.ID), data); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

func kindBucket(tx *bbolt.Tx, kind models.EntityKind) (*bbolt.Bucket, error) {
	root := tx.Bucket(bucketRecords)
	if root == nil {
		return nil, fmt.Errorf("bucket %q not found", bucketRecords)
	}
	bucket := root.Bucket([]byte(kind))
	if bucket == nil {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	return bucket, nil
}

func getRecord(tx *bbolt.Tx, kind models.EntityKind, id string) (*models.Record, error) {
	bucket, err := kindBucket(tx, kind)
	if err != nil {
		return nil, err
	}

	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, storage.ErrRecordNotFound
	}

	// Десериализуем
	rec := &models.Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return rec, nil
}
