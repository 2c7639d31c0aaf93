package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/changesync/internal/client/storage"
	"github.com/iudanet/changesync/internal/models"
)

const (
	keyWatermark = "watermark"
)

// SaveWatermark saves the latest server revision seen by the client
func (s *Storage) SaveWatermark(ctx context.Context, rev int64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		// Конвертируем int64 в bytes
		revBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(revBytes, uint64(rev))

		if err := tx.Bucket(bucketMetadata).Put([]byte(keyWatermark), revBytes); err != nil {
			return fmt.Errorf("failed to save watermark: %w", err)
		}
		return nil
	})
}

// GetWatermark retrieves the client watermark
// Returns 0 if no push has been performed yet
func (s *Storage) GetWatermark(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var rev int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		revBytes := tx.Bucket(bucketMetadata).Get([]byte(keyWatermark))
		if revBytes == nil {
			return nil
		}
		rev = int64(binary.BigEndian.Uint64(revBytes))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get watermark: %w", err)
	}

	return rev, nil
}

// SaveKnownRev stores the latest known server revision of a record
func (s *Storage) SaveKnownRev(ctx context.Context, kind models.EntityKind, id string, rev uint64) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		revBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(revBytes, rev)

		if err := tx.Bucket(bucketKnownRevs).Put(recordKey(kind, id), revBytes); err != nil {
			return fmt.Errorf("failed to save known revision: %w", err)
		}
		return nil
	})
}

// GetKnownRev returns the latest known server revision of a record, 0 if unknown
func (s *Storage) GetKnownRev(ctx context.Context, kind models.EntityKind, id string) (uint64, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var rev uint64

	err := s.db.View(func(tx *bbolt.Tx) error {
		if revBytes := tx.Bucket(bucketKnownRevs).Get(recordKey(kind, id)); revBytes != nil {
			rev = binary.BigEndian.Uint64(revBytes)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get known revision: %w", err)
	}

	return rev, nil
}
