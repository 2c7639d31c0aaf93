package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/changesync/internal/client/storage"
	"github.com/iudanet/changesync/internal/models"
)

// recordKey ключ записи: "<kind>/<id>"
func recordKey(kind models.EntityKind, id string) []byte {
	return []byte(string(kind) + "/" + id)
}

// Enqueue stores a pending change, compacting it with an existing one for the same record
func (s *Storage) Enqueue(ctx context.Context, change *models.PendingChange) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)
		key := recordKey(change.Kind, change.ID)

		next := *change
		if existing, err := decodeChange(bucket.Get(key)); err != nil {
			return err
		} else if existing != nil {
			// Правка поверх неотправленной: сервер еще не видел предыдущую,
			// поэтому базой остается исходная ревизия
			next.BasisRev = existing.BasisRev
			next.Seq = existing.Seq
			next.Conflict = existing.Conflict
		} else {
			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to allocate sequence: %w", err)
			}
			next.Seq = seq
		}

		if next.Op == models.OpDelete {
			next.Fields = nil
		}

		return putChange(bucket, key, &next)
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue change: %w", err)
	}

	return nil
}

// Pending returns all pending changes ordered by enqueue sequence
func (s *Storage) Pending(ctx context.Context) ([]*models.PendingChange, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var changes []*models.PendingChange

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).ForEach(func(k, v []byte) error {
			change, err := decodeChange(v)
			if err != nil {
				return err
			}
			changes = append(changes, change)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pending changes: %w", err)
	}

	slices.SortFunc(changes, func(a, b *models.PendingChange) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})

	return changes, nil
}

// Get retrieves the pending change for a record
func (s *Storage) Get(ctx context.Context, kind models.EntityKind, id string) (*models.PendingChange, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var change *models.PendingChange

	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		change, err = decodeChange(tx.Bucket(bucketOutbox).Get(recordKey(kind, id)))
		if err != nil {
			return err
		}
		if change == nil {
			return storage.ErrChangeNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return change, nil
}

// Remove deletes the pending change for a record
func (s *Storage) Remove(ctx context.Context, kind models.EntityKind, id string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutbox).Delete(recordKey(kind, id))
	})
	if err != nil {
		return fmt.Errorf("failed to remove pending change: %w", err)
	}
	return nil
}

// MarkConflict records the server revision the change conflicts with
func (s *Storage) MarkConflict(ctx context.Context, kind models.EntityKind, id string, currentRev uint64) error {
	return s.updateChange(kind, id, func(change *models.PendingChange) {
		change.Conflict = &models.PendingConflict{
			CurrentRev: currentRev,
			DetectedAt: time.Now().UTC(),
		}
	})
}

// Rebase moves the change onto a new basis revision and clears the conflict mark
func (s *Storage) Rebase(ctx context.Context, kind models.EntityKind, id string, basisRev uint64) error {
	return s.updateChange(kind, id, func(change *models.PendingChange) {
		change.BasisRev = basisRev
		change.Conflict = nil
	})
}

func (s *Storage) updateChange(kind models.EntityKind, id string, fn func(change *models.PendingChange)) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketOutbox)
		key := recordKey(kind, id)

		change, err := decodeChange(bucket.Get(key))
		if err != nil {
			return err
		}
		if change == nil {
			return storage.ErrChangeNotFound
		}

		fn(change)
		return putChange(bucket, key, change)
	})
}

func decodeChange(data []byte) (*models.PendingChange, error) {
	if data == nil {
		return nil, nil
	}
	var change models.PendingChange
	if err := json.Unmarshal(data, &change); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending change: %w", err)
	}
	return &change, nil
}

func putChange(bucket *bbolt.Bucket, key []byte, change *models.PendingChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal pending change: %w", err)
	}
	if err := bucket.Put(key, data); err != nil {
		return fmt.Errorf("failed to save pending change: %w", err)
	}
	return nil
}
