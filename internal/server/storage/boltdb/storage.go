package boltdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/changesync/internal/models"
	"github.com/iudanet/changesync/internal/server/storage"
)

var (
	// bucketRecords корневой bucket, внутри по вложенному bucket на тип сущности
	bucketRecords = []byte("records")
)

// Storage represents BoltDB storage implementation for server records.
// Подходит для одиночного узла без внешней БД.
type Storage struct {
	db *bbolt.DB
}

var _ storage.RecordStorage = (*Storage)(nil)

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем BoltDB
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping проверяет, что база открыта
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(s.db.View(func(tx *bbolt.Tx) error { return nil }))
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(bucketRecords)
		if err != nil {
			return fmt.Errorf("failed to create records bucket: %w", err)
		}

		for _, kind := range models.EntityKinds {
			if _, err := root.CreateBucketIfNotExists([]byte(kind)); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", kind, err)
			}
		}

		return nil
	})
}

func mapError(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return storage.ErrStoreClosed
	}
	return err
}
