package storage

import (
	"context"
	"fmt"

	"github.com/iudanet/changesync/internal/models"
)

// Tx операции над записями внутри одной транзакции хранилища
type Tx interface {
	// FindByKey возвращает текущую версию записи (включая tombstone).
	// Returns ErrRecordNotFound if the record does not exist
	FindByKey(ctx context.Context, kind models.EntityKind, id string) (*models.Record, error)

	// Upsert записывает rec при условии, что текущая ревизия равна expectedRev
	// (0 означает, что записи еще нет).
	// Returns ErrRevisionMismatch if the stored revision differs
	Upsert(ctx context.Context, rec *models.Record, expectedRev uint64) error
}

// RecordStorage defines interface for authoritative record persistence
type RecordStorage interface {
	// WithinTx выполняет fn в одной атомарной транзакции.
	// Ошибка fn или отмена ctx откатывают все записи fn.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// GetRecord retrieves a record outside of a transaction
	// Returns ErrRecordNotFound if the record does not exist
	GetRecord(ctx context.Context, kind models.EntityKind, id string) (*models.Record, error)

	// Ping проверяет доступность хранилища
	Ping(ctx context.Context) error

	Close() error
}

// CheckWrite проверяет инварианты записи перед CAS.
// Каждая запись обязана увеличивать ревизию.
func CheckWrite(rec *models.Record, expectedRev uint64) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	if rec.Kind == "" || rec.ID == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidRecord)
	}
	if rec.Rev <= expectedRev {
		return fmt.Errorf("%w: rev %d does not advance %d", ErrInvalidRecord, rec.Rev, expectedRev)
	}
	return nil
}
