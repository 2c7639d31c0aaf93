package storage

import (
	"context"

	"github.com/iudanet/changesync/internal/models"
)

//go:generate moq -out metadata_mock.go . MetadataStorage

// MetadataStorage defines interface for storing client sync metadata
type MetadataStorage interface {
	// SaveWatermark saves the latest server revision seen by the client
	SaveWatermark(ctx context.Context, rev int64) error

	// GetWatermark retrieves the client watermark
	// Returns 0 if no push has been performed yet
	GetWatermark(ctx context.Context) (int64, error)

	// SaveKnownRev запоминает последнюю известную ревизию записи
	SaveKnownRev(ctx context.Context, kind models.EntityKind, id string, rev uint64) error

	// GetKnownRev возвращает последнюю известную ревизию записи, 0 если запись неизвестна
	GetKnownRev(ctx context.Context, kind models.EntityKind, id string) (uint64, error)
}
