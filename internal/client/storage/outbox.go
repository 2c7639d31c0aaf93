package storage

import (
	"context"

	"github.com/iudanet/changesync/internal/models"
)

//go:generate moq -out outbox_mock.go . OutboxStorage

// OutboxStorage defines interface for the pending-change outbox
type OutboxStorage interface {
	// Enqueue ставит изменение в outbox.
	// Если для (Kind, ID) уже есть изменение, оно заменяется новым,
	// но сохраняет исходные BasisRev, Seq и отметку конфликта.
	Enqueue(ctx context.Context, change *models.PendingChange) error

	// Pending возвращает все изменения в порядке постановки
	Pending(ctx context.Context) ([]*models.PendingChange, error)

	// Get returns the pending change for the key
	// Returns ErrChangeNotFound if there is none
	Get(ctx context.Context, kind models.EntityKind, id string) (*models.PendingChange, error)

	// Remove удаляет изменение. Отсутствие изменения не ошибка.
	Remove(ctx context.Context, kind models.EntityKind, id string) error

	// MarkConflict сохраняет серверную ревизию, с которой конфликтует изменение
	MarkConflict(ctx context.Context, kind models.EntityKind, id string, currentRev uint64) error

	// Rebase переносит изменение на новую базовую ревизию и снимает отметку конфликта
	Rebase(ctx context.Context, kind models.EntityKind, id string, basisRev uint64) error
}
