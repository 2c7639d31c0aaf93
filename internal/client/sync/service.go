package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	httpClient "github.com/iudanet/changesync/internal/client/api"
	"github.com/iudanet/changesync/internal/client/storage"
	"github.com/iudanet/changesync/internal/models"
	"github.com/iudanet/changesync/pkg/api"
)

//go:generate moq -out service_mock.go . Service

// Service определяет интерфейс для sync.Service
type Service interface {
	// Push отправляет outbox на сервер.
	// Конфликтные изменения пропускаются, если force не установлен.
	// С force конфликтное изменение переносится на серверную ревизию и отправляется повторно.
	Push(ctx context.Context, token string, force bool) (*PushResult, error)

	// Status возвращает состояние outbox
	Status(ctx context.Context) (*Status, error)
}

// PushResult contains push operation results
type PushResult struct {
	Conflicts []api.Conflict  // конфликты, оставшиеся в outbox
	Rejected  []api.Rejection // изменения, отклоненные сервером и удаленные из outbox
	Pushed    int             // количество отправленных изменений
	Applied   int             // количество примененных сервером изменений
	Skipped   int             // конфликтные изменения, не отправленные без force
	LatestRev uint64          // максимальная ревизия, присвоенная сервером
	Watermark int64           // водяной знак после push
}

// Status состояние локального outbox
type Status struct {
	Pending    int   // всего изменений в outbox
	Conflicted int   // из них помечены конфликтом
	Watermark  int64 // последняя известная ревизия сервера
}

type service struct {
	apiClient httpClient.ClientAPI
	outbox    storage.OutboxStorage
	metadata  storage.MetadataStorage
	logger    *slog.Logger
}

// NewService creates a new sync service
func NewService(apiClient httpClient.ClientAPI, outbox storage.OutboxStorage, metadata storage.MetadataStorage, logger *slog.Logger) Service {
	return &service{
		apiClient: apiClient,
		outbox:    outbox,
		metadata:  metadata,
		logger:    logger,
	}
}

type changeKey struct {
	kind models.EntityKind
	id   string
}

// Push выполняет один цикл отправки:
// 1. Собирает изменения из outbox в порядке постановки
// 2. Отправляет их одним батчем
// 3. Удаляет из outbox принятые и отклоненные изменения, помечает конфликты
// 4. Сдвигает водяной знак
func (s *service) Push(ctx context.Context, token string, force bool) (*PushResult, error) {
	pending, err := s.outbox.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending changes: %w", err)
	}

	watermark, err := s.metadata.GetWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}

	result := &PushResult{Watermark: watermark}

	changes := make([]api.Change, 0, len(pending))
	sent := make(map[changeKey]*models.PendingChange, len(pending))
	for _, change := range pending {
		if change.IsConflicted() {
			if !force {
				result.Skipped++
				continue
			}
			// Клиент принимает серверную ревизию как базу и перезаписывает ее
			if err := s.outbox.Rebase(ctx, change.Kind, change.ID, change.Conflict.CurrentRev); err != nil {
				return nil, fmt.Errorf("failed to rebase %s/%s: %w", change.Kind, change.ID, err)
			}
			change.BasisRev = change.Conflict.CurrentRev
			change.Conflict = nil
		}

		changes = append(changes, toAPIChange(change))
		sent[changeKey{kind: change.Kind, id: change.ID}] = change
	}

	if len(changes) == 0 {
		s.logger.InfoContext(ctx, "Nothing to push", slog.Int("skipped", result.Skipped))
		return result, nil
	}

	s.logger.InfoContext(ctx, "Pushing changes",
		slog.Int("count", len(changes)),
		slog.Int64("watermark", watermark),
		slog.Bool("force", force),
	)

	resp, err := s.apiClient.Push(ctx, token, api.PushRequest{
		ClientRev: &watermark,
		Changes:   changes,
	})
	if err != nil {
		// outbox не тронут, изменения уйдут при следующем push
		return nil, fmt.Errorf("push failed: %w", err)
	}

	result.Pushed = len(changes)
	result.Applied = resp.AppliedCount
	result.LatestRev = resp.LatestRev

	if err := s.settle(ctx, resp, sent, result); err != nil {
		return nil, err
	}

	if latest := int64(resp.LatestRev); latest > watermark {
		if err := s.metadata.SaveWatermark(ctx, latest); err != nil {
			return nil, fmt.Errorf("failed to save watermark: %w", err)
		}
		result.Watermark = latest
	}

	s.logger.InfoContext(ctx, "Push completed",
		slog.Int("pushed", result.Pushed),
		slog.Int("applied", result.Applied),
		slog.Int("conflicts", len(result.Conflicts)),
		slog.Int("rejected", len(result.Rejected)),
		slog.Int("skipped", result.Skipped),
		slog.Uint64("latest_rev", result.LatestRev),
	)

	return result, nil
}

// settle приводит outbox в соответствие с ответом сервера
func (s *service) settle(ctx context.Context, resp *api.PushResponse, sent map[changeKey]*models.PendingChange, result *PushResult) error {
	for _, applied := range resp.Applied {
		key, ok := s.lookup(sent, applied.Entity, applied.ID)
		if !ok {
			continue
		}
		if err := s.metadata.SaveKnownRev(ctx, key.kind, key.id, applied.Rev); err != nil {
			return fmt.Errorf("failed to save known rev for %s/%s: %w", key.kind, key.id, err)
		}
		if err := s.remove(ctx, key); err != nil {
			return err
		}
		delete(sent, key)
	}

	for _, conflict := range resp.Conflicts {
		key, ok := s.lookup(sent, conflict.Entity, conflict.ID)
		if !ok {
			// decided=incoming: изменение уже учтено в applied
			continue
		}
		if conflict.Decided != string(models.SideCurrent) {
			continue
		}
		if err := s.outbox.MarkConflict(ctx, key.kind, key.id, conflict.CurrentRev); err != nil {
			return fmt.Errorf("failed to mark conflict for %s/%s: %w", key.kind, key.id, err)
		}
		result.Conflicts = append(result.Conflicts, conflict)
		delete(sent, key)

		s.logger.WarnContext(ctx, "Change conflicts with server revision",
			slog.String("entity", conflict.Entity),
			slog.String("id", conflict.ID),
			slog.Uint64("basis_rev", conflict.IncomingRev),
			slog.Uint64("current_rev", conflict.CurrentRev),
		)
	}

	result.Rejected = append(result.Rejected, resp.Rejected...)
	for _, rejection := range resp.Rejected {
		s.logger.WarnContext(ctx, "Change rejected by server",
			slog.String("entity", rejection.Entity),
			slog.String("id", rejection.ID),
			slog.String("reason", rejection.Reason),
		)
	}

	// Оставшиеся изменения сервер принял без записи (noop) или отклонил
	for key := range sent {
		if err := s.remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) lookup(sent map[changeKey]*models.PendingChange, entity, id string) (changeKey, bool) {
	key := changeKey{kind: models.EntityKind(entity), id: id}
	_, ok := sent[key]
	return key, ok
}

func (s *service) remove(ctx context.Context, key changeKey) error {
	if err := s.outbox.Remove(ctx, key.kind, key.id); err != nil {
		return fmt.Errorf("failed to remove %s/%s from outbox: %w", key.kind, key.id, err)
	}
	return nil
}

// Status возвращает количество изменений в outbox и водяной знак
func (s *service) Status(ctx context.Context) (*Status, error) {
	pending, err := s.outbox.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending changes: %w", err)
	}

	watermark, err := s.metadata.GetWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get watermark: %w", err)
	}

	status := &Status{Pending: len(pending), Watermark: watermark}
	for _, change := range pending {
		if change.IsConflicted() {
			status.Conflicted++
		}
	}
	return status, nil
}

func toAPIChange(change *models.PendingChange) api.Change {
	rev := int64(change.BasisRev)
	updatedAt := change.UpdatedAt.UTC().Truncate(time.Millisecond)

	data := api.ChangeData{
		ID:        change.ID,
		Rev:       &rev,
		UpdatedAt: &updatedAt,
	}
	if change.Op == models.OpUpsert {
		data.Fields = change.Fields
	}

	return api.Change{
		Entity: string(change.Kind),
		Op:     string(change.Op),
		Data:   data,
	}
}
