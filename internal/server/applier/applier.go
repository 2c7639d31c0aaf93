package applier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/changesync/internal/crypto"
	"github.com/iudanet/changesync/internal/models"
	"github.com/iudanet/changesync/internal/reconcile"
	"github.com/iudanet/changesync/internal/server/storage"
)

// DefaultProvenance значение UpdatedBy по умолчанию
const DefaultProvenance = "local"

var tracer = otel.Tracer("github.com/iudanet/changesync/internal/server/applier")

// Store транзакционная часть хранилища, нужная applier
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error
}

// Applier применяет батч изменений в одной транзакции хранилища
type Applier struct {
	store      Store
	policy     reconcile.Policy
	logger     *slog.Logger
	now        func() time.Time
	provenance string
}

// Option настраивает Applier
type Option func(*Applier)

// WithPolicy задает политику разрешения конфликтов
func WithPolicy(policy reconcile.Policy) Option {
	return func(a *Applier) {
		if policy != nil {
			a.policy = policy
		}
	}
}

// WithProvenance задает значение UpdatedBy для записываемых версий
func WithProvenance(provenance string) Option {
	return func(a *Applier) {
		if provenance != "" {
			a.provenance = provenance
		}
	}
}

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(a *Applier) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates a new Applier
func New(store Store, logger *slog.Logger, opts ...Option) *Applier {
	a := &Applier{
		store:      store,
		policy:     reconcile.ServerWins{},
		logger:     logger,
		now:        time.Now,
		provenance: DefaultProvenance,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Policy возвращает используемую политику конфликтов
func (a *Applier) Policy() reconcile.Policy {
	return a.policy
}

// ApplyBatch применяет изменения батча по порядку в одной транзакции.
// Конфликты и отклоненные изменения возвращаются в результате.
// Любая другая ошибка откатывает весь батч.
func (a *Applier) ApplyBatch(ctx context.Context, batch *models.ChangeBatch) (*models.BatchResult, error) {
	ctx, span := tracer.Start(ctx, "applier.ApplyBatch", trace.WithAttributes(
		attribute.String("batch.id", batch.ID),
		attribute.Int("batch.size", len(batch.Changes)),
		attribute.Int64("batch.client_rev", batch.ClientRev),
		attribute.String("policy", a.policy.Name()),
	))
	defer span.End()

	var result *models.BatchResult

	err := a.store.WithinTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		// Хранилище может повторить fn (MongoDB), поэтому результат собирается заново
		result = &models.BatchResult{Conflicts: []models.Conflict{}}
		now := a.now().UTC()

		for i := range batch.Changes {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := a.applyChange(ctx, tx, batch, &batch.Changes[i], now, result); err != nil {
				return fmt.Errorf("change %d (%s/%s): %w", i, batch.Changes[i].Kind, batch.Changes[i].ID, err)
			}
		}
		return nil
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch rolled back")
		return nil, fmt.Errorf("failed to apply batch %s: %w", batch.ID, err)
	}

	span.SetAttributes(
		attribute.Int("result.applied", result.AppliedCount),
		attribute.Int("result.conflicts", len(result.Conflicts)),
		attribute.Int("result.rejected", len(result.Rejected)),
		attribute.Int("result.noop", result.NoopCount),
		attribute.Int64("result.latest_rev", int64(result.LatestRev)),
	)

	return result, nil
}

func (a *Applier) applyChange(
	ctx context.Context,
	tx storage.Tx,
	batch *models.ChangeBatch,
	ch *models.Change,
	now time.Time,
	result *models.BatchResult,
) error {
	current, err := tx.FindByKey(ctx, ch.Kind, ch.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrRecordNotFound) {
			return fmt.Errorf("failed to read current record: %w", err)
		}
		current = nil
	}

	decision := reconcile.Reconcile(current, *ch, a.policy)

	a.logger.DebugContext(ctx, "Change reconciled",
		slog.String("batch_id", batch.ID),
		slog.String("entity", string(ch.Kind)),
		slog.String("id", ch.ID),
		slog.String("op", string(ch.Op)),
		slog.Uint64("basis_rev", ch.BasisRev),
		slog.String("action", decision.Action.String()),
		slog.Uint64("new_rev", decision.NewRev),
	)

	switch decision.Action {
	case reconcile.ActionApply:
		rec, err := a.buildRecord(current, ch, decision.NewRev, now)
		if err != nil {
			return err
		}

		var expectedRev uint64
		if current != nil {
			expectedRev = current.Rev
		}
		if err := tx.Upsert(ctx, rec, expectedRev); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}

		result.AppliedCount++
		result.LatestRev = max(result.LatestRev, rec.Rev)
		result.Applied = append(result.Applied, models.AppliedChange{
			Kind:     rec.Kind,
			ID:       rec.ID,
			Rev:      rec.Rev,
			Checksum: rec.Checksum,
			Deleted:  rec.IsDeleted(),
		})
		// Входящая версия победила по политике, но клиент должен знать о расхождении
		if decision.Conflict != nil {
			result.Conflicts = append(result.Conflicts, *decision.Conflict)
		}

	case reconcile.ActionConflict:
		result.Conflicts = append(result.Conflicts, *decision.Conflict)

	case reconcile.ActionInvalid:
		result.Rejected = append(result.Rejected, models.Rejection{
			Kind:   ch.Kind,
			ID:     ch.ID,
			Reason: models.RejectReasonTombstoned,
		})

	case reconcile.ActionNoop:
		result.NoopCount++
	}

	return nil
}

// buildRecord собирает новую версию записи.
// Upsert пишет канонический payload изменения; delete сохраняет последние данные
// записи, а для неизвестной записи создает tombstone только с id.
func (a *Applier) buildRecord(current *models.Record, ch *models.Change, newRev uint64, now time.Time) (*models.Record, error) {
	rec := &models.Record{
		Kind:      ch.Kind,
		ID:        ch.ID,
		Rev:       newRev,
		UpdatedBy: a.provenance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if current != nil {
		rec.CreatedAt = current.CreatedAt
	}

	var canonical []byte
	var err error

	switch {
	case ch.Op == models.OpUpsert:
		canonical, err = crypto.Canonicalize(models.CanonicalPayload(ch.ID, ch.Payload))
	case current != nil && len(current.Data) > 0:
		canonical, err = crypto.CanonicalizeJSON(current.Data)
	default:
		canonical, err = crypto.Canonicalize(models.CanonicalPayload(ch.ID, nil))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize payload: %w", err)
	}

	if ch.Op == models.OpDelete {
		deletedAt := now
		rec.DeletedAt = &deletedAt
	}

	rec.Data = json.RawMessage(canonical)
	rec.Checksum = crypto.SumCanonical(canonical)

	return rec, nil
}
