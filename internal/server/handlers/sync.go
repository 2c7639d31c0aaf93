package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/iudanet/changesync/internal/models"
	"github.com/iudanet/changesync/internal/server/events"
	"github.com/iudanet/changesync/internal/validation"
	"github.com/iudanet/changesync/pkg/api"
)

const (
	// DefaultMaxBodyBytes лимит тела запроса по умолчанию
	DefaultMaxBodyBytes = 1 << 20
	// DefaultPublishTimeout лимит времени на публикацию события
	DefaultPublishTimeout = 5 * time.Second

	// BatchIDHeader заголовок с идентификатором батча
	BatchIDHeader = "X-Batch-Id"
)

var tracer = otel.Tracer("github.com/iudanet/changesync/internal/server/handlers")

//go:generate moq -out sync_mock.go . BatchApplier

// BatchApplier применяет батч изменений
type BatchApplier interface {
	ApplyBatch(ctx context.Context, batch *models.ChangeBatch) (*models.BatchResult, error)
}

// RequestValidator проверяет запрос до открытия транзакции
type RequestValidator interface {
	ValidateRequest(req *api.PushRequest) error
}

// SyncConfig настройки обработчика push
type SyncConfig struct {
	MaxBodyBytes   int64
	PublishTimeout time.Duration
}

// SyncHandler handles push requests
type SyncHandler struct {
	logger    *slog.Logger
	applier   BatchApplier
	validator RequestValidator
	publisher events.Publisher
	cfg       SyncConfig
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(
	logger *slog.Logger,
	applier BatchApplier,
	validator RequestValidator,
	publisher events.Publisher,
	cfg SyncConfig,
) *SyncHandler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}
	return &SyncHandler{
		logger:    logger,
		applier:   applier,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Push обрабатывает POST /sync/push
// Применяет батч изменений и возвращает итог с конфликтами
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handlers.Push")
	defer span.End()

	batchID := ulid.Make().String()
	w.Header().Set(BatchIDHeader, batchID)
	span.SetAttributes(attribute.String("batch.id", batchID))

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)

	// Парсим request body
	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.WarnContext(ctx, "push request body too large",
				slog.String("batch_id", batchID),
				slog.Int64("limit", maxErr.Limit))
			sendError(w, h.logger, api.ErrorResponse{Error: "Request body too large"}, http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.WarnContext(ctx, "failed to decode push request",
			slog.String("batch_id", batchID),
			slog.Any("error", err))
		sendError(w, h.logger, api.ErrorResponse{Error: "Invalid request body", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	// Валидация до открытия транзакции
	if err := h.validator.ValidateRequest(&req); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			h.logger.InfoContext(ctx, "push request validation failed",
				slog.String("batch_id", batchID),
				slog.Int("errors", len(verrs)))
			sendError(w, h.logger, api.ErrorResponse{Error: "Validation failed", Details: verrs}, http.StatusBadRequest)
			return
		}
		h.logger.ErrorContext(ctx, "failed to validate push request", slog.Any("error", err))
		sendError(w, h.logger, api.ErrorResponse{Error: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	batch, err := toBatch(batchID, &req)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to convert push request",
			slog.String("batch_id", batchID),
			slog.Any("error", err))
		sendError(w, h.logger, api.ErrorResponse{Error: "Invalid request body", Message: err.Error()}, http.StatusBadRequest)
		return
	}

	result, err := h.applier.ApplyBatch(ctx, batch)
	if err != nil {
		span.RecordError(err)
		h.logger.ErrorContext(ctx, "failed to apply batch",
			slog.String("batch_id", batchID),
			slog.Any("error", err))
		sendError(w, h.logger, api.ErrorResponse{Error: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "push completed",
		slog.String("batch_id", batchID),
		slog.Int64("client_rev", batch.ClientRev),
		slog.Int("changes", len(batch.Changes)),
		slog.Int("applied", result.AppliedCount),
		slog.Int("conflicts", len(result.Conflicts)),
		slog.Int("rejected", len(result.Rejected)),
		slog.Uint64("latest_rev", result.LatestRev))

	h.publish(ctx, batchID, result)

	sendJSON(w, h.logger, toResponse(result), http.StatusOK)
}

// publish отправляет событие после фиксации транзакции.
// Отмена запроса не должна обрывать публикацию, поэтому контекст отвязан
// от запроса и ограничен таймаутом.
func (h *SyncHandler) publish(ctx context.Context, batchID string, result *models.BatchResult) {
	if h.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.PublishTimeout)
	defer cancel()

	stats := events.PushStats{
		AppliedCount:   result.AppliedCount,
		ConflictsCount: len(result.Conflicts),
	}
	if err := h.publisher.Publish(pubCtx, events.TypePushCompleted, stats); err != nil {
		h.logger.ErrorContext(ctx, "failed to publish push event",
			slog.String("batch_id", batchID),
			slog.Any("error", err))
	}
}

// toBatch переводит провалидированный запрос в доменный батч
func toBatch(batchID string, req *api.PushRequest) (*models.ChangeBatch, error) {
	batch := &models.ChangeBatch{
		ID:      batchID,
		Changes: make([]models.Change, 0, len(req.Changes)),
	}
	if req.ClientRev != nil {
		batch.ClientRev = *req.ClientRev
	}

	for i, c := range req.Changes {
		kind, err := models.ParseEntityKind(c.Entity)
		if err != nil {
			return nil, fmt.Errorf("changes[%d]: %w", i, err)
		}
		op, err := models.ParseOp(c.Op)
		if err != nil {
			return nil, fmt.Errorf("changes[%d]: %w", i, err)
		}

		ch := models.Change{
			Kind:       kind,
			Op:         op,
			ID:         c.Data.ID,
			ClientTime: c.Data.UpdatedAt,
		}
		if c.Data.Rev != nil && *c.Data.Rev > 0 {
			ch.BasisRev = uint64(*c.Data.Rev)
		}

		if op == models.OpUpsert {
			ch.Payload, err = decodeFields(c.Data.Fields)
			if err != nil {
				return nil, fmt.Errorf("changes[%d].data: %w", i, err)
			}
		}

		batch.Changes = append(batch.Changes, ch)
	}

	return batch, nil
}

// decodeFields декодирует поля с сохранением точного представления чисел
func decodeFields(fields map[string]json.RawMessage) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, raw := range fields {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func toResponse(result *models.BatchResult) api.PushResponse {
	resp := api.PushResponse{
		Success:      true,
		AppliedCount: result.AppliedCount,
		LatestRev:    result.LatestRev,
		Conflicts:    make([]api.Conflict, 0, len(result.Conflicts)),
	}

	for _, c := range result.Conflicts {
		resp.Conflicts = append(resp.Conflicts, api.Conflict{
			Entity:      string(c.Kind),
			ID:          c.ID,
			Decided:     string(c.Decided),
			CurrentRev:  c.CurrentRev,
			IncomingRev: c.IncomingRev,
		})
	}

	for _, rj := range result.Rejected {
		resp.Rejected = append(resp.Rejected, api.Rejection{
			Entity: string(rj.Kind),
			ID:     rj.ID,
			Reason: rj.Reason,
		})
	}

	for _, a := range result.Applied {
		resp.Applied = append(resp.Applied, api.AppliedRevision{
			Entity:   string(a.Kind),
			ID:       a.ID,
			Rev:      a.Rev,
			Checksum: a.Checksum,
			Deleted:  a.Deleted,
		})
	}

	return resp
}
