package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// TypePushCompleted событие успешного применения батча
const TypePushCompleted = "sync.push.completed"

// PushStats данные события TypePushCompleted.
// Только агрегаты, без payload сущностей.
type PushStats struct {
	AppliedCount   int `json:"appliedCount"`
	ConflictsCount int `json:"conflictsCount"`
}

// Event конверт события для внешних подписчиков
type Event struct {
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
	ID         string    `json:"id"` // ULID, упорядочен по времени
	Type       string    `json:"type"`
}

// NewEvent создает конверт события с новым ID
func NewEvent(eventType string, data any) Event {
	return Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher отправляет события после фиксации транзакции.
// Ошибка публикации не влияет на уже примененный батч.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// LogPublisher пишет события в лог. Используется, когда брокер не настроен.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher that only logs events
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, eventType string, data any) error {
	p.logger.InfoContext(ctx, "Event published",
		slog.String("type", eventType),
		slog.Any("data", data),
	)
	return nil
}

// Multi рассылает событие всем publisher'ам.
// Ошибка одного не мешает остальным.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, eventType string, data any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, eventType, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
