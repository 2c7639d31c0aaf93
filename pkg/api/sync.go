package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// PushRequest представляет батч изменений от клиента
type PushRequest struct {
	ClientRev *int64   `json:"clientRev" validate:"required,gte=0"` // водяной знак локального состояния клиента
	Changes   []Change `json:"changes" validate:"required,dive"`    // изменения в порядке применения
}

// Change представляет одно изменение сущности
type Change struct {
	Entity string     `json:"entity" validate:"required,oneof=product category"` // тип сущности
	Op     string     `json:"op" validate:"required,oneof=upsert delete"`        // операция
	Data   ChangeData `json:"data"`                                              // тело записи
}

// ChangeData тело изменения: id, базовая ревизия и произвольные поля сущности.
// На проводе это плоский JSON объект {"id": ..., "rev": ..., ...fields}.
type ChangeData struct {
	Rev       *int64                     `json:"rev" validate:"required,gte=0,lt=9223372036854775807"` // последняя известная клиенту ревизия
	UpdatedAt *time.Time                 `json:"updatedAt,omitempty"`                                  // время изменения на клиенте
	Fields    map[string]json.RawMessage `json:"-"`                                                    // остальные поля сущности
	ID        string                     `json:"id" validate:"required,max=128"`                       // идентификатор сущности
}

const (
	fieldID        = "id"
	fieldRev       = "rev"
	fieldUpdatedAt = "updatedAt"
)

// UnmarshalJSON разбирает плоский объект data.
// null оставляет ChangeData пустым, отсутствие id и rev ловит валидация.
func (d *ChangeData) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*d = ChangeData{}

	if v, ok := raw[fieldID]; ok {
		if err := json.Unmarshal(v, &d.ID); err != nil {
			return fmt.Errorf("data.id: %w", err)
		}
		delete(raw, fieldID)
	}

	if v, ok := raw[fieldRev]; ok {
		if err := json.Unmarshal(v, &d.Rev); err != nil {
			return fmt.Errorf("data.rev: %w", err)
		}
		delete(raw, fieldRev)
	}

	if v, ok := raw[fieldUpdatedAt]; ok {
		if err := json.Unmarshal(v, &d.UpdatedAt); err != nil {
			return fmt.Errorf("data.updatedAt: %w", err)
		}
		delete(raw, fieldUpdatedAt)
	}

	if len(raw) > 0 {
		d.Fields = raw
	}
	return nil
}

// MarshalJSON собирает плоский объект data обратно
func (d ChangeData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+3)
	for k, v := range d.Fields {
		out[k] = v
	}
	out[fieldID] = d.ID
	if d.Rev != nil {
		out[fieldRev] = *d.Rev
	}
	if d.UpdatedAt != nil {
		out[fieldUpdatedAt] = d.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// PushResponse представляет итог применения батча
type PushResponse struct {
	Conflicts    []Conflict        `json:"conflicts"`          // всегда массив, возможно пустой
	Rejected     []Rejection       `json:"rejected,omitempty"` // недопустимые изменения
	Applied      []AppliedRevision `json:"applied,omitempty"`  // новые ревизии примененных изменений
	AppliedCount int               `json:"appliedCount"`       // количество записанных изменений
	LatestRev    uint64            `json:"latestRev"`          // максимальная ревизия, присвоенная в батче
	Success      bool              `json:"success"`
}

// Conflict описывает конфликт ревизий
type Conflict struct {
	Entity      string `json:"entity"`
	ID          string `json:"id"`
	Decided     string `json:"decided"`     // "current" или "incoming"
	CurrentRev  uint64 `json:"currentRev"`  // ревизия на сервере
	IncomingRev uint64 `json:"incomingRev"` // базовая ревизия клиента
}

// Rejection описывает отклоненное изменение
type Rejection struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// AppliedRevision новая ревизия записи после применения изменения
type AppliedRevision struct {
	Entity   string `json:"entity"`
	ID       string `json:"id"`
	Checksum string `json:"checksum"`
	Rev      uint64 `json:"rev"`
	Deleted  bool   `json:"deleted,omitempty"`
}

// HealthResponse ответ /health
type HealthResponse struct {
	Status  string `json:"status"`            // "ok" или "degraded"
	Version string `json:"version,omitempty"` // версия сервера
}
