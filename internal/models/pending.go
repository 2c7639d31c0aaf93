package models

import (
	"encoding/json"
	"time"
)

// PendingChange локальное изменение клиента, ожидающее отправки на сервер.
// На одну пару (Kind, ID) в outbox хранится не больше одного изменения.
type PendingChange struct {
	UpdatedAt time.Time                  `json:"updatedAt"`          // время последней локальной правки
	Fields    map[string]json.RawMessage `json:"fields,omitempty"`   // поля сущности (upsert)
	Conflict  *PendingConflict           `json:"conflict,omitempty"` // последний отказ сервера
	Kind      EntityKind                 `json:"entity"`
	ID        string                     `json:"id"`
	Op        Op                         `json:"op"`
	BasisRev  uint64                     `json:"basisRev"` // ревизия, на которой основана правка
	Seq       uint64                     `json:"seq"`      // порядок постановки в outbox
}

// PendingConflict серверная ревизия, с которой конфликтует изменение
type PendingConflict struct {
	DetectedAt time.Time `json:"detectedAt"`
	CurrentRev uint64    `json:"currentRev"`
}

// IsConflicted returns true if the server rejected the change's basis.
func (p *PendingChange) IsConflicted() bool {
	return p.Conflict != nil
}
