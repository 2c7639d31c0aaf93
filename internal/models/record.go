package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityKind тип синхронизируемой сущности
type EntityKind string

const (
	EntityProduct  EntityKind = "product"
	EntityCategory EntityKind = "category"
)

// EntityKinds перечисляет все поддерживаемые типы сущностей
var EntityKinds = []EntityKind{EntityProduct, EntityCategory}

// ParseEntityKind проверяет, что тип сущности поддерживается
func ParseEntityKind(s string) (EntityKind, error) {
	for _, kind := range EntityKinds {
		if string(kind) == s {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Op операция над сущностью
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// ParseOp проверяет, что операция поддерживается
func ParseOp(s string) (Op, error) {
	switch Op(s) {
	case OpUpsert, OpDelete:
		return Op(s), nil
	default:
		return "", fmt.Errorf("unknown op %q", s)
	}
}

// Record представляет авторитетную серверную версию сущности.
// Rev монотонно растет при каждой принятой записи (включая удаление).
// Запись с DeletedAt != nil является tombstone и больше не может быть изменена.
type Record struct {
	CreatedAt time.Time       `json:"createdAt"`           // CreatedAt время первой записи на сервере
	UpdatedAt time.Time       `json:"updatedAt"`           // UpdatedAt время последней принятой записи
	DeletedAt *time.Time      `json:"deletedAt,omitempty"` // DeletedAt время удаления (tombstone)
	Kind      EntityKind      `json:"entity"`              // Kind тип сущности
	ID        string          `json:"id"`                  // ID идентификатор, уникальный в рамках Kind
	Checksum  string          `json:"checksum"`            // Checksum дайджест канонического payload
	UpdatedBy string          `json:"updatedBy"`           // UpdatedBy provenance последней записи
	Data      json.RawMessage `json:"data"`                // Data канонический JSON доменных полей
	Rev       uint64          `json:"rev"`                 // Rev серверная ревизия
}

// IsDeleted returns true if the record is a tombstone.
func (r *Record) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.Data != nil {
		c.Data = make(json.RawMessage, len(r.Data))
		copy(c.Data, r.Data)
	}
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// Change одна предлагаемая клиентом мутация
type Change struct {
	ClientTime *time.Time     // ClientTime время изменения на клиенте (опционально)
	Payload    map[string]any // Payload доменные поля (только для upsert)
	Kind       EntityKind
	Op         Op
	ID         string
	BasisRev   uint64 // BasisRev последняя известная клиенту ревизия
}

// ChangeBatch единица отправки: упорядоченный набор изменений,
// применяемый в одной транзакции
type ChangeBatch struct {
	ID        string // ID идентификатор батча для логов и трассировки
	Changes   []Change
	ClientRev int64
}

// Side сторона, данные которой остаются авторитетными
type Side string

const (
	SideCurrent  Side = "current"
	SideIncoming Side = "incoming"
)

// Conflict описывает расхождение базовой ревизии клиента и серверной ревизии
type Conflict struct {
	Kind        EntityKind `json:"entity"`
	ID          string     `json:"id"`
	Decided     Side       `json:"decided"`
	CurrentRev  uint64     `json:"currentRev"`
	IncomingRev uint64     `json:"incomingRev"`
}

// RejectReasonTombstoned upsert в удаленную запись
const RejectReasonTombstoned = "tombstoned"

// Rejection изменение, отклоненное как недопустимое (не конфликт)
type Rejection struct {
	Kind   EntityKind `json:"entity"`
	ID     string     `json:"id"`
	Reason string     `json:"reason"`
}

// AppliedChange новая ревизия, присвоенная примененному изменению
type AppliedChange struct {
	Kind     EntityKind `json:"entity"`
	ID       string     `json:"id"`
	Checksum string     `json:"checksum"`
	Rev      uint64     `json:"rev"`
	Deleted  bool       `json:"deleted,omitempty"`
}

// BatchResult итог применения батча
type BatchResult struct {
	Conflicts    []Conflict
	Rejected     []Rejection
	Applied      []AppliedChange
	AppliedCount int
	NoopCount    int
	LatestRev    uint64
}
