package reconcile

import (
	"fmt"

	"github.com/iudanet/changesync/internal/models"
)

// Policy решает, чья версия побеждает при конфликте ревизий.
// Вызывается только для upsert живой записи с расходящейся ревизией.
type Policy interface {
	Name() string
	Resolve(current *models.Record, incoming models.Change) models.Side
}

const (
	PolicyServerWins    = "server-wins"
	PolicyLastWriteWins = "last-write-wins"
)

// ServerWins серверная версия всегда остается (политика по умолчанию)
type ServerWins struct{}

func (ServerWins) Name() string { return PolicyServerWins }

func (ServerWins) Resolve(*models.Record, models.Change) models.Side {
	return models.SideCurrent
}

// LastWriteWins побеждает более позднее изменение.
// Входящее изменение без ClientTime всегда проигрывает,
// при равенстве времени остается серверная версия.
type LastWriteWins struct{}

func (LastWriteWins) Name() string { return PolicyLastWriteWins }

func (LastWriteWins) Resolve(current *models.Record, incoming models.Change) models.Side {
	if incoming.ClientTime == nil {
		return models.SideCurrent
	}
	if incoming.ClientTime.After(current.UpdatedAt) {
		return models.SideIncoming
	}
	return models.SideCurrent
}

// ParsePolicy возвращает политику по имени из конфигурации.
// Пустое имя означает политику по умолчанию.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", PolicyServerWins:
		return ServerWins{}, nil
	case PolicyLastWriteWins:
		return LastWriteWins{}, nil
	default:
		return nil, fmt.Errorf("unknown conflict policy %q", name)
	}
}
