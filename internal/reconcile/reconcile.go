package reconcile

import (
	"github.com/iudanet/changesync/internal/models"
)

// Action результат сверки изменения с текущей серверной записью
type Action int

const (
	// ActionApply изменение записывается с новой ревизией
	ActionApply Action = iota
	// ActionConflict изменение отклонено, серверная версия остается
	ActionConflict
	// ActionInvalid изменение недопустимо (upsert в tombstone)
	ActionInvalid
	// ActionNoop повторное удаление, запись не меняется
	ActionNoop
)

func (a Action) String() string {
	switch a {
	case ActionApply:
		return "apply"
	case ActionConflict:
		return "conflict"
	case ActionInvalid:
		return "invalid"
	case ActionNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// Decision решение по одному изменению.
// Conflict заполнен, если базовая ревизия клиента расходится с серверной:
// при ActionConflict победила серверная версия, при ActionApply входящая.
type Decision struct {
	Conflict *models.Conflict
	NewRev   uint64
	Action   Action
}

// NextRev вычисляет следующую ревизию.
// Базовая ревизия клиента может опережать серверную (например, после
// восстановления сервера из бэкапа), поэтому берется максимум.
func NextRev(current *models.Record, basisRev uint64) uint64 {
	var rev uint64
	if current != nil {
		rev = current.Rev
	}
	return max(rev, basisRev) + 1
}

// Reconcile сверяет изменение с текущей записью (nil, если записи нет).
// Функция чистая: не обращается к хранилищу и не зависит от времени.
func Reconcile(current *models.Record, change models.Change, policy Policy) Decision {
	newRev := NextRev(current, change.BasisRev)

	if change.Op == models.OpDelete {
		// Удаление tombstone идемпотентно
		if current != nil && current.IsDeleted() {
			return Decision{Action: ActionNoop, NewRev: current.Rev}
		}
		// Удаление применяется независимо от базовой ревизии
		return Decision{Action: ActionApply, NewRev: newRev}
	}

	if current == nil {
		return Decision{Action: ActionApply, NewRev: newRev}
	}

	// Tombstone не может быть воскрешен
	if current.IsDeleted() {
		return Decision{Action: ActionInvalid, NewRev: current.Rev}
	}

	if current.Rev == change.BasisRev {
		return Decision{Action: ActionApply, NewRev: newRev}
	}

	if policy == nil {
		policy = ServerWins{}
	}

	conflict := &models.Conflict{
		Kind:        change.Kind,
		ID:          change.ID,
		CurrentRev:  current.Rev,
		IncomingRev: change.BasisRev,
	}

	conflict.Decided = policy.Resolve(current, change)
	if conflict.Decided == models.SideIncoming {
		return Decision{Action: ActionApply, NewRev: newRev, Conflict: conflict}
	}

	conflict.Decided = models.SideCurrent
	return Decision{Action: ActionConflict, NewRev: current.Rev, Conflict: conflict}
}
