package valueobject

import "github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"

type GigStatus string

const (
	GigStatusDraft     GigStatus = "draft"
	GigStatusOpen      GigStatus = "open"
	GigStatusAccepted  GigStatus = "accepted"
	GigStatusSubmitted GigStatus = "submitted"
	GigStatusCompleted GigStatus = "completed"
	GigStatusDisputed  GigStatus = "disputed"
	GigStatusResolved  GigStatus = "resolved"
	GigStatusExpired   GigStatus = "expired"
	GigStatusCancelled GigStatus = "cancelled"
)

// AllGigStatuses перечисляет статусы в порядке жизненного цикла.
var AllGigStatuses = []GigStatus{
	GigStatusDraft,
	GigStatusOpen,
	GigStatusAccepted,
	GigStatusSubmitted,
	GigStatusCompleted,
	GigStatusDisputed,
	GigStatusResolved,
	GigStatusExpired,
	GigStatusCancelled,
}

var gigTransitions = map[GigStatus][]GigStatus{
	GigStatusDraft:     {GigStatusOpen, GigStatusCancelled},
	GigStatusOpen:      {GigStatusAccepted, GigStatusExpired, GigStatusCancelled},
	GigStatusAccepted:  {GigStatusSubmitted, GigStatusDisputed, GigStatusExpired},
	GigStatusSubmitted: {GigStatusCompleted, GigStatusDisputed},
	GigStatusDisputed:  {GigStatusResolved},
	GigStatusCompleted: {},
	GigStatusResolved:  {},
	GigStatusExpired:   {},
	GigStatusCancelled: {},
}

func (s GigStatus) IsValid() bool {
	_, ok := gigTransitions[s]
	return ok
}

func (s GigStatus) CanTransitionTo(newStatus GigStatus) bool {
	allowed, ok := gigTransitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

func (s GigStatus) IsTerminal() bool {
	allowed, ok := gigTransitions[s]
	return ok && len(allowed) == 0
}

func (s GigStatus) String() string {
	return string(s)
}

func NewGigStatus(status string) (GigStatus, error) {
	s := GigStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус задания")
	}
	return s, nil
}
