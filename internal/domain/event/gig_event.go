package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
)

// GigChanged сообщает, что задание перешло в новый статус или получило запись в журнале.
type GigChanged struct {
	GigID      uuid.UUID             `json:"gig_id"`
	Action     entity.Action         `json:"action"`
	Status     valueobject.GigStatus `json:"status"`
	Signature  string                `json:"signature,omitempty"`
	At         time.Time             `json:"at"`
	Recipients []uuid.UUID           `json:"-"`
}

func NewGigChanged(gig *entity.Gig, action entity.Action, signature string, at time.Time) GigChanged {
	recipients := []uuid.UUID{gig.PosterID}
	if gig.WorkerID != nil {
		recipients = append(recipients, *gig.WorkerID)
	}
	return GigChanged{
		GigID:      gig.ID,
		Action:     action,
		Status:     gig.Status,
		Signature:  signature,
		At:         at,
		Recipients: recipients,
	}
}

// Publisher доставляет события. Реализация не должна блокировать вызывающего.
type Publisher interface {
	GigChanged(ctx context.Context, e GigChanged)
}

type NopPublisher struct{}

func (NopPublisher) GigChanged(context.Context, GigChanged) {}
