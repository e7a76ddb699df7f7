package gig

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/event"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
	"github.com/ignatzorin/gig-escrow-backend/internal/usecase/expiry"
)

// CancelDraftUseCase отменяет черновик. Средства ещё не заблокированы,
// поэтому подтверждение из сети не требуется.
type CancelDraftUseCase struct {
	gigs   repository.GigRepository
	expiry *expiry.Manager
	events event.Publisher
}

func NewCancelDraftUseCase(gigs repository.GigRepository, expiryManager *expiry.Manager, events event.Publisher) *CancelDraftUseCase {
	if events == nil {
		events = event.NopPublisher{}
	}
	return &CancelDraftUseCase{gigs: gigs, expiry: expiryManager, events: events}
}

func (uc *CancelDraftUseCase) Execute(ctx context.Context, gigID, actorID uuid.UUID) (*entity.Gig, error) {
	now := uc.expiry.Now()
	gig, err := uc.gigs.Transition(ctx, repository.TransitionParams{
		GigID:  gigID,
		Action: entity.ActionCancel,
		Apply: func(g *entity.Gig) error {
			return g.CancelDraft(actorID, now)
		},
	})
	if err != nil {
		return nil, err
	}

	logger.ForGig(gigID, "cancel_draft").Info("черновик отменён")
	uc.events.GigChanged(ctx, event.NewGigChanged(gig, entity.ActionCancel, "", now))
	return gig, nil
}
