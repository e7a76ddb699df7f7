package gig

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
)

// ListTransactionsUseCase отдаёт журнал задания его участникам и администратору.
type ListTransactionsUseCase struct {
	gigs   repository.GigRepository
	ledger repository.LedgerRepository
}

func NewListTransactionsUseCase(gigs repository.GigRepository, ledger repository.LedgerRepository) *ListTransactionsUseCase {
	return &ListTransactionsUseCase{gigs: gigs, ledger: ledger}
}

func (uc *ListTransactionsUseCase) Execute(ctx context.Context, gigID uuid.UUID, actor entity.Actor) ([]*entity.LedgerEntry, error) {
	if _, err := loadForParticipant(ctx, uc.gigs, gigID, actor); err != nil {
		return nil, err
	}
	return uc.ledger.ListByGig(ctx, gigID)
}

type GetDisputeUseCase struct {
	gigs     repository.GigRepository
	disputes repository.DisputeRepository
}

func NewGetDisputeUseCase(gigs repository.GigRepository, disputes repository.DisputeRepository) *GetDisputeUseCase {
	return &GetDisputeUseCase{gigs: gigs, disputes: disputes}
}

func (uc *GetDisputeUseCase) Execute(ctx context.Context, gigID uuid.UUID, actor entity.Actor) (*entity.Dispute, error) {
	if _, err := loadForParticipant(ctx, uc.gigs, gigID, actor); err != nil {
		return nil, err
	}
	return uc.disputes.FindByGigID(ctx, gigID)
}

func loadForParticipant(ctx context.Context, gigs repository.GigRepository, gigID uuid.UUID, actor entity.Actor) (*entity.Gig, error) {
	gig, err := gigs.FindByID(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !gig.IsPoster(actor.ID) && !gig.IsWorker(actor.ID) {
		return nil, apperror.ErrForbidden
	}
	return gig, nil
}
