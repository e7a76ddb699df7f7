package gig

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
	"github.com/ignatzorin/gig-escrow-backend/internal/usecase/expiry"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

type GetGigUseCase struct {
	gigs   repository.GigRepository
	expiry *expiry.Manager
}

func NewGetGigUseCase(gigs repository.GigRepository, expiryManager *expiry.Manager) *GetGigUseCase {
	return &GetGigUseCase{gigs: gigs, expiry: expiryManager}
}

// Execute читает задание и, если срок вышел, сначала переводит его в expired.
func (uc *GetGigUseCase) Execute(ctx context.Context, id uuid.UUID) (*entity.Gig, error) {
	gig, err := uc.gigs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return uc.expiry.ExpireIfDue(ctx, gig)
}

type ListGigsUseCase struct {
	gigs   repository.GigRepository
	expiry *expiry.Manager
}

func NewListGigsUseCase(gigs repository.GigRepository, expiryManager *expiry.Manager) *ListGigsUseCase {
	return &ListGigsUseCase{gigs: gigs, expiry: expiryManager}
}

// Execute перед выборкой запускает пакетную проверку сроков, если позволяет
// ограничитель. Ошибка проверки не мешает отдать список.
func (uc *ListGigsUseCase) Execute(ctx context.Context, filter repository.GigFilter) ([]*entity.Gig, int, error) {
	if _, _, err := uc.expiry.Sweep(ctx); err != nil {
		logger.Log.WithError(err).Warn("пакетная проверка сроков не выполнена")
	}

	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return uc.gigs.List(ctx, filter)
}
