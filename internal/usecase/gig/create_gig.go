package gig

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
)

// EscrowAddresser вычисляет адрес эскроу задания.
type EscrowAddresser interface {
	EscrowAddress(gigID uuid.UUID) (string, error)
}

type CreateGigInput struct {
	PosterID               uuid.UUID
	Title                  string
	Category               string
	City                   string
	Address                string
	PaymentLamports        int64
	AcceptDeadline         *time.Time
	CompletionDurationSecs int64
}

type CreateGigUseCase struct {
	gigs       repository.GigRepository
	escrow     EscrowAddresser
	clock      clock.Clock
	maxPayment int64
}

func NewCreateGigUseCase(gigs repository.GigRepository, escrow EscrowAddresser, clk clock.Clock, maxPayment int64) *CreateGigUseCase {
	if clk == nil {
		clk = clock.New()
	}
	return &CreateGigUseCase{gigs: gigs, escrow: escrow, clock: clk, maxPayment: maxPayment}
}

// Execute создаёт черновик. Адрес эскроу сохраняется сразу и при сборке
// транзакций вычисляется заново теми же сидами.
func (uc *CreateGigUseCase) Execute(ctx context.Context, input CreateGigInput) (*entity.Gig, error) {
	gig, err := entity.NewGig(entity.NewGigParams{
		PosterID:               input.PosterID,
		Title:                  input.Title,
		Category:               input.Category,
		City:                   input.City,
		Address:                input.Address,
		PaymentLamports:        input.PaymentLamports,
		MaxPaymentLamports:     uc.maxPayment,
		AcceptDeadline:         input.AcceptDeadline,
		CompletionDurationSecs: input.CompletionDurationSecs,
	}, uc.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	addr, err := uc.escrow.EscrowAddress(gig.ID)
	if err != nil {
		return nil, err
	}
	gig.EscrowAddress = addr

	if err := uc.gigs.Create(ctx, gig); err != nil {
		return nil, err
	}

	logger.ForGig(gig.ID, "create").WithField("escrow", addr).Info("черновик задания создан")
	return gig, nil
}
