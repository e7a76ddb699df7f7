package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
)

// InsertResult описывает исход вставки в журнал. Повтор подписи не ошибка.
type InsertResult int

const (
	InsertResultInserted InsertResult = iota + 1
	InsertResultAlreadyExists
)

func (r InsertResult) String() string {
	switch r {
	case InsertResultInserted:
		return "inserted"
	case InsertResultAlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

type LedgerRepository interface {
	Insert(ctx context.Context, entry *entity.LedgerEntry) (InsertResult, error)
	FindBySignature(ctx context.Context, signature string) (*entity.LedgerEntry, error)
	ListByGig(ctx context.Context, gigID uuid.UUID) ([]*entity.LedgerEntry, error)
}

type DisputeRepository interface {
	FindByGigID(ctx context.Context, gigID uuid.UUID) (*entity.Dispute, error)
}
