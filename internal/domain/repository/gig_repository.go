package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
)

type GigFilter struct {
	Status   valueobject.GigStatus
	PosterID *uuid.UUID
	WorkerID *uuid.UUID
	City     string
	Category string
	Limit    int
	Offset   int
}

// TransitionParams описывает одну атомарную смену статуса.
//
// Apply получает задание, перечитанное под блокировкой строки, проверяет
// предусловие и меняет его. Ledger, Dispute и Resolution записываются в той же
// транзакции; nil означает, что соответствующей записи нет.
type TransitionParams struct {
	GigID  uuid.UUID
	Action entity.Action
	Apply  func(g *entity.Gig) error

	Ledger     *entity.LedgerEntry
	Dispute    *entity.Dispute
	Resolution *entity.DisputeResolution

	// OncePerGig запрещает вторую запись того же вида по заданию,
	// даже если статус при этом не меняется (возврат из истёкшего).
	OncePerGig bool
}

type GigRepository interface {
	Create(ctx context.Context, gig *entity.Gig) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Gig, error)
	List(ctx context.Context, filter GigFilter) ([]*entity.Gig, int, error)

	Transition(ctx context.Context, p TransitionParams) (*entity.Gig, error)

	// ExpireOne переводит одно задание в expired, если оно истекло на момент now.
	ExpireOne(ctx context.Context, id uuid.UUID, now time.Time, grace time.Duration) (bool, error)
	// ExpireDue делает то же одним запросом для всех заданий.
	ExpireDue(ctx context.Context, now time.Time, grace time.Duration) (int64, error)
}
