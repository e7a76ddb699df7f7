// Package escrow реализует двухфазный протокол операций с эскроу: сервер собирает
// неподписанную транзакцию, клиент подписывает и отправляет её сам, затем
// сервер проверяет подпись в сети и атомарно фиксирует результат.
package escrow

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/event"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow-backend/internal/infrastructure/chain"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow-backend/internal/usecase/expiry"
)

// Chain описывает то, что координатор использует из сетевого адаптера.
type Chain interface {
	EscrowAddress(gigID uuid.UUID) (string, error)
	SignatureStatus(ctx context.Context, signature string) (chain.SignatureStatus, error)
	VerifyAction(ctx context.Context, signature string, req chain.VerifyRequest) (*chain.VerifiedAction, error)
	BuildUnsigned(ctx context.Context, req chain.BuildRequest) (*chain.UnsignedTx, error)
}

type ConfigSource interface {
	Get(ctx context.Context) (entity.PlatformConfig, error)
}

type Coordinator struct {
	gigs   repository.GigRepository
	ledger repository.LedgerRepository
	users  repository.UserRepository
	config ConfigSource
	chain  Chain
	expiry *expiry.Manager
	depth  chain.Depth
	events event.Publisher
}

type Deps struct {
	Gigs   repository.GigRepository
	Ledger repository.LedgerRepository
	Users  repository.UserRepository
	Config ConfigSource
	Chain  Chain
	Expiry *expiry.Manager
	Events event.Publisher
	// Depth задаёт требуемую глубину подтверждения, см. chain.DepthForNetwork.
	Depth chain.Depth
}

func NewCoordinator(d Deps) *Coordinator {
	events := d.Events
	if events == nil {
		events = event.NopPublisher{}
	}
	return &Coordinator{
		gigs:   d.Gigs,
		ledger: d.Ledger,
		users:  d.Users,
		config: d.Config,
		chain:  d.Chain,
		expiry: d.Expiry,
		depth:  d.Depth,
		events: events,
	}
}

// Payload содержит данные операции помимо подписи.
type Payload struct {
	Proof  *entity.Proof
	Reason string
	Winner string
}

// validatePayload проверяет то, что не зависит от состояния задания.
func validatePayload(action entity.Action, actor entity.Actor, p Payload) error {
	if !action.IsChainGated() {
		return apperror.New(apperror.ErrCodeValidation, "неизвестная операция")
	}
	switch action {
	case entity.ActionSubmit:
		if p.Proof == nil {
			return apperror.New(apperror.ErrCodeValidation, "нужно доказательство выполнения")
		}
		return p.Proof.Validate()
	case entity.ActionDispute:
		_, err := entity.NewDispute(uuid.Nil, actor.ID, p.Reason, time.Time{})
		return err
	case entity.ActionResolve:
		if !actor.IsAdmin() {
			return apperror.New(apperror.ErrCodeForbidden, "разрешить спор может только администратор")
		}
		_, err := entity.ParseDisputeWinner(p.Winner)
		return err
	}
	return nil
}

// checkPrecondition проверяет операцию над текущим состоянием без изменений.
func checkPrecondition(g *entity.Gig, action entity.Action, actor uuid.UUID, now time.Time, grace time.Duration) error {
	switch action {
	case entity.ActionPublish:
		return g.CheckPublish(actor)
	case entity.ActionAccept:
		return g.CheckAccept(actor, now, grace)
	case entity.ActionSubmit:
		return g.CheckSubmit(actor, now, grace)
	case entity.ActionApprove:
		return g.CheckApprove(actor)
	case entity.ActionDispute:
		return g.CheckDispute(actor)
	case entity.ActionResolve:
		return g.CheckResolve()
	case entity.ActionCancel:
		return g.CheckCancel(actor)
	case entity.ActionRefund:
		return g.CheckRefund(actor)
	}
	return apperror.New(apperror.ErrCodeValidation, "неизвестная операция")
}

// apply выполняет переход над заданием, перечитанным под блокировкой.
func apply(g *entity.Gig, action entity.Action, actor uuid.UUID, p Payload, now time.Time, grace time.Duration) error {
	switch action {
	case entity.ActionPublish:
		return g.Publish(actor, now)
	case entity.ActionAccept:
		return g.Accept(actor, now, grace)
	case entity.ActionSubmit:
		return g.SubmitProof(actor, *p.Proof, now, grace)
	case entity.ActionApprove:
		return g.Approve(actor, now)
	case entity.ActionDispute:
		return g.OpenDispute(actor, now)
	case entity.ActionResolve:
		return g.Resolve(now)
	case entity.ActionCancel:
		return g.Cancel(actor, now)
	case entity.ActionRefund:
		// статус не меняется, однократность держит журнал
		return g.CheckRefund(actor)
	}
	return apperror.New(apperror.ErrCodeValidation, "неизвестная операция")
}

// loadCurrent читает задание и сразу применяет к нему проверку срока,
// чтобы возврат по истёкшему заданию не ждал отдельного чтения.
func (c *Coordinator) loadCurrent(ctx context.Context, gigID uuid.UUID) (*entity.Gig, error) {
	g, err := c.gigs.FindByID(ctx, gigID)
	if err != nil {
		return nil, err
	}
	return c.expiry.ExpireIfDue(ctx, g)
}

func proofHash(p *entity.Proof) [32]byte {
	if p == nil {
		return [32]byte{}
	}
	b, _ := json.Marshal(p)
	return sha256.Sum256(b)
}

// amounts считает суммы для журнала. Движение денег пишется полной суммой эскроу
// (оплата плюс комиссия), шаги без денег пишутся с нулями.
func amounts(kind entity.LedgerKind, fee valueobject.FeeBreakdown) (valueobject.Lamports, valueobject.Lamports) {
	if !kind.MovesMoney() {
		return 0, 0
	}
	return fee.TotalLocked, fee.Fee
}
