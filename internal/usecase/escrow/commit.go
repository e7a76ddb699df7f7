package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/event"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow-backend/internal/infrastructure/chain"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
	"github.com/ignatzorin/gig-escrow-backend/internal/metrics"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

type CommitInput struct {
	GigID     uuid.UUID
	Action    entity.Action
	Actor     entity.Actor
	Signature string
	Payload   Payload
}

// Commit проверяет подпись в сети и одной транзакцией БД меняет статус,
// пишет журнал и спор. Повтор с той же подписью даёт ErrDuplicateSignature
// и ничего не меняет.
func (c *Coordinator) Commit(ctx context.Context, in CommitInput) (gig *entity.Gig, err error) {
	defer func() {
		metrics.EscrowCommits.WithLabelValues(string(in.Action), outcome(err)).Inc()
	}()

	if err := validatePayload(in.Action, in.Actor, in.Payload); err != nil {
		return nil, err
	}
	if _, err := chain.ParseSignature(in.Signature); err != nil {
		return nil, err
	}

	// Уже учтённая подпись не требует похода в сеть.
	if _, err := c.ledger.FindBySignature(ctx, in.Signature); err == nil {
		return nil, apperror.ErrDuplicateSignature
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	current, err := c.loadCurrent(ctx, in.GigID)
	if err != nil {
		return nil, err
	}
	verified, err := c.verifyOnChain(ctx, current, in)
	if err != nil {
		return nil, err
	}

	cfg, err := c.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	var fee valueobject.FeeBreakdown
	if in.Action == entity.ActionPublish {
		// В журнал идёт то, что заблокировано в сети, а не пересчёт по текущим настройкам.
		fee, err = lockedFee(current, verified)
	} else {
		var entries []*entity.LedgerEntry
		if entries, err = c.ledger.ListByGig(ctx, current.ID); err == nil {
			fee, err = feeFor(current, entries, cfg)
		}
	}
	if err != nil {
		return nil, err
	}

	now := c.expiry.Now()
	grace := cfg.GracePeriod()
	kind := in.Action.LedgerKind()
	amount, feeAmount := amounts(kind, fee)

	params := repository.TransitionParams{
		GigID:  current.ID,
		Action: in.Action,
		Apply: func(g *entity.Gig) error {
			return apply(g, in.Action, in.Actor.ID, in.Payload, now, grace)
		},
		Ledger:     entity.NewLedgerEntry(current.ID, in.Actor.ID, kind, in.Signature, amount, feeAmount, now),
		OncePerGig: in.Action == entity.ActionRefund,
	}
	switch in.Action {
	case entity.ActionDispute:
		d, err := entity.NewDispute(current.ID, in.Actor.ID, in.Payload.Reason, now)
		if err != nil {
			return nil, err
		}
		params.Dispute = d
	case entity.ActionResolve:
		winner, err := entity.ParseDisputeWinner(in.Payload.Winner)
		if err != nil {
			return nil, err
		}
		params.Resolution = &entity.DisputeResolution{Winner: winner, ResolvedBy: in.Actor.ID, ResolvedAt: now}
	}

	gig, err = c.gigs.Transition(ctx, params)
	if err != nil {
		return nil, err
	}

	logger.ForSignature(logger.ForGig(gig.ID, string(in.Action)), in.Signature).WithFields(logrus.Fields{
		"status": gig.Status,
		"kind":   kind,
		"amount": amount,
	}).Info("операция зафиксирована")
	c.events.GigChanged(ctx, event.NewGigChanged(gig, in.Action, in.Signature, now))
	return gig, nil
}

// verifyOnChain требует нужную глубину подтверждения и то, что транзакция
// подписана исполнителем и содержит инструкцию именно этой операции по
// эскроу этого задания.
func (c *Coordinator) verifyOnChain(ctx context.Context, gig *entity.Gig, in CommitInput) (*chain.VerifiedAction, error) {
	escrowAddr := gig.EscrowAddress
	if escrowAddr == "" {
		addr, err := c.chain.EscrowAddress(gig.ID)
		if err != nil {
			return nil, err
		}
		escrowAddr = addr
	}
	signer, err := c.wallet(ctx, in.Actor.ID)
	if err != nil {
		return nil, err
	}

	timer := prometheus.NewTimer(metrics.ChainStatusDuration)
	status, err := c.chain.SignatureStatus(ctx, in.Signature)
	timer.ObserveDuration()
	if err != nil {
		return nil, err
	}

	switch {
	case status == chain.StatusFailed:
		return nil, apperror.ErrChainFailed
	case !status.Satisfies(c.depth):
		return nil, apperror.ErrChainUnconfirmed
	}

	return c.chain.VerifyAction(ctx, in.Signature, chain.VerifyRequest{
		Action:        in.Action,
		GigID:         gig.ID,
		EscrowAddress: escrowAddr,
		Signer:        signer,
	})
}

// lockedFee берёт суммы из подтверждённой create_escrow. Оплата обязана
// совпасть с заданием, комиссия принимается такой, какой её заблокировала сеть.
func lockedFee(gig *entity.Gig, v *chain.VerifiedAction) (valueobject.FeeBreakdown, error) {
	if v == nil || v.Amount != uint64(gig.PaymentLamports) || v.Fee > v.Amount {
		return valueobject.FeeBreakdown{}, apperror.New(apperror.ErrCodeValidation, "суммы в транзакции не совпадают с оплатой задания")
	}
	return valueobject.FromLocked(gig.PaymentLamports, valueobject.Lamports(v.Fee))
}

// SignatureStatus проксирует проверку статуса для клиента.
func (c *Coordinator) SignatureStatus(ctx context.Context, signature string) (chain.SignatureStatus, error) {
	timer := prometheus.NewTimer(metrics.ChainStatusDuration)
	defer timer.ObserveDuration()
	return c.chain.SignatureStatus(ctx, signature)
}
