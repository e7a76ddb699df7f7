package escrow

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow-backend/internal/infrastructure/chain"
	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
	"github.com/ignatzorin/gig-escrow-backend/internal/metrics"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
)

type BuildInput struct {
	GigID   uuid.UUID
	Action  entity.Action
	Actor   entity.Actor
	Payload Payload
}

type BuildResult struct {
	GigID         uuid.UUID                `json:"gig_id"`
	Action        entity.Action            `json:"action"`
	Fee           valueobject.FeeBreakdown `json:"fee"`
	RequiredDepth string                   `json:"required_commitment"`
	Transaction   *chain.UnsignedTx        `json:"unsigned_tx"`
}

// Build только читает: проверяет предусловие и роль, считает комиссию и
// собирает транзакцию. Ничего не записывает.
func (c *Coordinator) Build(ctx context.Context, in BuildInput) (res *BuildResult, err error) {
	defer func() {
		metrics.EscrowBuilds.WithLabelValues(string(in.Action), outcome(err)).Inc()
	}()

	if err := validatePayload(in.Action, in.Actor, in.Payload); err != nil {
		return nil, err
	}

	gig, err := c.loadCurrent(ctx, in.GigID)
	if err != nil {
		return nil, err
	}
	cfg, err := c.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkPrecondition(gig, in.Action, in.Actor.ID, c.expiry.Now(), cfg.GracePeriod()); err != nil {
		return nil, err
	}

	entries, err := c.ledger.ListByGig(ctx, gig.ID)
	if err != nil {
		return nil, err
	}
	if in.Action == entity.ActionRefund && hasKind(entries, entity.LedgerKindRefund) {
		return nil, apperror.New(apperror.ErrCodeConflict, "средства по заданию уже возвращены")
	}
	fee, err := feeFor(gig, entries, cfg)
	if err != nil {
		return nil, err
	}

	req, err := c.buildRequest(ctx, gig, in, fee)
	if err != nil {
		return nil, err
	}
	tx, err := c.chain.BuildUnsigned(ctx, req)
	if err != nil {
		return nil, err
	}
	if tx.EscrowAddress != gig.EscrowAddress && gig.EscrowAddress != "" {
		// адрес из базы и пересчитанный обязаны совпасть
		return nil, apperror.New(apperror.ErrCodeInternal, "адрес эскроу не совпадает с сохранённым")
	}

	logger.ForGig(gig.ID, string(in.Action)).
		WithField("setup_included", tx.SetupIncluded).
		Debug("собрана неподписанная транзакция")

	return &BuildResult{
		GigID:         gig.ID,
		Action:        in.Action,
		Fee:           fee,
		RequiredDepth: c.depth.String(),
		Transaction:   tx,
	}, nil
}

func (c *Coordinator) buildRequest(ctx context.Context, gig *entity.Gig, in BuildInput, fee valueobject.FeeBreakdown) (chain.BuildRequest, error) {
	payer, err := c.wallet(ctx, in.Actor.ID)
	if err != nil {
		return chain.BuildRequest{}, err
	}
	poster, err := c.wallet(ctx, gig.PosterID)
	if err != nil {
		return chain.BuildRequest{}, err
	}

	var worker string
	switch {
	case in.Action == entity.ActionAccept:
		worker = payer
	case gig.WorkerID != nil:
		if worker, err = c.wallet(ctx, *gig.WorkerID); err != nil {
			return chain.BuildRequest{}, err
		}
	}

	req := chain.BuildRequest{
		Action:         in.Action,
		GigID:          gig.ID,
		Payer:          payer,
		PosterWallet:   poster,
		WorkerWallet:   worker,
		AmountLamports: uint64(fee.Payment),
		FeeLamports:    uint64(fee.Fee),
	}
	switch in.Action {
	case entity.ActionSubmit:
		req.ProofHash = proofHash(in.Payload.Proof)
	case entity.ActionResolve:
		req.Winner = entity.DisputeWinner(in.Payload.Winner)
	}
	return req, nil
}

func (c *Coordinator) wallet(ctx context.Context, userID uuid.UUID) (string, error) {
	u, err := c.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.WalletAddress == "" {
		return "", apperror.New(apperror.ErrCodeValidation, "у пользователя не привязан кошелёк")
	}
	return u.WalletAddress, nil
}

// feeFor берёт суммы из записи о блокировке средств, если она есть:
// комиссия могла измениться после публикации, а в эскроу лежит прежняя.
func feeFor(gig *entity.Gig, entries []*entity.LedgerEntry, cfg entity.PlatformConfig) (valueobject.FeeBreakdown, error) {
	for _, e := range entries {
		if e.Kind == entity.LedgerKindFund {
			return valueobject.FeeBreakdown{
				Payment:     e.AmountLamports - e.FeeLamports,
				FeeBPS:      cfg.FeeBPS,
				Fee:         e.FeeLamports,
				TotalLocked: e.AmountLamports,
			}, nil
		}
	}
	return valueobject.ComputeFee(gig.PaymentLamports, cfg.FeeBPS)
}

func hasKind(entries []*entity.LedgerEntry, kind entity.LedgerKind) bool {
	for _, e := range entries {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperror.CodeOf(err))
}
