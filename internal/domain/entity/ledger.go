package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
)

type LedgerKind string

const (
	LedgerKindFund              LedgerKind = "fund"
	LedgerKindRelease           LedgerKind = "release"
	LedgerKindRefund            LedgerKind = "refund"
	LedgerKindCancelRefund      LedgerKind = "cancel_refund"
	LedgerKindDisputeResolution LedgerKind = "dispute_resolution"
	LedgerKindAccept            LedgerKind = "accept"
	LedgerKindSubmit            LedgerKind = "submit"
	LedgerKindDispute           LedgerKind = "dispute"
)

// MovesMoney отличает записи о движении средств от отметок о шагах без денег.
func (k LedgerKind) MovesMoney() bool {
	switch k {
	case LedgerKindFund, LedgerKindRelease, LedgerKindRefund, LedgerKindCancelRefund, LedgerKindDisputeResolution:
		return true
	}
	return false
}

// LedgerEntry описывает строку gig_transactions. Только добавление.
type LedgerEntry struct {
	ID             uuid.UUID            `db:"id" json:"id"`
	GigID          uuid.UUID            `db:"gig_id" json:"gig_id"`
	Kind           LedgerKind           `db:"kind" json:"kind"`
	Signature      string               `db:"signature" json:"signature"`
	AmountLamports valueobject.Lamports `db:"amount_lamports" json:"amount_lamports"`
	FeeLamports    valueobject.Lamports `db:"fee_lamports" json:"fee_lamports"`
	ActorID        uuid.UUID            `db:"actor_id" json:"actor_id"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
}

func NewLedgerEntry(gigID, actorID uuid.UUID, kind LedgerKind, signature string, amount, fee valueobject.Lamports, now time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:             uuid.New(),
		GigID:          gigID,
		Kind:           kind,
		Signature:      signature,
		AmountLamports: amount,
		FeeLamports:    fee,
		ActorID:        actorID,
		CreatedAt:      now,
	}
}
