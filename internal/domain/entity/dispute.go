package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow-backend/internal/validation"
)

type DisputeWinner string

const (
	DisputeWinnerPoster DisputeWinner = "poster"
	DisputeWinnerWorker DisputeWinner = "worker"
)

func ParseDisputeWinner(s string) (DisputeWinner, error) {
	switch w := DisputeWinner(s); w {
	case DisputeWinnerPoster, DisputeWinnerWorker:
		return w, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "победитель спора: poster или worker")
}

// Dispute описывает спор по заданию, не больше одного на задание.
type Dispute struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	GigID      uuid.UUID      `db:"gig_id" json:"gig_id"`
	RaisedBy   uuid.UUID      `db:"raised_by" json:"raised_by"`
	Reason     string         `db:"reason" json:"reason"`
	Winner     *DisputeWinner `db:"winner" json:"winner,omitempty"`
	ResolvedBy *uuid.UUID     `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

func NewDispute(gigID, raisedBy uuid.UUID, reason string, now time.Time) (*Dispute, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "причина спора обязательна")
	}
	if err := validation.ValidateLength("причина спора", reason, 0, validation.MaxReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	return &Dispute{
		ID:        uuid.New(),
		GigID:     gigID,
		RaisedBy:  raisedBy,
		Reason:    reason,
		CreatedAt: now,
	}, nil
}

func (d *Dispute) IsResolved() bool {
	return d.Winner != nil
}

// DisputeResolution хранит итог спора, записывается при коммите resolve.
type DisputeResolution struct {
	Winner     DisputeWinner
	ResolvedBy uuid.UUID
	ResolvedAt time.Time
}
