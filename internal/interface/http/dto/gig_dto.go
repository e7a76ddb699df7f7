package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
)

type CreateGigRequest struct {
	Title                  string  `json:"title" binding:"required"`
	Category               string  `json:"category" binding:"required"`
	City                   string  `json:"city" binding:"required"`
	Address                string  `json:"address"`
	PaymentLamports        int64   `json:"payment_lamports" binding:"required,gt=0"`
	AcceptDeadline         *string `json:"accept_deadline"`
	CompletionDurationSecs int64   `json:"completion_duration_secs" binding:"required,gt=0"`
}

type ProofDTO struct {
	URLs []string `json:"urls"`
	Note string   `json:"note"`
}

func (p *ProofDTO) ToEntity() *entity.Proof {
	if p == nil {
		return nil
	}
	return &entity.Proof{URLs: p.URLs, Note: p.Note}
}

// ActionPayload содержит данные операции. proof нужен для submit, reason для dispute,
// winner для resolve; в остальных операциях поля игнорируются.
type ActionPayload struct {
	Proof  *ProofDTO `json:"proof"`
	Reason string    `json:"reason"`
	Winner string    `json:"winner"`
}

type BuildRequest struct {
	ActionPayload
}

type CommitRequest struct {
	Signature string `json:"signature" binding:"required"`
	ActionPayload
}

type UpdatePlatformConfigRequest struct {
	FeeBPS          *int   `json:"fee_bps" binding:"required"`
	GracePeriodSecs *int64 `json:"grace_period_secs" binding:"required"`
}

type GigResponse struct {
	ID                     uuid.UUID             `json:"id"`
	PosterID               uuid.UUID             `json:"poster_id"`
	WorkerID               *uuid.UUID            `json:"worker_id"`
	Title                  string                `json:"title"`
	Category               string                `json:"category"`
	City                   string                `json:"city"`
	Address                string                `json:"address"`
	PaymentLamports        int64                 `json:"payment_lamports"`
	Status                 valueobject.GigStatus `json:"status"`
	AcceptDeadline         *time.Time            `json:"accept_deadline"`
	CompletionDurationSecs int64                 `json:"completion_duration_secs"`
	AcceptedAt             *time.Time            `json:"accepted_at"`
	SubmittedAt            *time.Time            `json:"submitted_at"`
	Proof                  *entity.Proof         `json:"proof,omitempty"`
	EscrowAddress          string                `json:"escrow_address"`
	CreatedAt              time.Time             `json:"created_at"`
	UpdatedAt              time.Time             `json:"updated_at"`
}

func ToGigResponse(g *entity.Gig) GigResponse {
	return GigResponse{
		ID:                     g.ID,
		PosterID:               g.PosterID,
		WorkerID:               g.WorkerID,
		Title:                  g.Title,
		Category:               g.Category,
		City:                   g.City,
		Address:                g.Address,
		PaymentLamports:        int64(g.PaymentLamports),
		Status:                 g.Status,
		AcceptDeadline:         g.AcceptDeadline,
		CompletionDurationSecs: g.CompletionDurationSecs,
		AcceptedAt:             g.AcceptedAt,
		SubmittedAt:            g.SubmittedAt,
		Proof:                  g.Proof,
		EscrowAddress:          g.EscrowAddress,
		CreatedAt:              g.CreatedAt,
		UpdatedAt:              g.UpdatedAt,
	}
}

func ToGigResponses(gigs []*entity.Gig) []GigResponse {
	out := make([]GigResponse, 0, len(gigs))
	for _, g := range gigs {
		out = append(out, ToGigResponse(g))
	}
	return out
}

// ParseDeadline принимает RFC3339; пустое значение: без дедлайна.
func ParseDeadline(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func ParseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
