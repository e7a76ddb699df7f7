package expiry_test

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
)

func transitionAccept(gigID, worker uuid.UUID, at time.Time) repository.TransitionParams {
	return repository.TransitionParams{
		GigID:  gigID,
		Action: entity.ActionAccept,
		Apply: func(g *entity.Gig) error {
			return g.Accept(worker, at, 0)
		},
	}
}
