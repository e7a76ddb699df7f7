package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
)

type PlatformConfigRepository interface {
	// Get возвращает found=false, если строка ещё не записана.
	Get(ctx context.Context) (cfg entity.PlatformConfig, found bool, err error)
	Upsert(ctx context.Context, cfg entity.PlatformConfig) (entity.PlatformConfig, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}
