package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/jmoiron/sqlx"
)

type PlatformConfigRepository struct {
	db *sqlx.DB
}

func NewPlatformConfigRepository(db *sqlx.DB) *PlatformConfigRepository {
	return &PlatformConfigRepository{db: db}
}

var _ repository.PlatformConfigRepository = (*PlatformConfigRepository)(nil)

func (r *PlatformConfigRepository) Get(ctx context.Context) (entity.PlatformConfig, bool, error) {
	var cfg entity.PlatformConfig
	err := r.db.GetContext(ctx, &cfg,
		`SELECT fee_bps, grace_period_secs, updated_at, updated_by FROM platform_config WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.PlatformConfig{}, false, nil
	}
	if err != nil {
		return entity.PlatformConfig{}, false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить настройки платформы")
	}
	return cfg, true, nil
}

func (r *PlatformConfigRepository) Upsert(ctx context.Context, cfg entity.PlatformConfig) (entity.PlatformConfig, error) {
	query := `
		INSERT INTO platform_config (id, fee_bps, grace_period_secs, updated_at, updated_by)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET fee_bps = EXCLUDED.fee_bps,
		    grace_period_secs = EXCLUDED.grace_period_secs,
		    updated_at = EXCLUDED.updated_at,
		    updated_by = EXCLUDED.updated_by
		RETURNING fee_bps, grace_period_secs, updated_at, updated_by
	`
	var saved entity.PlatformConfig
	err := r.db.GetContext(ctx, &saved, query, cfg.FeeBPS, cfg.GracePeriodSecs, cfg.UpdatedAt, cfg.UpdatedBy)
	if err != nil {
		return entity.PlatformConfig{}, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить настройки платформы")
	}
	return saved, nil
}
