package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/jmoiron/sqlx"
)

const disputeColumns = `id, gig_id, raised_by, reason, winner, resolved_by, resolved_at, created_at`

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

var _ repository.DisputeRepository = (*DisputeRepository)(nil)

func (r *DisputeRepository) FindByGigID(ctx context.Context, gigID uuid.UUID) (*entity.Dispute, error) {
	var d entity.Dispute
	err := r.db.GetContext(ctx, &d, `SELECT `+disputeColumns+` FROM disputes WHERE gig_id = $1`, gigID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrDisputeNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить спор")
	}
	return &d, nil
}

// insertDispute не перезаписывает существующий спор.
func insertDispute(ctx context.Context, tx *sqlx.Tx, d *entity.Dispute) error {
	query := `
		INSERT INTO disputes (id, gig_id, raised_by, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (gig_id) DO NOTHING
		RETURNING id
	`
	var id uuid.UUID
	err := tx.GetContext(ctx, &id, query, d.ID, d.GigID, d.RaisedBy, d.Reason, d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.ErrDisputeExists
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать спор")
	}
	return nil
}

func resolveDispute(ctx context.Context, tx *sqlx.Tx, gigID uuid.UUID, res *entity.DisputeResolution) error {
	query := `
		UPDATE disputes SET winner = $2, resolved_by = $3, resolved_at = $4
		WHERE gig_id = $1 AND winner IS NULL
	`
	result, err := tx.ExecContext(ctx, query, gigID, string(res.Winner), res.ResolvedBy, res.ResolvedAt)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось закрыть спор")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат обновления")
	}
	if rows == 0 {
		return apperror.ErrDisputeNotFound
	}
	return nil
}
