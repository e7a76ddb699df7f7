package persistence

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow-backend/internal/repository/common"
	"github.com/jmoiron/sqlx"
)

const ledgerColumns = `id, gig_id, kind, signature, amount_lamports, fee_lamports, actor_id, created_at`

const ledgerGigKindIndex = "uq_gig_transactions_gig_kind"

type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ repository.LedgerRepository = (*LedgerRepository)(nil)

func (r *LedgerRepository) Insert(ctx context.Context, entry *entity.LedgerEntry) (repository.InsertResult, error) {
	return insertLedgerEntry(ctx, r.db, entry)
}

func (r *LedgerRepository) FindBySignature(ctx context.Context, signature string) (*entity.LedgerEntry, error) {
	entry, err := common.GetByField[entity.LedgerEntry](ctx, r.db, "gig_transactions", ledgerColumns, "signature", signature,
		apperror.New(apperror.ErrCodeNotFound, "транзакция не найдена"))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить транзакцию")
	}
	return entry, nil
}

func (r *LedgerRepository) ListByGig(ctx context.Context, gigID uuid.UUID) ([]*entity.LedgerEntry, error) {
	entries := []*entity.LedgerEntry{}
	query := `SELECT ` + ledgerColumns + ` FROM gig_transactions WHERE gig_id = $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &entries, query, gigID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить журнал задания")
	}
	return entries, nil
}

// insertLedgerEntry вставляет строку журнала. Повтор подписи даёт AlreadyExists, а не ошибку.
func insertLedgerEntry(ctx context.Context, db sqlx.QueryerContext, entry *entity.LedgerEntry) (repository.InsertResult, error) {
	query := `
		INSERT INTO gig_transactions (id, gig_id, kind, signature, amount_lamports, fee_lamports, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (signature) DO NOTHING
		RETURNING id
	`
	var id uuid.UUID
	err := sqlx.GetContext(ctx, db, &id, query,
		entry.ID,
		entry.GigID,
		string(entry.Kind),
		entry.Signature,
		int64(entry.AmountLamports),
		int64(entry.FeeLamports),
		entry.ActorID,
		entry.CreatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return repository.InsertResultAlreadyExists, nil
	case common.IsUniqueViolation(err, ledgerGigKindIndex):
		return 0, apperror.Wrap(err, apperror.ErrCodeConflict, "такая операция по заданию уже записана")
	case err != nil:
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось записать транзакцию")
	}
	return repository.InsertResultInserted, nil
}

func signatureExists(ctx context.Context, db sqlx.QueryerContext, signature string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, db, &exists, `SELECT EXISTS(SELECT 1 FROM gig_transactions WHERE signature = $1)`, signature)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить подпись")
	}
	return exists, nil
}
