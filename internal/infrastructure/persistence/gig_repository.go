package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gig-escrow-backend/internal/repository/common"
	"github.com/jmoiron/sqlx"
)

const gigColumns = `id, poster_id, worker_id, title, category, city, address, payment_lamports, status,
	accept_deadline, completion_duration_secs, accepted_at, submitted_at, proof, escrow_address,
	created_at, updated_at`

// expiryPredicate повторяет entity.Gig.IsExpiredAt на SQL. $1 это now, $2 это grace в секундах.
const expiryPredicate = `(
	(status = 'open' AND accept_deadline IS NOT NULL AND $1::timestamptz > accept_deadline)
	OR (status = 'accepted' AND accepted_at IS NOT NULL
		AND $1::timestamptz > accepted_at + make_interval(secs => completion_duration_secs + $2::bigint))
)`

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type GigRepository struct {
	db *sqlx.DB
}

func NewGigRepository(db *sqlx.DB) *GigRepository {
	return &GigRepository{db: db}
}

var _ repository.GigRepository = (*GigRepository)(nil)

func (r *GigRepository) Create(ctx context.Context, gig *entity.Gig) error {
	query := `
		INSERT INTO gigs (id, poster_id, title, category, city, address, payment_lamports, status,
			accept_deadline, completion_duration_secs, escrow_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		gig.ID,
		gig.PosterID,
		gig.Title,
		gig.Category,
		gig.City,
		gig.Address,
		int64(gig.PaymentLamports),
		string(gig.Status),
		gig.AcceptDeadline,
		gig.CompletionDurationSecs,
		gig.EscrowAddress,
		gig.CreatedAt,
		gig.UpdatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать задание")
	}
	return nil
}

func (r *GigRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Gig, error) {
	gig, err := common.GetByID[entity.Gig](ctx, r.db, "gigs", gigColumns, id, apperror.ErrGigNotFound)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, err
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить задание")
	}
	return gig, nil
}

func (r *GigRepository) List(ctx context.Context, filter repository.GigFilter) ([]*entity.Gig, int, error) {
	var conds []string
	args := []interface{}{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.PosterID != nil {
		add("poster_id = $%d", *filter.PosterID)
	}
	if filter.WorkerID != nil {
		add("worker_id = $%d", *filter.WorkerID)
	}
	if filter.City != "" {
		add("city = $%d", filter.City)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM gigs"+where, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось посчитать задания")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM gigs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		gigColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	gigs := []*entity.Gig{}
	if err := r.db.SelectContext(ctx, &gigs, query, args...); err != nil {
		return nil, 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить задания")
	}
	return gigs, total, nil
}

// Transition выполняет смену статуса в одной транзакции:
// блокировка строки, проверка подписи, Apply, UPDATE с охраной статуса,
// запись в журнал и, при необходимости, в disputes.
func (r *GigRepository) Transition(ctx context.Context, p repository.TransitionParams) (*entity.Gig, error) {
	var result *entity.Gig

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var gig entity.Gig
		err := tx.GetContext(ctx, &gig, "SELECT "+gigColumns+" FROM gigs WHERE id = $1 FOR UPDATE", p.GigID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.ErrGigNotFound
		}
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось заблокировать задание")
		}

		if p.Ledger != nil {
			seen, err := signatureExists(ctx, tx, p.Ledger.Signature)
			if err != nil {
				return err
			}
			if seen {
				return apperror.ErrDuplicateSignature
			}
			if p.OncePerGig {
				var done bool
				err := tx.GetContext(ctx, &done,
					`SELECT EXISTS(SELECT 1 FROM gig_transactions WHERE gig_id = $1 AND kind = $2)`,
					p.GigID, string(p.Ledger.Kind))
				if err != nil {
					return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить журнал")
				}
				if done {
					return apperror.New(apperror.ErrCodeConflict, fmt.Sprintf("операция %s по заданию уже выполнена", p.Action))
				}
			}
		}

		pre := gig.Status
		if err := p.Apply(&gig); err != nil {
			return err
		}

		if err := updateGigState(ctx, tx, &gig, pre, p.Action); err != nil {
			return err
		}

		if p.Ledger != nil {
			res, err := insertLedgerEntry(ctx, tx, p.Ledger)
			if err != nil {
				return err
			}
			if res == repository.InsertResultAlreadyExists {
				return apperror.ErrDuplicateSignature
			}
		}

		if p.Dispute != nil {
			if err := insertDispute(ctx, tx, p.Dispute); err != nil {
				return err
			}
		}
		if p.Resolution != nil {
			if err := resolveDispute(ctx, tx, gig.ID, p.Resolution); err != nil {
				return err
			}
		}

		result = &gig
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func updateGigState(ctx context.Context, tx *sqlx.Tx, gig *entity.Gig, pre valueobject.GigStatus, action entity.Action) error {
	query := `
		UPDATE gigs
		SET status = $2, worker_id = $3, accepted_at = $4, submitted_at = $5, proof = $6, updated_at = $7
		WHERE id = $1 AND status = $8
	`
	res, err := tx.ExecContext(ctx, query,
		gig.ID,
		string(gig.Status),
		gig.WorkerID,
		gig.AcceptedAt,
		gig.SubmittedAt,
		gig.Proof,
		gig.UpdatedAt,
		string(pre),
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить задание")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат обновления")
	}
	if rows == 0 {
		return apperror.StateConflict(string(action), pre.String())
	}
	return nil
}

func (r *GigRepository) ExpireOne(ctx context.Context, id uuid.UUID, now time.Time, grace time.Duration) (bool, error) {
	query := `UPDATE gigs SET status = 'expired', updated_at = $1 WHERE id = $3 AND ` + expiryPredicate
	res, err := r.db.ExecContext(ctx, query, now, graceSeconds(grace), id)
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось завершить просроченное задание")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат обновления")
	}
	return rows > 0, nil
}

func (r *GigRepository) ExpireDue(ctx context.Context, now time.Time, grace time.Duration) (int64, error) {
	query := `UPDATE gigs SET status = 'expired', updated_at = $1 WHERE ` + expiryPredicate
	res, err := r.db.ExecContext(ctx, query, now, graceSeconds(grace))
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось завершить просроченные задания")
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить результат обновления")
	}
	return rows, nil
}

func graceSeconds(grace time.Duration) int64 {
	return int64(grace / time.Second)
}
