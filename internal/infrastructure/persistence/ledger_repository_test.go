package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/entity"
	"github.com/ignatzorin/gig-escrow-backend/internal/domain/repository"
	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerRepository_InsertTriState(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)
	entry := entity.NewLedgerEntry(uuid.New(), uuid.New(), entity.LedgerKindFund, "sig1", 1_000_000, 25_000, testNow)

	mock.ExpectQuery(`INSERT INTO gig_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(entry.ID.String()))
	mock.ExpectQuery(`INSERT INTO gig_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`INSERT INTO gig_transactions`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: ledgerGigKindIndex})

	res, err := repo.Insert(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, repository.InsertResultInserted, res)

	res, err = repo.Insert(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, repository.InsertResultAlreadyExists, res)

	_, err = repo.Insert(context.Background(), entry)
	assert.True(t, apperror.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_ListByGig(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)
	gigID, actor := uuid.New(), uuid.New()
	fundID, acceptID := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM gig_transactions WHERE gig_id = \$1 ORDER BY created_at, id`).
		WithArgs(gigID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "gig_id", "kind", "signature", "amount_lamports", "fee_lamports", "actor_id", "created_at"}).
			AddRow(fundID.String(), gigID.String(), "fund", "s1", int64(5_000_000), int64(125_000), actor.String(), testNow).
			AddRow(acceptID.String(), gigID.String(), "accept", "s2", int64(0), int64(0), actor.String(), testNow))

	got, err := repo.ListByGig(context.Background(), gigID)
	require.NoError(t, err)

	want := []*entity.LedgerEntry{
		{ID: fundID, GigID: gigID, Kind: entity.LedgerKindFund, Signature: "s1", AmountLamports: 5_000_000, FeeLamports: 125_000, ActorID: actor, CreatedAt: testNow},
		{ID: acceptID, GigID: gigID, Kind: entity.LedgerKindAccept, Signature: "s2", ActorID: actor, CreatedAt: testNow},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListByGig mismatch (-want +got):\n%s", diff)
	}
}

func TestPlatformConfigRepository_GetNotSeeded(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPlatformConfigRepository(db)

	mock.ExpectQuery(`FROM platform_config WHERE id = 1`).
		WillReturnRows(sqlmock.NewRows([]string{"fee_bps", "grace_period_secs", "updated_at", "updated_by"}))
	mock.ExpectQuery(`FROM platform_config WHERE id = 1`).
		WillReturnRows(sqlmock.NewRows([]string{"fee_bps", "grace_period_secs", "updated_at", "updated_by"}).
			AddRow(300, int64(120), testNow, nil))

	_, found, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, found)

	cfg, found, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 300, cfg.FeeBPS)
	assert.Equal(t, int64(120), cfg.GracePeriodSecs)
}
