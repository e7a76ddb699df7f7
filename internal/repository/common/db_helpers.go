package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// GetByID читает одну строку по первичному ключу.
// columns перечисляет поля явно, чтобы новые колонки в таблице не ломали сканирование.
func GetByID[T any](ctx context.Context, db sqlx.QueryerContext, table, columns string, id interface{}, notFoundErr error) (*T, error) {
	return getOne[T](ctx, db, table, columns, "id", id, notFoundErr)
}

// GetByField читает одну строку по уникальному полю.
func GetByField[T any](ctx context.Context, db sqlx.QueryerContext, table, columns, field string, value interface{}, notFoundErr error) (*T, error) {
	return getOne[T](ctx, db, table, columns, field, value, notFoundErr)
}

func getOne[T any](ctx context.Context, db sqlx.QueryerContext, table, columns, field string, value interface{}, notFoundErr error) (*T, error) {
	var out T
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", columns, table, field)
	err := sqlx.GetContext(ctx, db, &out, query, value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, notFoundErr
	case err != nil:
		return nil, fmt.Errorf("%s by %s: %w", table, field, err)
	}
	return &out, nil
}

// WithTransaction выполняет fn в транзакции с уровнем изоляции по умолчанию.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	return InTx(ctx, db, nil, fn)
}

// InTx открывает транзакцию с opts, коммитит при nil от fn и откатывает
// при ошибке или панике.
func InTx(ctx context.Context, db *sqlx.DB, opts *sql.TxOptions, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}
