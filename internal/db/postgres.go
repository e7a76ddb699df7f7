package db

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ignatzorin/gig-escrow-backend/internal/logger"
	"github.com/ignatzorin/gig-escrow-backend/internal/repository/common"
)

// NewPostgres создаёт подключение к PostgreSQL с заданным DSN.
// Подключение повторяется с экспоненциальной паузой, пока не истечёт ctx или попытки.
func NewPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	var conn *sqlx.DB

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectAttempts), ctx)
	err := backoff.RetryNotify(func() error {
		c, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, policy, func(err error, wait time.Duration) {
		logger.Log.WithError(err).WithField("retry_in", wait).Warn("postgres: подключение не удалось, повторяем")
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: не удалось подключиться: %w", err)
	}

	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return conn, nil
}

const connectAttempts = 8

// RunMigrations применяет *.sql из migrationsDir в лексикографическом порядке.
// Каждый файл выполняется в своей транзакции вместе с отметкой в schema_migrations.
func RunMigrations(ctx context.Context, conn *sqlx.DB, migrationsDir string) error {
	if _, err := conn.ExecContext(ctx, migrationsTable); err != nil {
		return fmt.Errorf("postgres: таблица миграций: %w", err)
	}

	files, err := migrationFiles(migrationsDir)
	if err != nil {
		return err
	}
	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	for _, name := range files {
		if applied[name] {
			continue
		}
		logger.Log.WithField("migration", name).Info("postgres: применяем миграцию")
		if err := applyMigration(ctx, conn, migrationsDir, name); err != nil {
			return err
		}
	}
	return nil
}

const migrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

func migrationFiles(dir string) ([]string, error) {
	names, err := fs.Glob(os.DirFS(dir), "*.sql")
	if err != nil {
		return nil, fmt.Errorf("postgres: каталог миграций %s: %w", dir, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("postgres: в %s нет миграций", dir)
	}
	sort.Strings(names)
	return names, nil
}

func appliedMigrations(ctx context.Context, conn *sqlx.DB) (map[string]bool, error) {
	var names []string
	if err := conn.SelectContext(ctx, &names, `SELECT name FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("postgres: список применённых миграций: %w", err)
	}
	applied := make(map[string]bool, len(names))
	for _, n := range names {
		applied[n] = true
	}
	return applied, nil
}

func applyMigration(ctx context.Context, conn *sqlx.DB, dir, name string) error {
	body, err := fs.ReadFile(os.DirFS(dir), name)
	if err != nil {
		return fmt.Errorf("postgres: чтение миграции %s: %w", name, err)
	}

	err = common.WithTransaction(ctx, conn, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: миграция %s: %w", name, err)
	}
	return nil
}
