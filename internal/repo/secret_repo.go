package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SecretRepo — секреты воркеров в таблице worker_secrets.
type SecretRepo struct {
	pool *pgxpool.Pool
}

// NewSecretRepo создаёт новый SecretRepo.
func NewSecretRepo(pool *pgxpool.Pool) *SecretRepo {
	return &SecretRepo{pool: pool}
}

// Get читает значение секрета. Отсутствующий секрет — ok=false без ошибки.
func (r *SecretRepo) Get(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM worker_secrets WHERE name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get secret %s: %w", name, err)
	}
	return value, true, nil
}

// Put создаёт или заменяет секрет.
func (r *SecretRepo) Put(ctx context.Context, name, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO worker_secrets (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, name, value)
	if err != nil {
		return fmt.Errorf("put secret %s: %w", name, err)
	}
	return nil
}

// Delete удаляет секрет.
func (r *SecretRepo) Delete(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM worker_secrets WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete secret %s: %w", name, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
