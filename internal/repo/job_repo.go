package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// JobRepo — хранилище тестовых задач.
//
// Документ задачи пишется целиком одним UPSERT, поэтому
// читатель всегда видит согласованный снимок.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Save создаёт или заменяет задачу.
func (r *JobRepo) Save(ctx context.Context, job *domain.TestJob) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal test job: %w", err)
	}

	query := `
		INSERT INTO test_jobs (id, tenant_id, type, status, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, document = EXCLUDED.document, updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.TenantID,
		job.Type,
		job.Status,
		doc,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert test job: %w", err)
	}
	return nil
}

// Get возвращает задачу по ID.
func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*domain.TestJob, bool, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT document FROM test_jobs WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get test job: %w", err)
	}

	var job domain.TestJob
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, false, fmt.Errorf("unmarshal test job: %w", err)
	}
	return &job, true, nil
}

// ListByTenant возвращает последние задачи тенанта.
func (r *JobRepo) ListByTenant(ctx context.Context, tenantID string, limit int) ([]domain.TestJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT document FROM test_jobs
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list test jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.TestJob
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan test job: %w", err)
		}
		var job domain.TestJob
		if err := json.Unmarshal(doc, &job); err != nil {
			return nil, fmt.Errorf("unmarshal test job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
