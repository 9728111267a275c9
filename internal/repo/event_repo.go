package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// RunEventRepo — журнал событий run. Только INSERT, без обновлений.
type RunEventRepo struct {
	pool *pgxpool.Pool
}

// NewRunEventRepo создаёт новый RunEventRepo.
func NewRunEventRepo(pool *pgxpool.Pool) *RunEventRepo {
	return &RunEventRepo{pool: pool}
}

// RecordRunEvent добавляет событие в журнал.
func (r *RunEventRepo) RecordRunEvent(ctx context.Context, ev domain.RunEvent) error {
	var summaryJSON []byte
	if ev.Summary != nil {
		data, err := json.Marshal(ev.Summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
		summaryJSON = data
	}

	query := `
		INSERT INTO run_events (id, run_id, type, tenant_id, domain, plan_id, status, summary, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		ev.ID,
		ev.RunID,
		ev.Type,
		ev.TenantID,
		ev.Domain,
		ev.PlanID,
		ev.Status,
		summaryJSON,
		ev.At,
	)
	if err != nil {
		return fmt.Errorf("insert run event: %w", err)
	}
	return nil
}

// ListByRun возвращает события run в порядке записи.
func (r *RunEventRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunEvent, error) {
	query := `
		SELECT id, run_id, type, tenant_id, domain, plan_id, status, summary, at
		FROM run_events
		WHERE run_id = $1
		ORDER BY at ASC, id ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", err)
	}
	defer rows.Close()

	var events []domain.RunEvent
	for rows.Next() {
		ev, err := scanRunEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func scanRunEvent(rows pgx.Rows) (*domain.RunEvent, error) {
	var ev domain.RunEvent
	var summaryJSON []byte

	err := rows.Scan(
		&ev.ID,
		&ev.RunID,
		&ev.Type,
		&ev.TenantID,
		&ev.Domain,
		&ev.PlanID,
		&ev.Status,
		&summaryJSON,
		&ev.At,
	)
	if err != nil {
		return nil, fmt.Errorf("scan run event: %w", err)
	}

	if summaryJSON != nil {
		var summary domain.RunSummary
		if err := json.Unmarshal(summaryJSON, &summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
		ev.Summary = &summary
	}
	return &ev, nil
}
