package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// ScheduleRepo хранит состояние расписаний между рестартами планировщика.
//
// Сами расписания задаются в каталоге; в БД лежат только
// next_due_at и last_run_at.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// LoadState заполняет NextDueAt и LastRunAt из БД.
// Возвращает false, если состояния ещё нет.
func (r *ScheduleRepo) LoadState(ctx context.Context, sched *domain.Schedule) (bool, error) {
	var nextDue, lastRun *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT next_due_at, last_run_at FROM schedule_state WHERE schedule_id = $1
	`, sched.ID).Scan(&nextDue, &lastRun)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load schedule state: %w", err)
	}

	sched.NextDueAt = nextDue
	sched.LastRunAt = lastRun
	return true, nil
}

// SaveState сохраняет NextDueAt и LastRunAt.
func (r *ScheduleRepo) SaveState(ctx context.Context, sched *domain.Schedule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_state (schedule_id, name, next_due_at, last_run_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (schedule_id) DO UPDATE
		SET name = EXCLUDED.name, next_due_at = EXCLUDED.next_due_at,
		    last_run_at = EXCLUDED.last_run_at, updated_at = NOW()
	`, sched.ID, nullString(sched.Name), sched.NextDueAt, sched.LastRunAt)
	if err != nil {
		return fmt.Errorf("save schedule state: %w", err)
	}
	return nil
}
