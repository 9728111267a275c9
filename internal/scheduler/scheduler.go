package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// RunPublisher публикует запросы на запуск run.
type RunPublisher interface {
	PublishRunRequested(ctx context.Context, req domain.RunRequest) error
}

// StateStore хранит NextDueAt/LastRunAt между рестартами.
type StateStore interface {
	LoadState(ctx context.Context, sched *domain.Schedule) (bool, error)
	SaveState(ctx context.Context, sched *domain.Schedule) error
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules []domain.Schedule
	Publisher RunPublisher

	// State (опционально) — без него состояние живёт только в памяти.
	State StateStore

	Logger *slog.Logger
}

// Scheduler — планировщик, публикующий run.requested для due-расписаний.
type Scheduler struct {
	publisher RunPublisher
	state     StateStore
	logger    *slog.Logger

	mu        sync.Mutex
	schedules []domain.Schedule
}

// New создаёт Scheduler. Невалидное расписание — ошибка.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Publisher == nil {
		return nil, errors.New("scheduler: publisher is required")
	}

	schedules := make([]domain.Schedule, 0, len(cfg.Schedules))
	for i := range cfg.Schedules {
		sched := cfg.Schedules[i]
		if err := ValidateSchedule(&sched); err != nil {
			return nil, err
		}
		schedules = append(schedules, sched)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		publisher: cfg.Publisher,
		state:     cfg.State,
		logger:    logger,
		schedules: schedules,
	}, nil
}

// Init загружает сохранённое состояние и назначает первое срабатывание
// расписаниям, у которых его ещё нет.
func (s *Scheduler) Init(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.schedules {
		sched := &s.schedules[i]
		if !sched.Enabled {
			continue
		}

		if s.state != nil {
			if _, err := s.state.LoadState(ctx, sched); err != nil {
				return fmt.Errorf("load state of schedule %s: %w", sched.ID, err)
			}
		}
		if sched.NextDueAt != nil {
			continue
		}

		next, err := CalculateNextDue(sched, now)
		if err != nil {
			return fmt.Errorf("schedule %s: %w", sched.ID, err)
		}
		sched.NextDueAt = &next
	}
	return nil
}

// Tick обрабатывает due-расписания.
//
// Для каждого enabled расписания с NextDueAt <= now публикуется ровно один
// run.requested с ключом "{schedule_id}_{next_due_unix}", затем NextDueAt
// сдвигается. Если публикация не удалась, NextDueAt не меняется и следующий
// тик повторит попытку с тем же ключом.
//
// Ошибки одного расписания не блокируют остальные.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due, fired int
	var errs []error
	for i := range s.schedules {
		sched := &s.schedules[i]
		if !sched.IsDue(now) {
			continue
		}
		due++

		if err := s.fire(ctx, sched, now); err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		fired++
	}

	if due > 0 {
		s.logger.Info("scheduler tick completed", "due", due, "fired", fired)
	}
	return errors.Join(errs...)
}

func (s *Scheduler) fire(ctx context.Context, sched *domain.Schedule, now time.Time) error {
	req := domain.RunRequest{
		TenantID:       sched.TenantID,
		Domain:         sched.Domain,
		PlanID:         sched.PlanID,
		IdempotencyKey: IdempotencyKey(sched),
	}
	if err := s.publisher.PublishRunRequested(ctx, req); err != nil {
		return fmt.Errorf("publish run.requested: %w", err)
	}

	next, err := CalculateNextDue(sched, now)
	if err != nil {
		sched.Enabled = false
		return fmt.Errorf("calculate next due, schedule disabled: %w", err)
	}
	sched.RecordRun(now, next)

	s.logger.Info("run requested by schedule",
		"schedule_id", sched.ID,
		"plan_id", sched.PlanID,
		"tenant_id", sched.TenantID,
		"idempotency_key", req.IdempotencyKey,
		"next_due_at", next,
	)

	if s.state != nil {
		if err := s.state.SaveState(ctx, sched); err != nil {
			s.logger.Warn("failed to save schedule state", "schedule_id", sched.ID, "error", err)
		}
	}
	return nil
}

// IdempotencyKey формирует ключ запуска для текущего слота расписания.
func IdempotencyKey(sched *domain.Schedule) string {
	var unix int64
	if sched.NextDueAt != nil {
		unix = sched.NextDueAt.Unix()
	}
	return fmt.Sprintf("%s_%d", sched.ID, unix)
}

// Schedules возвращает копию текущего состояния расписаний.
func (s *Scheduler) Schedules() []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out
}
