package domain

import "time"

// Schedule — расписание автоматического запуска плана для тенанта.
//
// Schedule позволяет запускать run:
// - По cron-выражению: "0 9 * * *" (каждый день в 9:00)
// - По интервалу: каждые N секунд
//
// Scheduler проверяет NextDueAt и публикует run.requested, когда время подошло.
type Schedule struct {
	// ID — идентификатор расписания.
	ID string `json:"id" yaml:"id"`

	// Name — имя расписания для удобства.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// TenantID, Domain, PlanID — что именно запускать.
	TenantID string `json:"tenant_id" yaml:"tenant_id"`
	Domain   string `json:"domain" yaml:"domain"`
	PlanID   string `json:"plan_id" yaml:"plan_id"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty" yaml:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `json:"interval_sec,omitempty" yaml:"interval_sec,omitempty"`

	// Timezone — часовой пояс для cron. По умолчанию: "UTC".
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

	// Enabled — если false, scheduler игнорирует расписание.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty" yaml:"-"`

	// LastRunAt — время последнего срабатывания.
	LastRunAt *time.Time `json:"last_run_at,omitempty" yaml:"-"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun фиксирует срабатывание и сдвигает NextDueAt.
func (s *Schedule) RecordRun(firedAt, nextDue time.Time) {
	s.LastRunAt = &firedAt
	s.NextDueAt = &nextDue
}
