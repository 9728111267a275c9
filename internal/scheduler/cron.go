package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// ErrNoTrigger — у расписания нет ни cron_expr, ни interval_sec.
var ErrNoTrigger = errors.New("schedule has neither cron_expr nor interval_sec")

// cronParser — стандартный пятипольный формат.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CalculateNextDue вычисляет следующее срабатывание после from.
//
// Cron считается в timezone расписания (невалидная зона — UTC),
// интервал просто прибавляется к from. Результат в UTC.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc := time.UTC
	if sched.Timezone != "" {
		if l, err := time.LoadLocation(sched.Timezone); err == nil {
			loc = l
		}
	}
	from = from.In(loc)

	switch {
	case sched.IsCron():
		spec, err := cronParser.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression %q: %w", sched.CronExpr, err)
		}
		return spec.Next(from).UTC(), nil
	case sched.IsInterval():
		return from.Add(time.Duration(sched.IntervalSec) * time.Second).UTC(), nil
	default:
		return time.Time{}, ErrNoTrigger
	}
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// ValidateSchedule проверяет расписание целиком.
func ValidateSchedule(sched *domain.Schedule) error {
	switch {
	case sched.ID == "":
		return errors.New("schedule id is required")
	case sched.TenantID == "" || sched.Domain == "" || sched.PlanID == "":
		return fmt.Errorf("schedule %s: tenant_id, domain and plan_id are required", sched.ID)
	case sched.IsCron():
		if err := ValidateCronExpr(sched.CronExpr); err != nil {
			return fmt.Errorf("schedule %s: %w", sched.ID, err)
		}
	case sched.IntervalSec < 0:
		return fmt.Errorf("schedule %s: interval_sec must be positive", sched.ID)
	case !sched.IsInterval():
		return fmt.Errorf("schedule %s: %w", sched.ID, ErrNoTrigger)
	}

	if sched.Timezone != "" {
		if _, err := time.LoadLocation(sched.Timezone); err != nil {
			return fmt.Errorf("schedule %s: invalid timezone %q", sched.ID, sched.Timezone)
		}
	}
	return nil
}
