package domain

import (
	"time"

	"github.com/google/uuid"
)

// ServiceResult — результат выполнения одного сервиса в run.
//
// Переходы строго упорядочены: pending → running → терминальный,
// либо pending → skipped | timeout. Терминальный результат не меняется.
type ServiceResult struct {
	Status      ServiceStatus  `json:"status"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	Error       string         `json:"error,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`

	// Attempts — число HTTP-попыток последнего вызова воркера.
	Attempts int `json:"attempts,omitempty"`
}

// NewServiceResult создаёт результат в статусе PENDING.
func NewServiceResult() *ServiceResult {
	return &ServiceResult{Status: ServiceStatusPending}
}

// IsFinished возвращает true, если результат в терминальном статусе.
func (r *ServiceResult) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит результат в статус RUNNING.
func (r *ServiceResult) MarkRunning(now time.Time) {
	if r.Status != ServiceStatusPending {
		return
	}
	r.Status = ServiceStatusRunning
	r.StartedAt = &now
}

// MarkCompleted переводит результат в статус COMPLETED с payload.
func (r *ServiceResult) MarkCompleted(now time.Time, payload map[string]any) {
	if r.finish(ServiceStatusCompleted, now, "") {
		r.Payload = payload
	}
}

// MarkFailed переводит результат в статус FAILED.
func (r *ServiceResult) MarkFailed(now time.Time, errMsg string) {
	r.finish(ServiceStatusFailed, now, errMsg)
}

// MarkTimeout переводит результат в статус TIMEOUT.
func (r *ServiceResult) MarkTimeout(now time.Time, errMsg string) {
	r.finish(ServiceStatusTimeout, now, errMsg)
}

// MarkSkipped переводит pending-результат в статус SKIPPED.
func (r *ServiceResult) MarkSkipped(now time.Time, reason string) {
	if r.Status != ServiceStatusPending {
		return
	}
	r.finish(ServiceStatusSkipped, now, reason)
}

func (r *ServiceResult) finish(status ServiceStatus, now time.Time, errMsg string) bool {
	if r.Status.IsTerminal() {
		return false
	}
	r.Status = status
	r.CompletedAt = &now
	r.Error = errMsg
	if r.StartedAt != nil {
		r.DurationMs = now.Sub(*r.StartedAt).Milliseconds()
	}
	return true
}

// Clone возвращает копию результата.
func (r *ServiceResult) Clone() ServiceResult {
	c := *r
	if r.Payload != nil {
		c.Payload = make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			c.Payload[k] = v
		}
	}
	return c
}

// RunSummary — неизменяемый итог run.
type RunSummary struct {
	RunID       uuid.UUID `json:"run_id"`
	TenantID    string    `json:"tenant_id"`
	Domain      string    `json:"domain"`
	PlanID      string    `json:"plan_id"`
	Status      RunStatus `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`

	ServicesTotal     int `json:"services_total"`
	ServicesCompleted int `json:"services_completed"`
	ServicesFailed    int `json:"services_failed"`
	ServicesTimeout   int `json:"services_timeout"`
	ServicesSkipped   int `json:"services_skipped"`

	// Results — копии результатов по имени сервиса.
	Results map[string]ServiceResult `json:"results"`

	// DiagnosisID — ссылка на результат синтеза.
	DiagnosisID string `json:"diagnosis_id,omitempty"`

	// SynthesisError — ошибка синтеза; статус выполнения не меняет.
	SynthesisError string `json:"synthesis_error,omitempty"`
}

// RunEventType — тип аудит-события run.
type RunEventType string

const (
	RunEventStarted RunEventType = "run.started"
	RunEventStatus  RunEventType = "run.status"
)

// RunEvent — аудит-факт о run. Пишется один раз, не изменяется.
type RunEvent struct {
	ID       uuid.UUID    `json:"id"`
	Type     RunEventType `json:"type"`
	RunID    uuid.UUID    `json:"run_id"`
	TenantID string       `json:"tenant_id"`
	Domain   string       `json:"domain"`
	PlanID   string       `json:"plan_id"`
	Status   RunStatus    `json:"status"`

	// Summary — заполнен только для run.status.
	Summary *RunSummary `json:"summary,omitempty"`

	At time.Time `json:"at"`
}

// RunRequest — запрос на запуск run (из API, scheduler или очереди).
type RunRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
	Domain   string `json:"domain" validate:"required"`
	PlanID   string `json:"plan_id" validate:"required"`

	// IdempotencyKey — ключ для подавления дубликатов.
	// Для scheduled runs: "{schedule_id}_{next_due_unix}".
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}
