package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ServiceProgress — состояние проверки одного сервиса.
type ServiceProgress struct {
	Status     CheckStatus `json:"status"`
	Reason     string      `json:"reason,omitempty"`
	DurationMs int64       `json:"duration_ms,omitempty"`
	Attempts   int         `json:"attempts,omitempty"`

	// Missing и Present — результат сверки outputs в smoke-режиме.
	Missing []string `json:"missing,omitempty"`
	Present []string `json:"present,omitempty"`
}

// Progress — прогресс тестовой задачи.
type Progress struct {
	Services  map[string]ServiceProgress `json:"services"`
	Total     int                        `json:"total"`
	Processed int                        `json:"processed"`
	Passed    int                        `json:"passed"`
	Partial   int                        `json:"partial"`
	Failed    int                        `json:"failed"`
	Skipped   int                        `json:"skipped"`
}

// TestJob — пользовательская тестовая задача (connection или smoke).
//
// Создаётся в статусе RUNNING, обновляется после каждого сервиса,
// терминальна после обработки всех сервисов.
type TestJob struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Domain      string     `json:"domain,omitempty"`
	Type        JobType    `json:"type"`
	Status      JobStatus  `json:"status"`
	Progress    Progress   `json:"progress"`
	Summary     string     `json:"summary,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTestJob создаёт задачу в статусе RUNNING.
func NewTestJob(tenantID string, jobType JobType) *TestJob {
	now := time.Now()
	return &TestJob{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Type:      jobType,
		Status:    JobStatusRunning,
		Progress:  Progress{Services: make(map[string]ServiceProgress)},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetService обновляет состояние сервиса и пересчитывает счётчики.
func (j *TestJob) SetService(key string, p ServiceProgress) {
	if j.Progress.Services == nil {
		j.Progress.Services = make(map[string]ServiceProgress)
	}
	j.Progress.Services[key] = p
	j.recount()
	j.UpdatedAt = time.Now()
}

func (j *TestJob) recount() {
	p := &j.Progress
	p.Total = len(p.Services)
	p.Processed, p.Passed, p.Partial, p.Failed, p.Skipped = 0, 0, 0, 0, 0
	for _, s := range p.Services {
		switch s.Status {
		case CheckStatusPass:
			p.Passed++
		case CheckStatusPartial:
			p.Partial++
		case CheckStatusFail:
			p.Failed++
		case CheckStatusSkipped:
			p.Skipped++
		default:
			continue
		}
		p.Processed++
	}
}

// Finish переводит задачу в терминальный статус по счётчикам.
func (j *TestJob) Finish() {
	now := time.Now()
	j.recount()
	if j.Progress.Failed > 0 {
		j.Status = JobStatusFailed
	} else {
		j.Status = JobStatusDone
	}
	j.Summary = j.Progress.String()
	j.UpdatedAt = now
	j.CompletedAt = &now
}

// Clone возвращает глубокую копию задачи.
func (j *TestJob) Clone() *TestJob {
	c := *j
	c.Progress.Services = make(map[string]ServiceProgress, len(j.Progress.Services))
	for k, v := range j.Progress.Services {
		v.Missing = append([]string(nil), v.Missing...)
		v.Present = append([]string(nil), v.Present...)
		c.Progress.Services[k] = v
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// String формирует читаемую сводку по счётчикам.
func (p Progress) String() string {
	s := fmt.Sprintf("%d/%d passed", p.Passed, p.Total)
	if p.Partial > 0 {
		s += fmt.Sprintf(", %d partial", p.Partial)
	}
	if p.Failed > 0 {
		s += fmt.Sprintf(", %d failed", p.Failed)
	}
	if p.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", p.Skipped)
	}
	return s
}
