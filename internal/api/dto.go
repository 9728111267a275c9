package api

import (
	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// CreateRunRequest — запрос на запуск run.
type CreateRunRequest struct {
	TenantID       string `json:"tenant_id" validate:"required"`
	Domain         string `json:"domain" validate:"required"`
	PlanID         string `json:"plan_id" validate:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// Async — поставить run в очередь и вернуть 202 сразу.
	Async bool `json:"async,omitempty"`
}

// RunRequest конвертирует запрос в domain.RunRequest.
func (r CreateRunRequest) RunRequest() domain.RunRequest {
	return domain.RunRequest{
		TenantID:       r.TenantID,
		Domain:         r.Domain,
		PlanID:         r.PlanID,
		IdempotencyKey: r.IdempotencyKey,
	}
}

// RunQueuedResponse — ответ на асинхронный запуск.
type RunQueuedResponse struct {
	Status         string `json:"status"`
	TenantID       string `json:"tenant_id"`
	Domain         string `json:"domain"`
	PlanID         string `json:"plan_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// StartSmokeTestRequest — запрос на smoke-тест.
type StartSmokeTestRequest struct {
	Domain string `json:"domain" validate:"required"`
}

// PlanSummary — краткое описание плана в списке.
type PlanSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	Services         int    `json:"services"`
	MaxRunDurationMs int64  `json:"max_run_duration_ms"`
}

// PlanSummaryFromDomain конвертирует domain.RunPlan в PlanSummary.
func PlanSummaryFromDomain(p *domain.RunPlan) PlanSummary {
	return PlanSummary{
		ID:               p.ID,
		Name:             p.Name,
		Services:         len(p.Services),
		MaxRunDurationMs: p.MaxRunDurationMs,
	}
}
