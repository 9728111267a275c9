package api

import (
	"net/http"
)

// ListPlans возвращает список планов.
// GET /api/v1/plans
func (h *Handler) ListPlans(w http.ResponseWriter, _ *http.Request) {
	plans := h.plans.Plans()

	result := make([]PlanSummary, len(plans))
	for i, p := range plans {
		result[i] = PlanSummaryFromDomain(p)
	}

	List(w, result, len(result))
}

// GetPlan возвращает план целиком.
// GET /api/v1/plans/{id}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	plan, ok := h.plans.Plan(id)
	if !ok {
		NotFound(w, "run plan not found: "+id)
		return
	}

	Success(w, plan)
}
