package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CreateRun запускает run.
// POST /api/v1/runs
//
// По умолчанию run выполняется синхронно и ответ содержит RunSummary.
// С "async": true запрос публикуется в runs.requested и возвращается 202.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := decodeBody(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if req.Async {
		h.enqueueRun(w, r, req)
		return
	}

	if h.runs == nil {
		Unavailable(w, "synchronous runs are not enabled")
		return
	}

	// Run доводится до финализации даже при обрыве соединения клиента.
	summary, err := h.runs.Run(context.WithoutCancel(r.Context()), req.TenantID, req.Domain, req.PlanID)
	if HandleError(w, h.log(r), err) {
		return
	}

	Success(w, summary)
}

func (h *Handler) enqueueRun(w http.ResponseWriter, r *http.Request, req CreateRunRequest) {
	if h.publisher == nil {
		Unavailable(w, "run queue is not configured")
		return
	}

	if h.plans != nil {
		if _, ok := h.plans.Plan(req.PlanID); !ok {
			NotFound(w, "run plan not found: "+req.PlanID)
			return
		}
	}

	if err := h.publisher.PublishRunRequested(r.Context(), req.RunRequest()); err != nil {
		InternalError(w, h.log(r), err)
		return
	}

	h.log(r).Info("run queued",
		"tenant_id", req.TenantID,
		"plan_id", req.PlanID,
		"idempotency_key", req.IdempotencyKey,
	)

	Accepted(w, RunQueuedResponse{
		Status:         "queued",
		TenantID:       req.TenantID,
		Domain:         req.Domain,
		PlanID:         req.PlanID,
		IdempotencyKey: req.IdempotencyKey,
	})
}

// ListRunEvents возвращает журнал событий run.
// GET /api/v1/runs/{id}/events
func (h *Handler) ListRunEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	if h.events == nil {
		Unavailable(w, "run event log is not configured")
		return
	}

	events, err := h.events.ListByRun(r.Context(), id)
	if HandleError(w, h.log(r), err) {
		return
	}
	if len(events) == 0 {
		NotFound(w, "run not found")
		return
	}

	List(w, events, len(events))
}
