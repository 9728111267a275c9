package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)

	// Runs
	mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.CreateRun)))
	mux.Handle("GET /api/v1/runs/{id}/events", chain(http.HandlerFunc(h.ListRunEvents)))

	// Plans
	mux.Handle("GET /api/v1/plans", chain(http.HandlerFunc(h.ListPlans)))
	mux.Handle("GET /api/v1/plans/{id}", chain(http.HandlerFunc(h.GetPlan)))

	// Test jobs
	mux.Handle("POST /api/v1/tenants/{tenant}/tests/connection", chain(http.HandlerFunc(h.StartConnectionTest)))
	mux.Handle("POST /api/v1/tenants/{tenant}/tests/smoke", chain(http.HandlerFunc(h.StartSmokeTest)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))

	// Workers
	mux.Handle("GET /api/v1/workers/{key}/config", chain(http.HandlerFunc(h.GetWorkerConfig)))
}
