package api

import (
	"net/http"
)

// GetWorkerConfig возвращает статус конфигурации воркера.
// GET /api/v1/workers/{key}/config?tenant_id=...
//
// API-ключ в ответе замаскирован.
func (h *Handler) GetWorkerConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.resolver.Resolve(r.Context(), r.PathValue("key"), r.URL.Query().Get("tenant_id"))
	Success(w, cfg.Redacted())
}
