package api

import (
	"net/http"

	"github.com/google/uuid"
)

// StartConnectionTest запускает проверку подключения всех воркеров.
// POST /api/v1/tenants/{tenant}/tests/connection
func (h *Handler) StartConnectionTest(w http.ResponseWriter, r *http.Request) {
	job, err := h.tests.StartConnectionTest(r.Context(), r.PathValue("tenant"))
	if HandleError(w, h.log(r), err) {
		return
	}

	Accepted(w, job)
}

// StartSmokeTest запускает smoke-прогон всех воркеров.
// POST /api/v1/tenants/{tenant}/tests/smoke
func (h *Handler) StartSmokeTest(w http.ResponseWriter, r *http.Request) {
	var req StartSmokeTestRequest
	if err := decodeBody(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	job, err := h.tests.StartSmokeTest(r.Context(), r.PathValue("tenant"), req.Domain)
	if HandleError(w, h.log(r), err) {
		return
	}

	Accepted(w, job)
}

// GetJob возвращает текущее состояние тестовой задачи.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	job, err := h.tests.GetJobStatus(r.Context(), id)
	if HandleError(w, h.log(r), err) {
		return
	}

	Success(w, job)
}
