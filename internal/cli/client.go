package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go и domain, CLI не импортирует internal) ---

// ServiceResult — результат сервиса в сводке run.
type ServiceResult struct {
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	Attempts   int    `json:"attempts"`
}

// RunSummary — итог run из API.
type RunSummary struct {
	RunID             string                   `json:"run_id"`
	TenantID          string                   `json:"tenant_id"`
	Domain            string                   `json:"domain"`
	PlanID            string                   `json:"plan_id"`
	Status            string                   `json:"status"`
	StartedAt         string                   `json:"started_at"`
	CompletedAt       string                   `json:"completed_at"`
	DurationMs        int64                    `json:"duration_ms"`
	ServicesTotal     int                      `json:"services_total"`
	ServicesCompleted int                      `json:"services_completed"`
	ServicesFailed    int                      `json:"services_failed"`
	ServicesTimeout   int                      `json:"services_timeout"`
	ServicesSkipped   int                      `json:"services_skipped"`
	Results           map[string]ServiceResult `json:"results"`
	DiagnosisID       string                   `json:"diagnosis_id,omitempty"`
	SynthesisError    string                   `json:"synthesis_error,omitempty"`
}

// RunQueued — ответ на асинхронный запуск.
type RunQueued struct {
	Status         string `json:"status"`
	TenantID       string `json:"tenant_id"`
	Domain         string `json:"domain"`
	PlanID         string `json:"plan_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// RunEvent — событие журнала run.
type RunEvent struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	At     string `json:"at"`
}

// PlanSummary — план в списке.
type PlanSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	Services         int    `json:"services"`
	MaxRunDurationMs int64  `json:"max_run_duration_ms"`
}

// PlanService — сервис плана.
type PlanService struct {
	Name      string   `json:"name"`
	WorkerKey string   `json:"worker_key"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// Plan — план целиком.
type Plan struct {
	ID               string        `json:"id"`
	Name             string        `json:"name,omitempty"`
	Services         []PlanService `json:"services"`
	MaxRunDurationMs int64         `json:"max_run_duration_ms"`
}

// ServiceProgress — состояние проверки сервиса в тестовой задаче.
type ServiceProgress struct {
	Status     string   `json:"status"`
	Reason     string   `json:"reason,omitempty"`
	DurationMs int64    `json:"duration_ms,omitempty"`
	Attempts   int      `json:"attempts,omitempty"`
	Missing    []string `json:"missing,omitempty"`
}

// TestJob — тестовая задача из API.
type TestJob struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Domain   string `json:"domain,omitempty"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Progress struct {
		Services  map[string]ServiceProgress `json:"services"`
		Total     int                        `json:"total"`
		Processed int                        `json:"processed"`
		Passed    int                        `json:"passed"`
		Partial   int                        `json:"partial"`
		Failed    int                        `json:"failed"`
		Skipped   int                        `json:"skipped"`
	} `json:"progress"`
	Summary     string `json:"summary,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Finished возвращает true для терминального статуса.
func (j *TestJob) Finished() bool {
	return j.Status == "done" || j.Status == "failed"
}

// WorkerConfig — статус конфигурации воркера (ключ замаскирован).
type WorkerConfig struct {
	ServiceKey string `json:"service_key"`
	TenantID   string `json:"tenant_id,omitempty"`
	SecretName string `json:"secret_name"`
	Status     string `json:"status"`
	BaseURL    string `json:"base_url,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
}

// --- Request types ---

// CreateRunRequest — запуск run.
type CreateRunRequest struct {
	TenantID       string `json:"tenant_id"`
	Domain         string `json:"domain"`
	PlanID         string `json:"plan_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Async          bool   `json:"async,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Hermes API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout меняет таймаут запросов (синхронный run может идти долго).
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// --- Runs ---

// StartRun запускает run синхронно и возвращает сводку.
func (c *Client) StartRun(req CreateRunRequest) (*RunSummary, error) {
	req.Async = false
	var summary RunSummary
	err := c.post("/api/v1/runs", req, &summary)
	return &summary, err
}

// QueueRun ставит run в очередь.
func (c *Client) QueueRun(req CreateRunRequest) (*RunQueued, error) {
	req.Async = true
	var queued RunQueued
	err := c.post("/api/v1/runs", req, &queued)
	return &queued, err
}

// ListRunEvents возвращает журнал событий run.
func (c *Client) ListRunEvents(runID string) ([]RunEvent, error) {
	var events []RunEvent
	err := c.list("/api/v1/runs/"+url.PathEscape(runID)+"/events", nil, &events)
	return events, err
}

// --- Plans ---

// ListPlans возвращает планы каталога.
func (c *Client) ListPlans() ([]PlanSummary, error) {
	var plans []PlanSummary
	err := c.list("/api/v1/plans", nil, &plans)
	return plans, err
}

// GetPlan возвращает план по ID.
func (c *Client) GetPlan(id string) (*Plan, error) {
	var plan Plan
	err := c.get("/api/v1/plans/"+url.PathEscape(id), &plan)
	return &plan, err
}

// --- Test jobs ---

// StartConnectionTest запускает проверку подключения.
func (c *Client) StartConnectionTest(tenantID string) (*TestJob, error) {
	var job TestJob
	err := c.post("/api/v1/tenants/"+url.PathEscape(tenantID)+"/tests/connection", nil, &job)
	return &job, err
}

// StartSmokeTest запускает smoke-прогон.
func (c *Client) StartSmokeTest(tenantID, domain string) (*TestJob, error) {
	var job TestJob
	body := map[string]string{"domain": domain}
	err := c.post("/api/v1/tenants/"+url.PathEscape(tenantID)+"/tests/smoke", body, &job)
	return &job, err
}

// GetJob возвращает состояние тестовой задачи.
func (c *Client) GetJob(id string) (*TestJob, error) {
	var job TestJob
	err := c.get("/api/v1/jobs/"+url.PathEscape(id), &job)
	return &job, err
}

// WaitJob опрашивает задачу до терминального статуса или истечения timeout.
func (c *Client) WaitJob(id string, interval, timeout time.Duration) (*TestJob, error) {
	deadline := time.Now().Add(timeout)
	for {
		job, err := c.GetJob(id)
		if err != nil {
			return nil, err
		}
		if job.Finished() {
			return job, nil
		}
		if time.Now().After(deadline) {
			return job, fmt.Errorf("job %s still %s after %s", id, job.Status, timeout)
		}
		time.Sleep(interval)
	}
}

// --- Workers ---

// GetWorkerConfig возвращает статус конфигурации воркера.
func (c *Client) GetWorkerConfig(key, tenantID string) (*WorkerConfig, error) {
	path := "/api/v1/workers/" + url.PathEscape(key) + "/config"
	if tenantID != "" {
		path += "?" + url.Values{"tenant_id": {tenantID}}.Encode()
	}
	var cfg WorkerConfig
	err := c.get(path, &cfg)
	return &cfg, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
