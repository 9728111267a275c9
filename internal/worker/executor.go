package worker

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// ConfigResolver резолвит конфигурацию воркера.
type ConfigResolver interface {
	Resolve(ctx context.Context, workerKey, tenantID string) domain.WorkerConfig
}

// Invocation — одно выполнение сервиса в рамках run.
type Invocation struct {
	Service  domain.ServiceDefinition
	TenantID string
	Domain   string
	RunID    uuid.UUID
}

// Outcome — нормализованный результат выполнения сервиса.
//
// Status — один из completed, failed, timeout.
type Outcome struct {
	Status   domain.ServiceStatus
	Payload  map[string]any
	Error    string
	Attempts int
	Duration time.Duration
}

// ExecutorConfig — конфигурация Executor.
type ExecutorConfig struct {
	Resolver ConfigResolver
	Caller   *Caller

	// PollInterval и PollMaxAttempts — опрос задачи после 202.
	PollInterval    time.Duration
	PollMaxAttempts int

	Logger *slog.Logger
}

// Executor вызывает воркер для одного сервиса плана.
type Executor struct {
	resolver        ConfigResolver
	caller          *Caller
	pollInterval    time.Duration
	pollMaxAttempts int
	logger          *slog.Logger
}

// NewExecutor создаёт Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	caller := cfg.Caller
	if caller == nil {
		caller = NewCaller(CallerConfig{Logger: cfg.Logger})
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	pollMaxAttempts := cfg.PollMaxAttempts
	if pollMaxAttempts <= 0 {
		pollMaxAttempts = DefaultPollMaxAttempts
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		resolver:        cfg.Resolver,
		caller:          caller,
		pollInterval:    pollInterval,
		pollMaxAttempts: pollMaxAttempts,
		logger:          logger,
	}
}

// runBody — тело запроса запуска воркера.
type runBody struct {
	Domain   string `json:"domain"`
	TenantID string `json:"tenant_id"`
	RunID    string `json:"run_id"`
	Service  string `json:"service"`
}

// Execute выполняет сервис и возвращает Outcome. Ошибки не возвращаются.
func (e *Executor) Execute(ctx context.Context, inv Invocation) Outcome {
	start := time.Now()
	out := e.execute(ctx, inv)
	out.Duration = time.Since(start)

	e.logger.Debug("service executed",
		"run_id", inv.RunID,
		"service", inv.Service.Name,
		"status", out.Status,
		"attempts", out.Attempts,
		"duration", out.Duration,
	)
	return out
}

func (e *Executor) execute(ctx context.Context, inv Invocation) Outcome {
	cfg := e.resolver.Resolve(ctx, inv.Service.WorkerKey, inv.TenantID)
	if !cfg.Valid {
		return failed(cfg.Error, 0)
	}
	if cfg.BaseURL == "" {
		return failed(ErrNoBaseURL.Error(), 0)
	}

	req := Request{
		Method: http.MethodPost,
		URL:    cfg.BaseURL + cfg.StartPath,
		APIKey: cfg.APIKey,
		Body: runBody{
			Domain:   inv.Domain,
			TenantID: inv.TenantID,
			RunID:    inv.RunID.String(),
			Service:  inv.Service.Name,
		},
		Header: http.Header{"X-Run-Id": []string{inv.RunID.String()}},
	}

	resp, attempt, err := e.caller.Call(ctx, req, e.caller.Timeouts().Invoke)
	if err != nil {
		if attempt.LastErrorClass == ClassTimeout {
			return Outcome{Status: domain.ServiceStatusTimeout, Error: err.Error(), Attempts: attempt.Count}
		}
		return failed(err.Error(), attempt.Count)
	}

	switch {
	case resp.StatusCode == http.StatusAccepted:
		return e.await(ctx, cfg, resp, attempt.Count)
	case resp.OK():
		if resp.JSON == nil {
			return Outcome{Status: domain.ServiceStatusCompleted, Attempts: attempt.Count}
		}
		if IsFailureStatus(BodyStatus(resp.JSON)) {
			return failed(BodyError(resp.JSON), attempt.Count)
		}
		return Outcome{Status: domain.ServiceStatusCompleted, Payload: ResultPayload(resp.JSON), Attempts: attempt.Count}
	default:
		return failed(HTTPError(resp), attempt.Count)
	}
}

// await опрашивает асинхронную задачу воркера после 202.
func (e *Executor) await(ctx context.Context, cfg domain.WorkerConfig, resp *Response, attempts int) Outcome {
	jobID, ok := JobID(resp.JSON)
	if !ok {
		return failed(ErrNoJobID.Error(), attempts)
	}

	res := e.caller.PollJob(ctx, cfg, jobID, e.pollInterval, e.pollMaxAttempts)
	switch res.State {
	case PollCompleted:
		return Outcome{Status: domain.ServiceStatusCompleted, Payload: res.Result, Attempts: attempts}
	case PollFailed:
		return failed(res.Error, attempts)
	default:
		return Outcome{Status: domain.ServiceStatusTimeout, Error: res.Error, Attempts: attempts}
	}
}

func failed(msg string, attempts int) Outcome {
	return Outcome{Status: domain.ServiceStatusFailed, Error: msg, Attempts: attempts}
}
