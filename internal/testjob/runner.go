package testjob

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
	"github.com/kmease-ttc/Hermes-sub004/internal/jobstore"
	"github.com/kmease-ttc/Hermes-sub004/internal/telemetry"
	"github.com/kmease-ttc/Hermes-sub004/internal/worker"
)

// Причины пропуска сервиса.
const (
	ReasonMissingBaseURL = "missing base_url"
	ReasonMissingAPIKey  = "missing api_key"
	ReasonCeilingReached = "job time limit reached"
)

// Registry перечисляет воркеры, доступные для проверки.
type Registry interface {
	HTTPWorkers() []domain.WorkerService
}

// Config — конфигурация Runner.
type Config struct {
	Registry Registry
	Resolver worker.ConfigResolver
	Caller   *worker.Caller
	Store    jobstore.Store

	// PollInterval и PollMaxAttempts — опрос smoke-запуска после 202.
	PollInterval    time.Duration
	PollMaxAttempts int

	// JobCeiling — предельное время задачи; 0 — без ограничения.
	JobCeiling time.Duration

	Logger *slog.Logger
}

// Runner выполняет тестовые задачи.
type Runner struct {
	registry        Registry
	resolver        worker.ConfigResolver
	caller          *worker.Caller
	store           jobstore.Store
	pollInterval    time.Duration
	pollMaxAttempts int
	ceiling         time.Duration
	logger          *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// task — сервис, поставленный в очередь задачи.
type task struct {
	service domain.WorkerService
	cfg     domain.WorkerConfig
}

// New создаёт Runner.
func New(cfg Config) *Runner {
	caller := cfg.Caller
	if caller == nil {
		caller = worker.NewCaller(worker.CallerConfig{Logger: cfg.Logger})
	}

	store := cfg.Store
	if store == nil {
		store = jobstore.NewMemory()
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = worker.DefaultPollInterval
	}

	pollMaxAttempts := cfg.PollMaxAttempts
	if pollMaxAttempts <= 0 {
		pollMaxAttempts = worker.DefaultPollMaxAttempts
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		registry:        cfg.Registry,
		resolver:        cfg.Resolver,
		caller:          caller,
		store:           store,
		pollInterval:    pollInterval,
		pollMaxAttempts: pollMaxAttempts,
		ceiling:         cfg.JobCeiling,
		logger:          logger,
	}
}

// StartConnectionTest запускает проверку подключения ко всем HTTP-воркерам.
func (r *Runner) StartConnectionTest(ctx context.Context, tenantID string) (*domain.TestJob, error) {
	return r.start(ctx, domain.JobTypeConnectionAll, tenantID, "")
}

// StartSmokeTest запускает smoke-прогон всех HTTP-воркеров для домена.
func (r *Runner) StartSmokeTest(ctx context.Context, tenantID, domainName string) (*domain.TestJob, error) {
	if domainName == "" {
		return nil, ErrDomainRequired
	}
	return r.start(ctx, domain.JobTypeSmokeAll, tenantID, domainName)
}

// GetJobStatus возвращает текущий снимок задачи.
func (r *Runner) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*domain.TestJob, error) {
	job, ok, err := r.store.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// Close запрещает новые задачи и ждёт завершения текущих.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.wg.Wait()
}

// start — первая фаза: резолв конфигов, сохранение задачи, запуск обработки.
func (r *Runner) start(ctx context.Context, jobType domain.JobType, tenantID, domainName string) (*domain.TestJob, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRunnerClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	job := domain.NewTestJob(tenantID, jobType)
	job.Domain = domainName

	var tasks []task
	for _, svc := range r.registry.HTTPWorkers() {
		cfg := r.resolver.Resolve(ctx, svc.Key, tenantID)
		if reason := skipReason(jobType, cfg); reason != "" {
			job.SetService(svc.Key, domain.ServiceProgress{Status: domain.CheckStatusSkipped, Reason: reason})
			continue
		}
		job.SetService(svc.Key, domain.ServiceProgress{Status: domain.CheckStatusQueued})
		tasks = append(tasks, task{service: svc, cfg: cfg})
	}

	if err := r.store.Save(ctx, job); err != nil {
		r.wg.Done()
		return nil, fmt.Errorf("save job %s: %w", job.ID, err)
	}

	logger := telemetry.WithTenant(telemetry.WithJobID(r.logger, job.ID.String()), tenantID)
	logger.Info("test job started",
		"type", jobType,
		"services", job.Progress.Total,
		"queued", len(tasks),
	)

	snapshot := job.Clone()
	go r.process(context.WithoutCancel(ctx), job, tasks, logger)

	return snapshot, nil
}

// skipReason возвращает причину пропуска или пустую строку.
func skipReason(jobType domain.JobType, cfg domain.WorkerConfig) string {
	if !cfg.Valid && cfg.Error != "" {
		return cfg.Error
	}
	if cfg.BaseURL == "" {
		return ReasonMissingBaseURL
	}
	if jobType == domain.JobTypeSmokeAll && cfg.APIKey == "" {
		return ReasonMissingAPIKey
	}
	return ""
}

// process — вторая фаза: последовательная обработка сервисов.
func (r *Runner) process(ctx context.Context, job *domain.TestJob, tasks []task, logger *slog.Logger) {
	defer r.wg.Done()

	started := time.Now()
	for i, t := range tasks {
		if r.ceiling > 0 && time.Since(started) > r.ceiling {
			for _, rest := range tasks[i:] {
				job.SetService(rest.service.Key, domain.ServiceProgress{
					Status: domain.CheckStatusSkipped,
					Reason: ReasonCeilingReached,
				})
			}
			r.save(ctx, job, logger)
			logger.Warn("test job ceiling reached", "skipped", len(tasks)-i)
			break
		}

		job.SetService(t.service.Key, domain.ServiceProgress{Status: domain.CheckStatusRunning})
		r.save(ctx, job, logger)

		begin := time.Now()
		var p domain.ServiceProgress
		switch job.Type {
		case domain.JobTypeSmokeAll:
			p = r.smoke(ctx, job, t)
		default:
			p = r.connection(ctx, t)
		}
		p.DurationMs = time.Since(begin).Milliseconds()

		job.SetService(t.service.Key, p)
		r.save(ctx, job, logger)

		logger.Debug("service checked",
			"service", t.service.Key,
			"status", p.Status,
			"reason", p.Reason,
			"duration_ms", p.DurationMs,
		)
	}

	job.Finish()
	r.save(ctx, job, logger)
	telemetry.ObserveTestJob(string(job.Type), string(job.Status))

	logger.Info("test job finished",
		"status", job.Status,
		"summary", job.Summary,
		"duration", time.Since(started),
	)
}

// save сохраняет снимок; ошибка хранилища не прерывает задачу.
func (r *Runner) save(ctx context.Context, job *domain.TestJob, logger *slog.Logger) {
	if err := r.store.Save(ctx, job); err != nil {
		logger.Warn("failed to save test job", "error", err)
	}
}

// connection: warmup, проба без токена, проба с токеном при наличии ключа.
func (r *Runner) connection(ctx context.Context, t task) domain.ServiceProgress {
	timeout := r.caller.Timeouts().Invoke
	_, _, _ = r.caller.Warmup(ctx, t.cfg)

	resp, attempt, err := r.caller.Probe(ctx, t.cfg, false, timeout)
	attempts := attempt.Count
	if reason := probeFailure(resp, err); reason != "" {
		return domain.ServiceProgress{
			Status:   domain.CheckStatusFail,
			Reason:   "health check failed: " + reason,
			Attempts: attempts,
		}
	}

	if t.cfg.APIKey != "" {
		resp, attempt, err = r.caller.Probe(ctx, t.cfg, true, timeout)
		attempts += attempt.Count
		if reason := probeFailure(resp, err); reason != "" {
			return domain.ServiceProgress{
				Status:   domain.CheckStatusFail,
				Reason:   "authenticated health check failed: " + reason,
				Attempts: attempts,
			}
		}
	}

	return domain.ServiceProgress{Status: domain.CheckStatusPass, Attempts: attempts}
}

func probeFailure(resp *worker.Response, err error) string {
	if err != nil {
		return err.Error()
	}
	if !resp.OK() {
		return worker.HTTPError(resp)
	}
	return ""
}

// smokeBody — тело smoke-запуска воркера.
type smokeBody struct {
	Domain   string `json:"domain"`
	TenantID string `json:"tenant_id"`
	Mode     string `json:"mode"`
}

// smoke: warmup, запуск в режиме smoke, опрос после 202, сверка outputs.
func (r *Runner) smoke(ctx context.Context, job *domain.TestJob, t task) domain.ServiceProgress {
	_, _, _ = r.caller.Warmup(ctx, t.cfg)

	resp, attempt, err := r.caller.Call(ctx, worker.Request{
		Method: http.MethodPost,
		URL:    t.cfg.BaseURL + t.cfg.StartPath,
		Body:   smokeBody{Domain: job.Domain, TenantID: job.TenantID, Mode: "smoke"},
		APIKey: t.cfg.APIKey,
	}, r.caller.Timeouts().Smoke)

	fail := func(reason string) domain.ServiceProgress {
		return domain.ServiceProgress{Status: domain.CheckStatusFail, Reason: reason, Attempts: attempt.Count}
	}

	if err != nil {
		return fail(err.Error())
	}

	var result map[string]any
	switch {
	case resp.StatusCode == http.StatusAccepted:
		jobID, ok := worker.JobID(resp.JSON)
		if !ok {
			return fail(worker.ErrNoJobID.Error())
		}
		res := r.caller.PollJob(ctx, t.cfg, jobID, r.pollInterval, r.pollMaxAttempts)
		if res.State != worker.PollCompleted {
			return fail(res.Error)
		}
		result = res.Result
	case resp.OK():
		if worker.IsFailureStatus(worker.BodyStatus(resp.JSON)) {
			return fail(worker.BodyError(resp.JSON))
		}
		result = resp.JSON
	default:
		return fail(worker.HTTPError(resp))
	}

	c := ClassifyOutputs(t.service.ExpectedOutputs, result)
	p := domain.ServiceProgress{
		Status:   c.Status,
		Attempts: attempt.Count,
		Missing:  c.Missing,
		Present:  c.Present,
	}
	if len(c.Missing) > 0 {
		p.Reason = fmt.Sprintf("missing outputs: %v", c.Missing)
	}
	return p
}
