package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
	"github.com/kmease-ttc/Hermes-sub004/internal/telemetry"
)

// RunService — синхронный запуск run (orchestrator.Orchestrator).
type RunService interface {
	Run(ctx context.Context, tenantID, domainName, planID string) (*domain.RunSummary, error)
}

// RunPublisher — асинхронный запуск через очередь (mq.Publisher).
type RunPublisher interface {
	PublishRunRequested(ctx context.Context, req domain.RunRequest) error
}

// PlanCatalog — источник планов (catalog.Catalog).
type PlanCatalog interface {
	Plan(id string) (*domain.RunPlan, bool)
	Plans() []*domain.RunPlan
}

// TestRunner — тестовые задачи (testjob.Runner).
type TestRunner interface {
	StartConnectionTest(ctx context.Context, tenantID string) (*domain.TestJob, error)
	StartSmokeTest(ctx context.Context, tenantID, domainName string) (*domain.TestJob, error)
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (*domain.TestJob, error)
}

// ConfigResolver — резолвер конфигурации воркеров (workerconfig.Resolver).
type ConfigResolver interface {
	Resolve(ctx context.Context, workerKey, tenantID string) domain.WorkerConfig
}

// EventLog — журнал событий run (repo.RunEventRepo).
type EventLog interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunEvent, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs      RunService
	publisher RunPublisher
	plans     PlanCatalog
	tests     TestRunner
	resolver  ConfigResolver
	events    EventLog
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
//
// Publisher и Events опциональны: без них асинхронный запуск
// и журнал событий отвечают 503.
type Config struct {
	Runs      RunService
	Publisher RunPublisher
	Plans     PlanCatalog
	Tests     TestRunner
	Resolver  ConfigResolver
	Events    EventLog
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		runs:      cfg.Runs,
		publisher: cfg.Publisher,
		plans:     cfg.Plans,
		tests:     cfg.Tests,
		resolver:  cfg.Resolver,
		events:    cfg.Events,
		logger:    logger,
	}
}

// log возвращает логгер запроса из Logging, иначе логгер Handler.
func (h *Handler) log(r *http.Request) *slog.Logger {
	if _, ok := r.Context().Value(telemetry.CtxLogger).(*slog.Logger); ok {
		return telemetry.FromContext(r.Context())
	}
	return h.logger
}
