// Hermes API — HTTP-интерфейс запуска планов и тестовых задач.
//
// Синхронные runs выполняются в процессе, асинхронные публикуются
// в runs.requested (при доступном RabbitMQ).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kmease-ttc/Hermes-sub004/internal/api"
	"github.com/kmease-ttc/Hermes-sub004/internal/catalog"
	"github.com/kmease-ttc/Hermes-sub004/internal/config"
	"github.com/kmease-ttc/Hermes-sub004/internal/jobstore"
	"github.com/kmease-ttc/Hermes-sub004/internal/mq"
	"github.com/kmease-ttc/Hermes-sub004/internal/orchestrator"
	"github.com/kmease-ttc/Hermes-sub004/internal/repo"
	"github.com/kmease-ttc/Hermes-sub004/internal/secrets"
	"github.com/kmease-ttc/Hermes-sub004/internal/synthesis"
	"github.com/kmease-ttc/Hermes-sub004/internal/telemetry"
	"github.com/kmease-ttc/Hermes-sub004/internal/testjob"
	"github.com/kmease-ttc/Hermes-sub004/internal/worker"
	"github.com/kmease-ttc/Hermes-sub004/internal/workerconfig"
)

var startTime = time.Now()

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting hermes-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Error("failed to load catalog", "path", cfg.Catalog.Path, "error", err)
		os.Exit(1)
	}
	logger.Info("catalog loaded", "path", cfg.Catalog.Path, "plans", len(cat.Plans()))

	// Postgres нужен журналу событий и postgres-бэкендам; без него API работает в памяти.
	needDB := cfg.Secrets.Backend == "postgres" || cfg.JobStore.Backend == "postgres"
	pool, err := repo.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		if needDB {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		logger.Warn("database not available, run events disabled", "error", err)
		pool = nil
	} else {
		defer pool.Close()
		logger.Info("database connected")
	}

	var secretStore secrets.Store = secrets.NewEnvStore(cfg.Secrets.EnvPrefix)
	if cfg.Secrets.Backend == "postgres" {
		secretStore = repo.NewSecretRepo(pool)
	}
	resolver := workerconfig.NewResolver(cat, secretStore)

	caller := worker.NewCaller(worker.CallerConfig{
		ColdStartBackoff: cfg.Worker.ColdStartBackoff,
		Timeouts: worker.Timeouts{
			Warmup: cfg.Worker.WarmupTimeout,
			Invoke: cfg.Worker.InvokeTimeout,
			Smoke:  cfg.Worker.SmokeTimeout,
			Status: cfg.Worker.StatusTimeout,
		},
		Logger: logger,
	})

	store, closeStore, err := openJobStore(ctx, cfg, pool)
	if err != nil {
		logger.Error("failed to open job store", "backend", cfg.JobStore.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	tests := testjob.New(testjob.Config{
		Registry:        cat,
		Resolver:        resolver,
		Caller:          caller,
		Store:           store,
		PollInterval:    cfg.Worker.PollInterval,
		PollMaxAttempts: cfg.Worker.PollMaxAttempts,
		JobCeiling:      cfg.TestJob.Ceiling,
		Logger:          logger,
	})
	defer tests.Close()

	// RabbitMQ опционален: без него нет асинхронных runs и публикации событий.
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Warn("rabbitmq not available, async runs disabled", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	var sinks orchestrator.MultiSink
	var eventLog api.EventLog
	if pool != nil {
		events := repo.NewRunEventRepo(pool)
		sinks = append(sinks, events)
		eventLog = events
	}
	if publisher != nil {
		sinks = append(sinks, publisher)
	}

	orchCfg := orchestrator.Config{
		Plans: cat,
		Executor: worker.NewExecutor(worker.ExecutorConfig{
			Resolver:        resolver,
			Caller:          caller,
			PollInterval:    cfg.Worker.PollInterval,
			PollMaxAttempts: cfg.Worker.PollMaxAttempts,
			Logger:          logger,
		}),
		Events:           sinks,
		MaxParallel:      cfg.Orchestrator.MaxParallel,
		SynthesisTimeout: cfg.Orchestrator.SynthesisTimeout,
		Logger:           logger,
	}
	if cfg.Synthesis.URL != "" {
		orchCfg.Synthesizer = synthesis.New(synthesis.Config{
			URL:    cfg.Synthesis.URL,
			APIKey: cfg.Synthesis.APIKey,
			Logger: logger,
		})
	}
	orch := orchestrator.New(orchCfg)

	handlerCfg := api.Config{
		Runs:     orch,
		Plans:    cat,
		Tests:    tests,
		Resolver: resolver,
		Events:   eventLog,
		Logger:   logger,
	}
	if publisher != nil {
		handlerCfg.Publisher = publisher
	}
	handler := api.NewHandler(handlerCfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	orch.Stop()

	logger.Info("stopped")
}

// openJobStore выбирает хранилище тестовых задач по jobstore.backend.
func openJobStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (jobstore.Store, func(), error) {
	switch cfg.JobStore.Backend {
	case "", "memory":
		return jobstore.NewMemory(), func() {}, nil
	case "redis":
		store, err := jobstore.NewRedis(ctx, jobstore.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.JobStore.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("failed to close redis job store", "error", err)
			}
		}, nil
	case "postgres":
		if pool == nil {
			return nil, nil, errors.New("postgres job store requires a database")
		}
		return repo.NewJobRepo(pool), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown job store backend %q", cfg.JobStore.Backend)
	}
}
