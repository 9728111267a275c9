// Hermes Orchestrator — выполняет runs из очереди runs.requested.
//
// Orchestrator:
//   - Получает запросы на запуск из RabbitMQ
//   - Резолвит конфигурацию воркеров и вызывает их волнами по DAG плана
//   - Финализирует runs: итог, синтез диагноза, аудит-события
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kmease-ttc/Hermes-sub004/internal/catalog"
	"github.com/kmease-ttc/Hermes-sub004/internal/config"
	"github.com/kmease-ttc/Hermes-sub004/internal/mq"
	"github.com/kmease-ttc/Hermes-sub004/internal/orchestrator"
	"github.com/kmease-ttc/Hermes-sub004/internal/repo"
	"github.com/kmease-ttc/Hermes-sub004/internal/secrets"
	"github.com/kmease-ttc/Hermes-sub004/internal/synthesis"
	"github.com/kmease-ttc/Hermes-sub004/internal/telemetry"
	"github.com/kmease-ttc/Hermes-sub004/internal/worker"
	"github.com/kmease-ttc/Hermes-sub004/internal/workerconfig"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting hermes-orchestrator")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Error("failed to load catalog", "path", cfg.Catalog.Path, "error", err)
		os.Exit(1)
	}

	pool, err := repo.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
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

	orchCfg := orchestrator.Config{
		Plans: cat,
		Executor: worker.NewExecutor(worker.ExecutorConfig{
			Resolver:        resolver,
			Caller:          caller,
			PollInterval:    cfg.Worker.PollInterval,
			PollMaxAttempts: cfg.Worker.PollMaxAttempts,
			Logger:          logger,
		}),
		Events: orchestrator.MultiSink{
			repo.NewRunEventRepo(pool),
			mq.NewPublisher(mqConn, logger),
		},
		Conn:              mqConn,
		MaxParallel:       cfg.Orchestrator.MaxParallel,
		MaxConcurrentRuns: cfg.Orchestrator.MaxConcurrentRuns,
		SynthesisTimeout:  cfg.Orchestrator.SynthesisTimeout,
		Logger:            logger,
	}
	if cfg.Synthesis.URL != "" {
		orchCfg.Synthesizer = synthesis.New(synthesis.Config{
			URL:    cfg.Synthesis.URL,
			APIKey: cfg.Synthesis.APIKey,
			Logger: logger,
		})
	} else {
		logger.Warn("synthesis url not set, diagnosis step disabled")
	}

	orch := orchestrator.New(orchCfg)
	if err := orch.Start(ctx); err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok active_runs=%d", orch.ActiveRunsCount())
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		if err := http.ListenAndServe(cfg.HTTP.Addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	orch.Stop()
	logger.Info("hermes-orchestrator stopped")
}
