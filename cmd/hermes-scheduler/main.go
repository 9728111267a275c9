// Hermes Scheduler — публикует runs по расписаниям каталога.
//
// Активен только экземпляр, удерживающий advisory lock в Postgres;
// остальные пропускают тики.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kmease-ttc/Hermes-sub004/internal/catalog"
	"github.com/kmease-ttc/Hermes-sub004/internal/config"
	"github.com/kmease-ttc/Hermes-sub004/internal/mq"
	"github.com/kmease-ttc/Hermes-sub004/internal/repo"
	"github.com/kmease-ttc/Hermes-sub004/internal/scheduler"
	"github.com/kmease-ttc/Hermes-sub004/internal/telemetry"
)

const schedLockKey int64 = 424242

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting hermes-scheduler")

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

	sched, err := scheduler.New(scheduler.Config{
		Schedules: cat.Schedules(),
		Publisher: mq.NewPublisher(mqConn, logger),
		State:     repo.NewScheduleRepo(pool),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("invalid schedules", "error", err)
		os.Exit(1)
	}

	// Session-level lock живёт на одном соединении, поэтому держим его отдельно от пула.
	lockConn, err := pool.Acquire(ctx)
	if err != nil {
		logger.Error("failed to acquire lock connection", "error", err)
		os.Exit(1)
	}
	defer lockConn.Release()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr)
		if err := http.ListenAndServe(cfg.HTTP.Addr, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	tk := time.NewTicker(cfg.Scheduler.Tick)
	defer tk.Stop()

	var leader bool
	defer func() {
		if leader {
			if err := repo.AdvisoryUnlock(context.Background(), lockConn, schedLockKey); err != nil {
				logger.Warn("failed to release scheduler lock", "error", err)
			}
		}
	}()

	logger.Info("scheduler loop started", "schedules", len(cat.Schedules()), "tick", cfg.Scheduler.Tick)

	for {
		select {
		case now := <-tk.C:
			if !leader {
				ok, err := repo.TryAdvisoryLock(ctx, lockConn, schedLockKey)
				if err != nil {
					logger.Warn("scheduler lock error", "error", err)
					continue
				}
				if !ok {
					continue
				}
				leader = true
				logger.Info("became scheduler leader")

				if err := sched.Init(ctx, now); err != nil {
					logger.Error("failed to init schedule state", "error", err)
				}
			}

			if err := sched.Tick(ctx, now); err != nil {
				logger.Warn("scheduler tick failed", "error", err)
			}

		case <-ctx.Done():
			logger.Info("hermes-scheduler stopped")
			return
		}
	}
}
