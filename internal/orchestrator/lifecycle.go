package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
	"github.com/kmease-ttc/Hermes-sub004/internal/engine"
	"github.com/kmease-ttc/Hermes-sub004/internal/telemetry"
	"github.com/kmease-ttc/Hermes-sub004/internal/worker"
)

// Причины, записываемые в результаты сервисов.
const (
	reasonDependencyFailed = "dependency failed or timed out"
	reasonRunDeadline      = "run deadline exceeded"
	reasonUnresolved       = "service did not finish before run finalized"
)

// Run выполняет run целиком: StartRun → EnqueueRunJobs → WaitForRun → FinalizeRun.
//
// Ошибка возвращается только если план отклонён; сбои сервисов
// отражаются в RunSummary.
func (o *Orchestrator) Run(ctx context.Context, tenantID, domainName, planID string) (*domain.RunSummary, error) {
	state, err := o.StartRun(ctx, tenantID, domainName, planID)
	if err != nil {
		return nil, err
	}

	o.EnqueueRunJobs(ctx, state)
	o.WaitForRun(state)
	return o.FinalizeRun(ctx, state)
}

// StartRun валидирует план, создаёт RunState и пишет событие run.started.
// Возвращённый state находится в статусе RUNNING.
func (o *Orchestrator) StartRun(ctx context.Context, tenantID, domainName, planID string) (*RunState, error) {
	plan, ok := o.plans.Plan(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}

	if err := engine.Validate(plan); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	dag, err := engine.BuildDAG(plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	state := NewRunState(tenantID, domainName, plan, dag, o.now())

	o.runLogger(state).Info("run started",
		"plan_id", plan.ID,
		"services", len(plan.Services),
		"timeout_at", state.TimeoutAt,
	)

	o.emit(ctx, state, domain.RunEventStarted, nil)
	state.setStatus(domain.RunStatusRunning)

	return state, nil
}

// EnqueueRunJobs выполняет сервисы волнами.
//
// Волна — pending-сервисы, все зависимости которых COMPLETED. Если готовых
// нет, а pending остались, их зависимости упали: они помечаются SKIPPED.
// После каждой волны проверяется дедлайн run. Отмена ctx волны не
// останавливает: run доводится до конца или до дедлайна.
func (o *Orchestrator) EnqueueRunJobs(ctx context.Context, state *RunState) {
	logger := o.runLogger(state)

	for wave := 1; state.Status() == domain.RunStatusRunning; wave++ {
		ready := state.DAG.ReadyNodes(state.Statuses())
		if len(ready) == 0 {
			if skipped := state.SkipPending(reasonDependencyFailed, o.now()); len(skipped) > 0 {
				logger.Info("services skipped", "services", skipped, "reason", reasonDependencyFailed)
			}
			return
		}

		names := make([]string, len(ready))
		for i, node := range ready {
			names[i] = node.Name
		}
		logger.Debug("wave started", "wave", wave, "services", names)

		o.runWave(ctx, state, ready)

		if o.now().After(state.TimeoutAt) {
			if skipped := state.SkipBlocked(reasonDependencyFailed, o.now()); len(skipped) > 0 {
				logger.Info("services skipped", "services", skipped, "reason", reasonDependencyFailed)
			}
			state.setStatus(domain.RunStatusTimeout)
			logger.Warn("run deadline reached", "wave", wave, "timeout_at", state.TimeoutAt)
			return
		}
	}
}

// runWave выполняет сервисы волны параллельно и ждёт всех.
func (o *Orchestrator) runWave(ctx context.Context, state *RunState, ready []*engine.Node) {
	var g errgroup.Group
	if o.maxParallel > 0 {
		g.SetLimit(o.maxParallel)
	}

	for _, node := range ready {
		svc := node.Service
		g.Go(func() error {
			state.MarkRunning(svc.Name, o.now())
			out := o.execute(ctx, state, svc)
			state.Apply(svc.Name, out, o.now())
			return nil
		})
	}

	_ = g.Wait()
}

// execute вызывает executor и перехватывает панику.
func (o *Orchestrator) execute(ctx context.Context, state *RunState, svc domain.ServiceDefinition) (out worker.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.runLogger(state).Error("service panicked", "service", svc.Name, "panic", r)
			out = worker.Outcome{Status: domain.ServiceStatusFailed, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	return o.executor.Execute(ctx, worker.Invocation{
		Service:  svc,
		TenantID: state.TenantID,
		Domain:   state.Domain,
		RunID:    state.RunID,
	})
}

// WaitForRun проверяет дедлайн run.
//
// Если run всё ещё RUNNING и дедлайн прошёл, незавершённые сервисы
// переводятся в TIMEOUT, а run в TIMEOUT. Повторный вызов ничего не меняет.
func (o *Orchestrator) WaitForRun(state *RunState) {
	if state == nil || state.Status() != domain.RunStatusRunning {
		return
	}

	now := o.now()
	if !now.After(state.TimeoutAt) {
		return
	}

	n := state.TimeoutUnresolved(reasonRunDeadline, now)
	state.setStatus(domain.RunStatusTimeout)

	o.runLogger(state).Warn("run timed out", "unresolved_services", n)
}

// FinalizeRun подводит итог run.
//
// Незавершённые сервисы переводятся в TIMEOUT. Итоговый статус:
// TIMEOUT, если run уже истёк; FAILED, если были сбои и ни одного успеха;
// иначе COMPLETED. Ошибка синтеза записывается в SynthesisError и не
// меняет статус. Повторный вызов возвращает тот же итог.
func (o *Orchestrator) FinalizeRun(ctx context.Context, state *RunState) (*domain.RunSummary, error) {
	if state == nil {
		return nil, ErrNilState
	}
	if summary, ok := state.Summary(); ok {
		return summary, nil
	}

	// Финализация выполняется и после отмены ctx run.
	ctx = context.WithoutCancel(ctx)
	logger := o.runLogger(state)

	now := o.now()
	state.TimeoutUnresolved(reasonUnresolved, now)

	stats := state.Stats()
	status := domain.RunStatusCompleted
	switch {
	case state.Status() == domain.RunStatusTimeout:
		status = domain.RunStatusTimeout
	case stats.Failed+stats.Timeout > 0 && stats.Completed == 0:
		status = domain.RunStatusFailed
	}
	state.setStatus(status)

	summary := &domain.RunSummary{
		RunID:             state.RunID,
		TenantID:          state.TenantID,
		Domain:            state.Domain,
		PlanID:            state.Plan.ID,
		Status:            status,
		StartedAt:         state.StartedAt,
		CompletedAt:       now,
		DurationMs:        now.Sub(state.StartedAt).Milliseconds(),
		ServicesTotal:     stats.Total,
		ServicesCompleted: stats.Completed,
		ServicesFailed:    stats.Failed,
		ServicesTimeout:   stats.Timeout,
		ServicesSkipped:   stats.Skipped,
		Results:           state.Results(),
	}

	if o.synth != nil {
		diagnosisID, err := o.synthesize(ctx, state)
		if err != nil {
			summary.SynthesisError = err.Error()
			logger.Warn("synthesis failed", "error", err)
		} else {
			summary.DiagnosisID = diagnosisID
		}
	}

	state.setSummary(summary)
	o.emit(ctx, state, domain.RunEventStatus, summary)

	telemetry.ObserveRun(string(status), now.Sub(state.StartedAt))
	for _, r := range summary.Results {
		telemetry.ObserveService(string(r.Status), r.DurationMs)
	}

	logger.Info("run finalized",
		"status", status,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"timeout", stats.Timeout,
		"skipped", stats.Skipped,
		"duration_ms", summary.DurationMs,
	)

	return summary, nil
}

func (o *Orchestrator) synthesize(ctx context.Context, state *RunState) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.synthesisTimeout)
	defer cancel()
	return o.synth.Synthesize(ctx, state.TenantID, state.RunID)
}

// emit пишет аудит-событие; ошибка sink'а только логируется.
func (o *Orchestrator) emit(ctx context.Context, state *RunState, eventType domain.RunEventType, summary *domain.RunSummary) {
	if o.events == nil {
		return
	}

	status := state.Status()
	if summary != nil {
		status = summary.Status
	}

	event := domain.RunEvent{
		ID:       uuid.New(),
		Type:     eventType,
		RunID:    state.RunID,
		TenantID: state.TenantID,
		Domain:   state.Domain,
		PlanID:   state.Plan.ID,
		Status:   status,
		Summary:  summary,
		At:       o.now(),
	}

	if err := o.events.RecordRunEvent(ctx, event); err != nil {
		o.runLogger(state).Error("failed to record run event", "type", eventType, "error", err)
	}
}

func (o *Orchestrator) runLogger(state *RunState) *slog.Logger {
	return telemetry.WithTenant(telemetry.WithRunID(o.logger, state.RunID.String()), state.TenantID)
}
