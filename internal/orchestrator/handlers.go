package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
	"github.com/kmease-ttc/Hermes-sub004/internal/mq"
)

// handleRunRequested обрабатывает запрос на запуск run из очереди.
//
// Сообщение подтверждается сразу после приёма: run выполняется в отдельной
// горутине, число одновременных runs ограничено runSlots.
func (o *Orchestrator) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	req, err := mq.ParsePayload[domain.RunRequest](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse run.requested payload", "error", err)
		return err
	}

	if req.TenantID == "" || req.Domain == "" || req.PlanID == "" {
		return fmt.Errorf("%w: tenant_id, domain and plan_id are required", ErrInvalidRequest)
	}

	if err := o.Submit(ctx, req); err != nil {
		if errors.Is(err, ErrRunAlreadyActive) {
			o.logger.Debug("duplicate run request ignored", "idempotency_key", req.IdempotencyKey)
			return nil
		}
		return err
	}
	return nil
}

// Submit запускает run в фоне. Блокируется, пока нет свободного слота.
//
// Повторный запрос с тем же IdempotencyKey, пока run активен,
// возвращает ErrRunAlreadyActive.
func (o *Orchestrator) Submit(ctx context.Context, req domain.RunRequest) error {
	if o.IsStopped() {
		return ErrOrchestratorStopped
	}

	if err := o.acquire(req.IdempotencyKey); err != nil {
		return err
	}

	select {
	case o.runSlots <- struct{}{}:
	case <-ctx.Done():
		o.release(req.IdempotencyKey)
		return ctx.Err()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() { <-o.runSlots }()
		defer o.release(req.IdempotencyKey)

		// Stop отменяет ctx consumer'а; вызовы воркеров в полёте не прерываются.
		summary, err := o.Run(context.WithoutCancel(ctx), req.TenantID, req.Domain, req.PlanID)
		if err != nil {
			o.logger.Error("run rejected",
				"tenant_id", req.TenantID,
				"plan_id", req.PlanID,
				"error", err,
			)
			return
		}

		o.logger.Info("queued run finished",
			"run_id", summary.RunID,
			"status", summary.Status,
			"idempotency_key", req.IdempotencyKey,
		)
	}()

	return nil
}
