package orchestrator

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// EventSink принимает аудит-факты run (run.started, run.status).
//
// Реализации: repo.RunEventRepo (Postgres), mq.Publisher (RabbitMQ).
type EventSink interface {
	RecordRunEvent(ctx context.Context, event domain.RunEvent) error
}

// MultiSink пишет событие во все sinks; ошибки объединяются.
type MultiSink []EventSink

// RecordRunEvent реализует EventSink.
func (m MultiSink) RecordRunEvent(ctx context.Context, event domain.RunEvent) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.RecordRunEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PlanSource отдаёт планы по ID.
type PlanSource interface {
	Plan(id string) (*domain.RunPlan, bool)
}

// Synthesizer — внешний шаг синтеза диагноза по результатам run.
type Synthesizer interface {
	Synthesize(ctx context.Context, tenantID string, runID uuid.UUID) (diagnosisID string, err error)
}
