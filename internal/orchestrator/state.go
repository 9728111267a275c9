package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
	"github.com/kmease-ttc/Hermes-sub004/internal/engine"
	"github.com/kmease-ttc/Hermes-sub004/internal/worker"
)

// RunState — состояние одного run в памяти.
//
// Принадлежит одному вызову оркестратора и не разделяется между runs.
// Все изменения результатов идут через методы под мьютексом.
type RunState struct {
	RunID     uuid.UUID
	TenantID  string
	Domain    string
	Plan      *domain.RunPlan
	DAG       *engine.DAG
	StartedAt time.Time

	// TimeoutAt = StartedAt + MaxRunDurationMs.
	TimeoutAt time.Time

	mu          sync.RWMutex
	status      domain.RunStatus
	completedAt *time.Time
	results     map[string]*domain.ServiceResult
	summary     *domain.RunSummary
}

// NewRunState создаёт RunState со всеми сервисами в статусе PENDING.
func NewRunState(tenantID, domainName string, plan *domain.RunPlan, dag *engine.DAG, now time.Time) *RunState {
	results := make(map[string]*domain.ServiceResult, len(plan.Services))
	for _, svc := range plan.Services {
		results[svc.Name] = domain.NewServiceResult()
	}

	return &RunState{
		RunID:     uuid.New(),
		TenantID:  tenantID,
		Domain:    domainName,
		Plan:      plan,
		DAG:       dag,
		StartedAt: now,
		TimeoutAt: now.Add(time.Duration(plan.MaxRunDurationMs) * time.Millisecond),
		status:    domain.RunStatusStarted,
		results:   results,
	}
}

// Status возвращает текущий статус run.
func (s *RunState) Status() domain.RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *RunState) setStatus(status domain.RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// Statuses возвращает снимок статусов сервисов.
func (s *RunState) Statuses() map[string]domain.ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.ServiceStatus, len(s.results))
	for name, r := range s.results {
		out[name] = r.Status
	}
	return out
}

// Result возвращает копию результата сервиса.
func (s *RunState) Result(name string) (domain.ServiceResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[name]
	if !ok {
		return domain.ServiceResult{}, false
	}
	return r.Clone(), true
}

// Results возвращает копии всех результатов.
func (s *RunState) Results() map[string]domain.ServiceResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.ServiceResult, len(s.results))
	for name, r := range s.results {
		out[name] = r.Clone()
	}
	return out
}

// MarkRunning переводит сервис в RUNNING.
func (s *RunState) MarkRunning(name string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.results[name]; ok {
		r.MarkRunning(now)
	}
}

// Apply записывает исход вызова воркера в результат сервиса.
func (s *RunState) Apply(name string, out worker.Outcome, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[name]
	if !ok || r.IsFinished() {
		return
	}

	r.Attempts = out.Attempts
	switch out.Status {
	case domain.ServiceStatusCompleted:
		r.MarkCompleted(now, out.Payload)
	case domain.ServiceStatusTimeout:
		r.MarkTimeout(now, out.Error)
	default:
		r.MarkFailed(now, out.Error)
	}
}

// SkipPending помечает все PENDING-сервисы как SKIPPED.
// Возвращает имена пропущенных сервисов в порядке плана.
func (s *RunState) SkipPending(reason string, now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	skipped := make([]string, 0)
	for _, svc := range s.Plan.Services {
		if r := s.results[svc.Name]; r.Status == domain.ServiceStatusPending {
			r.MarkSkipped(now, reason)
			skipped = append(skipped, svc.Name)
		}
	}
	return skipped
}

// SkipBlocked помечает SKIPPED те PENDING-сервисы, у которых хотя бы одна
// зависимость (в том числе транзитивно) закончилась FAILED, TIMEOUT или SKIPPED.
// Остальные PENDING-сервисы не трогает.
func (s *RunState) SkipBlocked(reason string, now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	skipped := make([]string, 0)
	for changed := true; changed; {
		changed = false
		for _, svc := range s.Plan.Services {
			r := s.results[svc.Name]
			if r.Status != domain.ServiceStatusPending {
				continue
			}
			for _, dep := range svc.DependsOn {
				d, ok := s.results[dep]
				if !ok {
					continue
				}
				if d.Status == domain.ServiceStatusFailed ||
					d.Status == domain.ServiceStatusTimeout ||
					d.Status == domain.ServiceStatusSkipped {
					r.MarkSkipped(now, reason)
					skipped = append(skipped, svc.Name)
					changed = true
					break
				}
			}
		}
	}
	return skipped
}

// TimeoutUnresolved переводит PENDING и RUNNING сервисы в TIMEOUT.
// Возвращает число затронутых сервисов.
func (s *RunState) TimeoutUnresolved(reason string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.results {
		if !r.IsFinished() {
			r.MarkTimeout(now, reason)
			n++
		}
	}
	return n
}

// Summary возвращает итог, если run финализирован.
func (s *RunState) Summary() (*domain.RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary, s.summary != nil
}

func (s *RunState) setSummary(summary *domain.RunSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
	s.completedAt = &summary.CompletedAt
}

// Stats — счётчики результатов.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Timeout   int
	Skipped   int
	Pending   int
	Running   int
}

// Stats считает результаты по статусам.
func (s *RunState) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Total: len(s.results)}
	for _, r := range s.results {
		switch r.Status {
		case domain.ServiceStatusCompleted:
			st.Completed++
		case domain.ServiceStatusFailed:
			st.Failed++
		case domain.ServiceStatusTimeout:
			st.Timeout++
		case domain.ServiceStatusSkipped:
			st.Skipped++
		case domain.ServiceStatusRunning:
			st.Running++
		default:
			st.Pending++
		}
	}
	return st
}
