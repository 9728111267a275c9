package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
	"github.com/kmease-ttc/Hermes-sub004/internal/engine"
	"github.com/kmease-ttc/Hermes-sub004/internal/worker"
)

// --- fakes ---

type planMap map[string]*domain.RunPlan

func (m planMap) Plan(id string) (*domain.RunPlan, bool) {
	p, ok := m[id]
	return p, ok
}

// fakeExecutor возвращает исход по имени сервиса и записывает порядок вызовов.
type fakeExecutor struct {
	mu       sync.Mutex
	outcomes map[string]domain.ServiceStatus
	hook     func(name string)
	started  []string
	finished []string

	// ctxErrs — ctx.Err() каждого вызова после hook.
	ctxErrs map[string]error
}

func (f *fakeExecutor) Execute(ctx context.Context, inv worker.Invocation) worker.Outcome {
	name := inv.Service.Name
	f.mu.Lock()
	f.started = append(f.started, name)
	f.mu.Unlock()

	if f.hook != nil {
		f.hook(name)
	}

	status, ok := f.outcomes[name]
	if !ok {
		status = domain.ServiceStatusCompleted
	}

	f.mu.Lock()
	f.finished = append(f.finished, name)
	if f.ctxErrs == nil {
		f.ctxErrs = make(map[string]error)
	}
	f.ctxErrs[name] = ctx.Err()
	f.mu.Unlock()

	out := worker.Outcome{Status: status, Attempts: 1}
	switch status {
	case domain.ServiceStatusCompleted:
		out.Payload = map[string]any{"service": name}
	default:
		out.Error = name + " " + string(status)
	}
	return out
}

func (f *fakeExecutor) wasStarted(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.started {
		if s == name {
			return true
		}
	}
	return false
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.RunEvent
}

func (s *recordingSink) RecordRunEvent(_ context.Context, e domain.RunEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

type fakeSynth struct {
	id  string
	err error
}

func (f fakeSynth) Synthesize(context.Context, string, uuid.UUID) (string, error) {
	return f.id, f.err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func abcPlan() *domain.RunPlan {
	return &domain.RunPlan{
		ID:               "abc",
		Name:             "A B then C",
		MaxRunDurationMs: 60000,
		Services: []domain.ServiceDefinition{
			{Name: "A", WorkerKey: "a"},
			{Name: "B", WorkerKey: "b"},
			{Name: "C", WorkerKey: "c", DependsOn: []string{"A", "B"}},
		},
	}
}

func newTestOrchestrator(plans planMap, exec ServiceExecutor, opts ...func(*Config)) *Orchestrator {
	cfg := Config{Plans: plans, Executor: exec}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

// --- tests ---

func TestRun_FailedDependencySkipsDependent(t *testing.T) {
	// A и B стартуют одновременно: каждый ждёт старта второго
	var wave sync.WaitGroup
	wave.Add(2)
	exec := &fakeExecutor{
		outcomes: map[string]domain.ServiceStatus{"B": domain.ServiceStatusFailed},
		hook: func(name string) {
			if name == "A" || name == "B" {
				wave.Done()
				done := make(chan struct{})
				go func() { wave.Wait(); close(done) }()
				select {
				case <-done:
				case <-time.After(2 * time.Second):
					t.Errorf("%s: wave 1 services did not run concurrently", name)
				}
			}
		},
	}
	sink := &recordingSink{}

	o := newTestOrchestrator(planMap{"abc": abcPlan()}, exec, func(c *Config) {
		c.Events = sink
		c.Synthesizer = fakeSynth{id: "diag-1"}
	})

	summary, err := o.Run(context.Background(), "t-1", "example.com", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Status != domain.RunStatusCompleted {
		t.Errorf("expected completed, got %s", summary.Status)
	}
	if summary.ServicesSkipped != 1 || summary.ServicesCompleted != 1 || summary.ServicesFailed != 1 {
		t.Errorf("unexpected counters: %+v", summary)
	}
	if summary.Results["C"].Status != domain.ServiceStatusSkipped {
		t.Errorf("expected C skipped, got %s", summary.Results["C"].Status)
	}
	if summary.Results["C"].Error != reasonDependencyFailed {
		t.Errorf("unexpected skip reason: %q", summary.Results["C"].Error)
	}
	if exec.wasStarted("C") {
		t.Error("C must never be executed")
	}
	if summary.DiagnosisID != "diag-1" {
		t.Errorf("expected diagnosis id, got %q", summary.DiagnosisID)
	}
	if summary.Results["A"].Payload["service"] != "A" {
		t.Errorf("expected A payload, got %v", summary.Results["A"].Payload)
	}

	if len(sink.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sink.events))
	}
	if sink.events[0].Type != domain.RunEventStarted || sink.events[0].Status != domain.RunStatusStarted {
		t.Errorf("unexpected first event: %+v", sink.events[0])
	}
	last := sink.events[1]
	if last.Type != domain.RunEventStatus || last.Summary == nil || last.Summary.RunID != summary.RunID {
		t.Errorf("unexpected terminal event: %+v", last)
	}
}

func TestRun_WaveOrdering(t *testing.T) {
	plan := &domain.RunPlan{
		ID:               "chain",
		MaxRunDurationMs: 60000,
		Services: []domain.ServiceDefinition{
			{Name: "report", WorkerKey: "r", DependsOn: []string{"content"}},
			{Name: "crawl", WorkerKey: "c"},
			{Name: "content", WorkerKey: "x", DependsOn: []string{"crawl"}},
		},
	}
	exec := &fakeExecutor{}

	summary, err := newTestOrchestrator(planMap{"chain": plan}, exec).Run(context.Background(), "t", "d", "chain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"crawl", "content", "report"}
	for i, name := range want {
		if exec.started[i] != name {
			t.Fatalf("expected execution order %v, got %v", want, exec.started)
		}
	}
	if summary.ServicesCompleted != 3 {
		t.Errorf("expected 3 completed, got %d", summary.ServicesCompleted)
	}
}

func TestRun_TransitiveSkip(t *testing.T) {
	plan := &domain.RunPlan{
		ID:               "deep",
		MaxRunDurationMs: 60000,
		Services: []domain.ServiceDefinition{
			{Name: "A", WorkerKey: "a"},
			{Name: "B", WorkerKey: "b", DependsOn: []string{"A"}},
			{Name: "C", WorkerKey: "c", DependsOn: []string{"B"}},
			{Name: "D", WorkerKey: "d"},
		},
	}
	exec := &fakeExecutor{outcomes: map[string]domain.ServiceStatus{"A": domain.ServiceStatusTimeout}}

	summary, err := newTestOrchestrator(planMap{"deep": plan}, exec).Run(context.Background(), "t", "d", "deep")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"B", "C"} {
		if summary.Results[name].Status != domain.ServiceStatusSkipped {
			t.Errorf("expected %s skipped, got %s", name, summary.Results[name].Status)
		}
	}
	if summary.Status != domain.RunStatusCompleted {
		t.Errorf("expected completed (D succeeded), got %s", summary.Status)
	}
	if summary.ServicesTimeout != 1 {
		t.Errorf("expected 1 timeout, got %d", summary.ServicesTimeout)
	}
}

func TestRun_AllFailed(t *testing.T) {
	exec := &fakeExecutor{outcomes: map[string]domain.ServiceStatus{
		"A": domain.ServiceStatusFailed,
		"B": domain.ServiceStatusFailed,
	}}

	summary, err := newTestOrchestrator(planMap{"abc": abcPlan()}, exec).Run(context.Background(), "t", "d", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != domain.RunStatusFailed {
		t.Errorf("expected failed, got %s", summary.Status)
	}
}

func TestRun_RejectsInvalidPlans(t *testing.T) {
	cyclic := &domain.RunPlan{
		ID:               "cyclic",
		MaxRunDurationMs: 1000,
		Services: []domain.ServiceDefinition{
			{Name: "A", WorkerKey: "a", DependsOn: []string{"B"}},
			{Name: "B", WorkerKey: "b", DependsOn: []string{"A"}},
		},
	}
	dangling := &domain.RunPlan{
		ID:               "dangling",
		MaxRunDurationMs: 1000,
		Services: []domain.ServiceDefinition{
			{Name: "A", WorkerKey: "a", DependsOn: []string{"ghost"}},
		},
	}

	exec := &fakeExecutor{}
	o := newTestOrchestrator(planMap{"cyclic": cyclic, "dangling": dangling}, exec)

	tests := []struct {
		planID  string
		wantErr error
		cause   error
	}{
		{"cyclic", ErrInvalidPlan, engine.ErrCyclicDependency},
		{"dangling", ErrInvalidPlan, engine.ErrMissingDependency},
		{"missing", ErrPlanNotFound, ErrPlanNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.planID, func(t *testing.T) {
			summary, err := o.Run(context.Background(), "t", "d", tt.planID)
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, tt.cause) {
				t.Errorf("expected %v wrapping %v, got %v", tt.wantErr, tt.cause, err)
			}
			if summary != nil {
				t.Error("summary must be nil for rejected plan")
			}
		})
	}

	if len(exec.started) != 0 {
		t.Errorf("no service should run for rejected plans, got %v", exec.started)
	}
}

func TestRun_DeadlineStopsFurtherWaves(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	plan := abcPlan()
	plan.MaxRunDurationMs = 1000

	exec := &fakeExecutor{hook: func(string) { clock.Advance(2 * time.Second) }}
	o := newTestOrchestrator(planMap{"abc": plan}, exec, func(c *Config) { c.Now = clock.Now })

	summary, err := o.Run(context.Background(), "t", "d", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Status != domain.RunStatusTimeout {
		t.Errorf("expected timeout, got %s", summary.Status)
	}
	if exec.wasStarted("C") {
		t.Error("C must not start after the deadline")
	}
	if summary.Results["C"].Status != domain.ServiceStatusTimeout {
		t.Errorf("expected C timeout, got %s", summary.Results["C"].Status)
	}
	if summary.Results["A"].Status != domain.ServiceStatusCompleted {
		t.Errorf("finished services keep their result, got %s", summary.Results["A"].Status)
	}
}

func TestRun_DeadlineSkipsServicesBehindFailedDependency(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	plan := abcPlan()
	plan.MaxRunDurationMs = 1000
	plan.Services = append(plan.Services,
		domain.ServiceDefinition{Name: "D", WorkerKey: "d", DependsOn: []string{"C"}},
		domain.ServiceDefinition{Name: "E", WorkerKey: "e", DependsOn: []string{"A"}},
	)

	exec := &fakeExecutor{
		outcomes: map[string]domain.ServiceStatus{"B": domain.ServiceStatusFailed},
		hook:     func(string) { clock.Advance(2 * time.Second) },
	}
	o := newTestOrchestrator(planMap{"abc": plan}, exec, func(c *Config) { c.Now = clock.Now })

	summary, err := o.Run(context.Background(), "t", "d", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Status != domain.RunStatusTimeout {
		t.Errorf("expected timeout, got %s", summary.Status)
	}

	want := map[string]domain.ServiceStatus{
		"A": domain.ServiceStatusCompleted,
		"B": domain.ServiceStatusFailed,
		"C": domain.ServiceStatusSkipped,
		"D": domain.ServiceStatusSkipped,
		"E": domain.ServiceStatusTimeout,
	}
	for name, status := range want {
		if got := summary.Results[name].Status; got != status {
			t.Errorf("%s: expected %s, got %s", name, status, got)
		}
	}
	if summary.Results["C"].Error != reasonDependencyFailed {
		t.Errorf("C reason = %q", summary.Results["C"].Error)
	}
	if summary.ServicesSkipped != 2 || summary.ServicesTimeout != 1 {
		t.Errorf("skipped=%d timeout=%d", summary.ServicesSkipped, summary.ServicesTimeout)
	}
}

func TestWaitForRun_Idempotent(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	o := newTestOrchestrator(planMap{"abc": abcPlan()}, &fakeExecutor{}, func(c *Config) { c.Now = clock.Now })

	state, err := o.StartRun(context.Background(), "t", "d", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status() != domain.RunStatusRunning {
		t.Fatalf("expected running, got %s", state.Status())
	}

	// До дедлайна ничего не меняется
	o.WaitForRun(state)
	if state.Status() != domain.RunStatusRunning {
		t.Fatalf("expected running before deadline, got %s", state.Status())
	}

	clock.Advance(2 * time.Minute)
	state.MarkRunning("A", clock.Now())

	o.WaitForRun(state)
	if state.Status() != domain.RunStatusTimeout {
		t.Fatalf("expected timeout, got %s", state.Status())
	}
	for name, r := range state.Results() {
		if r.Status != domain.ServiceStatusTimeout {
			t.Errorf("expected %s timeout, got %s", name, r.Status)
		}
	}

	o.WaitForRun(state)
	if state.Status() != domain.RunStatusTimeout {
		t.Errorf("second WaitForRun changed status to %s", state.Status())
	}

	summary, err := o.FinalizeRun(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	o.WaitForRun(state)
	o.WaitForRun(state)
	if state.Status() != summary.Status {
		t.Errorf("WaitForRun after finalize changed status %s → %s", summary.Status, state.Status())
	}

	again, _ := o.FinalizeRun(context.Background(), state)
	if again != summary {
		t.Error("FinalizeRun must return the same summary on repeat")
	}
}

func TestFinalizeRun_AllResultsTerminal(t *testing.T) {
	o := newTestOrchestrator(planMap{"abc": abcPlan()}, &fakeExecutor{})

	state, err := o.StartRun(context.Background(), "t", "d", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state.MarkRunning("A", time.Now())

	// Финализация без выполнения волн
	summary, err := o.FinalizeRun(context.Background(), state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for name, r := range summary.Results {
		if !r.Status.IsTerminal() {
			t.Errorf("%s left in %s", name, r.Status)
		}
	}
	if summary.Status != domain.RunStatusFailed {
		t.Errorf("expected failed (timeouts, no completions), got %s", summary.Status)
	}
}

func TestFinalizeRun_SynthesisErrorDoesNotChangeStatus(t *testing.T) {
	o := newTestOrchestrator(planMap{"abc": abcPlan()}, &fakeExecutor{}, func(c *Config) {
		c.Synthesizer = fakeSynth{err: errors.New("synthesis unavailable")}
	})

	summary, err := o.Run(context.Background(), "t", "d", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Status != domain.RunStatusCompleted {
		t.Errorf("expected completed, got %s", summary.Status)
	}
	if summary.SynthesisError != "synthesis unavailable" {
		t.Errorf("expected synthesis error, got %q", summary.SynthesisError)
	}
	if summary.DiagnosisID != "" {
		t.Errorf("expected empty diagnosis id, got %q", summary.DiagnosisID)
	}
}

type panickingExecutor struct{}

func (panickingExecutor) Execute(context.Context, worker.Invocation) worker.Outcome {
	panic("boom")
}

func TestRun_RecoversServicePanic(t *testing.T) {
	summary, err := newTestOrchestrator(planMap{"abc": abcPlan()}, panickingExecutor{}).Run(context.Background(), "t", "d", "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Results["A"].Status != domain.ServiceStatusFailed {
		t.Errorf("expected A failed, got %s", summary.Results["A"].Status)
	}
	if summary.Results["A"].Error != "panic: boom" {
		t.Errorf("unexpected error: %q", summary.Results["A"].Error)
	}
	if summary.Status != domain.RunStatusFailed {
		t.Errorf("expected failed, got %s", summary.Status)
	}
}

func TestRun_MaxParallel(t *testing.T) {
	plan := &domain.RunPlan{ID: "wide", MaxRunDurationMs: 60000}
	for _, n := range []string{"a", "b", "c", "d"} {
		plan.Services = append(plan.Services, domain.ServiceDefinition{Name: n, WorkerKey: n})
	}

	var mu sync.Mutex
	inFlight, peak := 0, 0
	exec := &fakeExecutor{hook: func(string) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}}

	o := newTestOrchestrator(planMap{"wide": plan}, exec, func(c *Config) { c.MaxParallel = 2 })
	if _, err := o.Run(context.Background(), "t", "d", "wide"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak > 2 {
		t.Errorf("expected at most 2 concurrent calls, got %d", peak)
	}
}

func TestSubmit_DeduplicatesActiveKey(t *testing.T) {
	release := make(chan struct{})
	exec := &fakeExecutor{hook: func(string) { <-release }}
	o := newTestOrchestrator(planMap{"abc": abcPlan()}, exec)

	req := domain.RunRequest{TenantID: "t", Domain: "d", PlanID: "abc", IdempotencyKey: "sched-1_1700000000"}

	if err := o.Submit(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := o.Submit(context.Background(), req); !errors.Is(err, ErrRunAlreadyActive) {
		t.Errorf("expected ErrRunAlreadyActive, got %v", err)
	}
	if o.ActiveRunsCount() != 1 {
		t.Errorf("expected 1 active run, got %d", o.ActiveRunsCount())
	}

	close(release)
	o.Stop()

	if o.ActiveRunsCount() != 0 {
		t.Errorf("expected no active runs after stop, got %d", o.ActiveRunsCount())
	}
	if err := o.Submit(context.Background(), req); !errors.Is(err, ErrOrchestratorStopped) {
		t.Errorf("expected ErrOrchestratorStopped, got %v", err)
	}
}

func TestSubmit_CancelledContextDoesNotAbortRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := &fakeExecutor{hook: func(name string) {
		if name == "A" {
			cancel()
		}
	}}
	sink := &recordingSink{}
	o := newTestOrchestrator(planMap{"abc": abcPlan()}, exec, func(c *Config) { c.Events = sink })

	req := domain.RunRequest{TenantID: "t", Domain: "d", PlanID: "abc", IdempotencyKey: "k-1"}
	if err := o.Submit(ctx, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o.Stop()

	exec.mu.Lock()
	for name, err := range exec.ctxErrs {
		if err != nil {
			t.Errorf("%s saw cancelled context: %v", name, err)
		}
	}
	exec.mu.Unlock()

	if !exec.wasStarted("C") {
		t.Fatal("C must run after its dependencies complete")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	var summary *domain.RunSummary
	for _, e := range sink.events {
		if e.Type == domain.RunEventStatus {
			summary = e.Summary
		}
	}
	if summary == nil {
		t.Fatal("no run.status event recorded")
	}
	if summary.Status != domain.RunStatusCompleted {
		t.Errorf("expected completed, got %s", summary.Status)
	}
	if summary.ServicesCompleted != 3 {
		t.Errorf("expected 3 completed, got %d", summary.ServicesCompleted)
	}
}

type failingSink struct{ err error }

func (f failingSink) RecordRunEvent(context.Context, domain.RunEvent) error { return f.err }

func TestMultiSink(t *testing.T) {
	rec := &recordingSink{}
	errA := errors.New("db down")
	sink := MultiSink{rec, nil, failingSink{err: errA}}

	err := sink.RecordRunEvent(context.Background(), domain.RunEvent{Type: domain.RunEventStarted})
	if !errors.Is(err, errA) {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(rec.events) != 1 {
		t.Errorf("healthy sink must still receive the event")
	}
}
