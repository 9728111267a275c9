package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kmease-ttc/Hermes-sub004/internal/mq"
	"github.com/kmease-ttc/Hermes-sub004/internal/worker"
)

// Default configuration values.
const (
	defaultSynthesisTimeout  = 30 * time.Second
	defaultMaxConcurrentRuns = 4
	defaultPrefetch          = 4
)

// ServiceExecutor выполняет один сервис плана.
type ServiceExecutor interface {
	Execute(ctx context.Context, inv worker.Invocation) worker.Outcome
}

// Orchestrator выполняет runs по планам.
//
// Orchestrator:
//   - Валидирует план и создаёт RunState
//   - Выполняет сервисы волнами с учётом зависимостей
//   - Применяет глобальный дедлайн run
//   - Финализирует run: итог, синтез, аудит-событие, метрики
//   - Опционально потребляет runs.requested из RabbitMQ
type Orchestrator struct {
	plans    PlanSource
	executor ServiceExecutor
	synth    Synthesizer
	events   EventSink
	conn     *mq.Connection
	consumer *mq.Consumer
	runSlots chan struct{}
	now      func() time.Time

	// Configuration
	maxParallel      int
	synthesisTimeout time.Duration

	// Active runs по ключу идемпотентности.
	active map[string]struct{}
	mu     sync.Mutex

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	Plans    PlanSource
	Executor ServiceExecutor

	// Synthesizer (опционально) — внешний синтез диагноза.
	Synthesizer Synthesizer

	// Events (опционально) — sink аудит-событий.
	Events EventSink

	// Conn (опционально) — соединение RabbitMQ для потребления runs.requested.
	Conn *mq.Connection

	// MaxParallel — лимит параллельных вызовов в волне (0 — без лимита).
	MaxParallel int

	// MaxConcurrentRuns — лимит одновременных runs из очереди (default: 4).
	MaxConcurrentRuns int

	// SynthesisTimeout — таймаут вызова синтеза (default: 30s).
	SynthesisTimeout time.Duration

	// Now (опционально) — источник времени.
	Now func() time.Time

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	synthesisTimeout := cfg.SynthesisTimeout
	if synthesisTimeout <= 0 {
		synthesisTimeout = defaultSynthesisTimeout
	}

	maxRuns := cfg.MaxConcurrentRuns
	if maxRuns <= 0 {
		maxRuns = defaultMaxConcurrentRuns
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		plans:            cfg.Plans,
		executor:         cfg.Executor,
		synth:            cfg.Synthesizer,
		events:           cfg.Events,
		conn:             cfg.Conn,
		runSlots:         make(chan struct{}, maxRuns),
		now:              now,
		maxParallel:      cfg.MaxParallel,
		synthesisTimeout: synthesisTimeout,
		active:           make(map[string]struct{}),
		logger:           logger,
	}
}

// Start запускает потребление runs.requested.
// Без соединения RabbitMQ Start ничего не делает: runs запускаются только через Run.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.IsStopped() {
		return ErrOrchestratorStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	if o.conn == nil {
		o.logger.Info("orchestrator started without queue consumer")
		return nil
	}

	o.consumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueRunsRequested),
		Handler:  o.handleRunRequested,
		Types:    []mq.MessageType{mq.MessageTypeRunRequested},
		Prefetch: defaultPrefetch,
	})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			o.logger.Error("run consumer error", "error", err)
		}
	}()

	o.logger.Info("orchestrator started",
		"queue", mq.QueueRunsRequested,
		"max_concurrent_runs", cap(o.runSlots),
		"max_parallel", o.maxParallel,
	)
	return nil
}

// Stop останавливает consumer и ждёт завершения активных runs.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	if o.consumer != nil {
		o.consumer.Stop()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// acquire регистрирует активный run по ключу.
func (o *Orchestrator) acquire(key string) error {
	if key == "" {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.active[key]; exists {
		return ErrRunAlreadyActive
	}
	o.active[key] = struct{}{}
	return nil
}

func (o *Orchestrator) release(key string) {
	if key == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, key)
}

// ActiveRunsCount возвращает количество активных runs из очереди.
func (o *Orchestrator) ActiveRunsCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}
