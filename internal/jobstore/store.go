// Package jobstore хранит снимки тестовых задач.
//
// Каждое сохранение — одна атомарная запись полного документа задачи,
// поэтому читатель никогда не видит частично обновлённый прогресс.
//
// Реализации: Memory (один процесс), Redis (несколько реплик API),
// repo.JobRepo (Postgres).
package jobstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// Store — хранилище снимков тестовых задач.
type Store interface {
	Save(ctx context.Context, job *domain.TestJob) error
	Get(ctx context.Context, id uuid.UUID) (*domain.TestJob, bool, error)
}

// Memory — хранилище в памяти процесса.
type Memory struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.TestJob
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{jobs: make(map[uuid.UUID]*domain.TestJob)}
}

// Save сохраняет копию задачи.
func (m *Memory) Save(_ context.Context, job *domain.TestJob) error {
	snapshot := job.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = snapshot
	return nil
}

// Get возвращает копию задачи.
func (m *Memory) Get(_ context.Context, id uuid.UUID) (*domain.TestJob, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, false, nil
	}
	return job.Clone(), true, nil
}
