package workerconfig

import (
	"sort"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

// StaticRegistry — реестр воркеров в памяти.
type StaticRegistry struct {
	workers map[string]domain.WorkerService
}

// NewStaticRegistry создаёт реестр из списка воркеров.
func NewStaticRegistry(workers ...domain.WorkerService) *StaticRegistry {
	r := &StaticRegistry{workers: make(map[string]domain.WorkerService, len(workers))}
	for _, w := range workers {
		r.workers[w.Key] = w
	}
	return r
}

// Worker реализует Registry.
func (r *StaticRegistry) Worker(key string) (domain.WorkerService, bool) {
	w, ok := r.workers[key]
	return w, ok
}

// HTTPWorkers возвращает HTTP-воркеры, отсортированные по ключу.
func (r *StaticRegistry) HTTPWorkers() []domain.WorkerService {
	out := make([]domain.WorkerService, 0, len(r.workers))
	for _, w := range r.workers {
		if w.HTTP {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
