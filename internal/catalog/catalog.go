// Package catalog загружает реестр воркеров, планы и расписания из YAML.
//
// Формат файла:
//
//	workers:
//	  - key: crawler
//	    secret_name: crawler-{tenant}
//	    http: true
//	    requires_base_url: true
//	    expected_outputs: [pageCount, title]
//	plans:
//	  - id: daily
//	    max_run_duration_ms: 600000
//	    services:
//	      - {name: crawl, worker_key: crawler}
//	      - {name: audit, worker_key: auditor, depends_on: [crawl]}
//	schedules:
//	  - {id: daily-acme, tenant_id: acme, domain: acme.com, plan_id: daily, cron_expr: "0 6 * * *", enabled: true}
//
// Невалидный план (цикл, ссылка на несуществующий сервис) отклоняется
// при загрузке, а не при первом run.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
	"github.com/kmease-ttc/Hermes-sub004/internal/engine"
	"github.com/kmease-ttc/Hermes-sub004/internal/scheduler"
	"github.com/kmease-ttc/Hermes-sub004/internal/workerconfig"
)

// Ошибки загрузки каталога.
var (
	ErrDuplicateWorker   = errors.New("duplicate worker key")
	ErrDuplicatePlan     = errors.New("duplicate plan id")
	ErrDuplicateSchedule = errors.New("duplicate schedule id")
	ErrUnknownPlan       = errors.New("schedule references unknown plan")
)

// file — структура YAML-файла.
type file struct {
	Workers   []domain.WorkerService `yaml:"workers"`
	Plans     []domain.RunPlan       `yaml:"plans"`
	Schedules []domain.Schedule      `yaml:"schedules"`
}

// Catalog — неизменяемый после загрузки набор воркеров, планов и расписаний.
type Catalog struct {
	*workerconfig.StaticRegistry

	plans     map[string]*domain.RunPlan
	schedules []domain.Schedule
}

// Load читает каталог из файла.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse разбирает и валидирует YAML-каталог.
func Parse(data []byte) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	seenWorkers := make(map[string]bool, len(f.Workers))
	for _, w := range f.Workers {
		if w.Key == "" {
			return nil, errors.New("worker key is required")
		}
		if seenWorkers[w.Key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateWorker, w.Key)
		}
		seenWorkers[w.Key] = true
	}

	plans := make(map[string]*domain.RunPlan, len(f.Plans))
	for i := range f.Plans {
		plan := &f.Plans[i]
		if err := engine.Validate(plan); err != nil {
			return nil, fmt.Errorf("plan %q: %w", plan.ID, err)
		}
		if _, dup := plans[plan.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePlan, plan.ID)
		}
		plans[plan.ID] = plan
	}

	seenSchedules := make(map[string]bool, len(f.Schedules))
	for i := range f.Schedules {
		sched := &f.Schedules[i]
		if err := scheduler.ValidateSchedule(sched); err != nil {
			return nil, err
		}
		if seenSchedules[sched.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSchedule, sched.ID)
		}
		seenSchedules[sched.ID] = true
		if _, ok := plans[sched.PlanID]; !ok {
			return nil, fmt.Errorf("%w: schedule %s, plan %s", ErrUnknownPlan, sched.ID, sched.PlanID)
		}
	}

	return &Catalog{
		StaticRegistry: workerconfig.NewStaticRegistry(f.Workers...),
		plans:          plans,
		schedules:      f.Schedules,
	}, nil
}

// Plan возвращает план по ID.
func (c *Catalog) Plan(id string) (*domain.RunPlan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// Plans возвращает все планы, отсортированные по ID.
func (c *Catalog) Plans() []*domain.RunPlan {
	out := make([]*domain.RunPlan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Schedules возвращает копию списка расписаний.
func (c *Catalog) Schedules() []domain.Schedule {
	out := make([]domain.Schedule, len(c.schedules))
	copy(out, c.schedules)
	return out
}
