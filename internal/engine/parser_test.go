package engine

import (
	"errors"
	"testing"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

func TestValidate_ValidPlan(t *testing.T) {
	if err := Validate(abcPlan()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NilPlan(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrNilPlan) {
		t.Errorf("expected ErrNilPlan, got %v", err)
	}
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name string
		plan *domain.RunPlan
	}{
		{
			name: "empty id",
			plan: &domain.RunPlan{
				MaxRunDurationMs: 1000,
				Services:         []domain.ServiceDefinition{{Name: "A", WorkerKey: "w"}},
			},
		},
		{
			name: "no services",
			plan: &domain.RunPlan{ID: "p", MaxRunDurationMs: 1000},
		},
		{
			name: "zero max duration",
			plan: &domain.RunPlan{
				ID:       "p",
				Services: []domain.ServiceDefinition{{Name: "A", WorkerKey: "w"}},
			},
		},
		{
			name: "service without worker key",
			plan: &domain.RunPlan{
				ID:               "p",
				MaxRunDurationMs: 1000,
				Services:         []domain.ServiceDefinition{{Name: "A"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.plan)
			if !errors.Is(err, ErrInvalidPlanFields) {
				t.Errorf("expected ErrInvalidPlanFields, got %v", err)
			}
		})
	}
}

func TestValidate_GraphRules(t *testing.T) {
	tests := []struct {
		name     string
		services []domain.ServiceDefinition
		wantErr  error
		wantSvc  string
	}{
		{
			name: "duplicate name",
			services: []domain.ServiceDefinition{
				{Name: "A", WorkerKey: "w"},
				{Name: "A", WorkerKey: "w"},
			},
			wantErr: ErrDuplicateService,
			wantSvc: "A",
		},
		{
			name: "self dependency",
			services: []domain.ServiceDefinition{
				{Name: "A", WorkerKey: "w", DependsOn: []string{"A"}},
			},
			wantErr: ErrSelfDependency,
			wantSvc: "A",
		},
		{
			name: "dangling dependency",
			services: []domain.ServiceDefinition{
				{Name: "A", WorkerKey: "w"},
				{Name: "B", WorkerKey: "w", DependsOn: []string{"missing"}},
			},
			wantErr: ErrMissingDependency,
			wantSvc: "B",
		},
		{
			name: "two node cycle",
			services: []domain.ServiceDefinition{
				{Name: "A", WorkerKey: "w", DependsOn: []string{"B"}},
				{Name: "B", WorkerKey: "w", DependsOn: []string{"A"}},
			},
			wantErr: ErrCyclicDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &domain.RunPlan{ID: "p", MaxRunDurationMs: 1000, Services: tt.services}

			err := Validate(plan)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if vErr.Service != tt.wantSvc {
				t.Errorf("expected service %q, got %q", tt.wantSvc, vErr.Service)
			}
		})
	}
}

func TestParsePlan(t *testing.T) {
	data := []byte(`{
		"id": "audit",
		"name": "Full audit",
		"max_run_duration_ms": 120000,
		"services": [
			{"name": "crawl", "worker_key": "crawler"},
			{"name": "content", "worker_key": "content", "depends_on": ["crawl"]}
		]
	}`)

	plan, err := ParsePlan(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.ID != "audit" || len(plan.Services) != 2 {
		t.Errorf("unexpected plan: %+v", plan)
	}
	if plan.Services[1].DependsOn[0] != "crawl" {
		t.Errorf("expected content to depend on crawl")
	}
}

func TestParsePlan_InvalidJSON(t *testing.T) {
	if _, err := ParsePlan([]byte(`{`)); err == nil {
		t.Fatal("expected error, got nil")
	}
}
