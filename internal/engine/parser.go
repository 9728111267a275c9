package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParsePlan парсит RunPlan из JSON и валидирует его.
func ParsePlan(data []byte) (*domain.RunPlan, error) {
	var plan domain.RunPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse run plan: %w", err)
	}
	if err := Validate(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate выполняет полную валидацию RunPlan.
//
// Проверяет:
// - Правила полей (id, хотя бы один сервис, name/worker_key, max duration > 0)
// - Уникальность имён сервисов
// - Отсутствие self-dependency
// - Существование всех depends_on
// - Отсутствие циклов (делегируется DAG)
func Validate(plan *domain.RunPlan) error {
	if plan == nil {
		return ErrNilPlan
	}

	if err := validateFields(plan); err != nil {
		return err
	}

	names := make(map[string]bool, len(plan.Services))
	for _, svc := range plan.Services {
		if names[svc.Name] {
			return NewValidationError(svc.Name, "name",
				fmt.Sprintf("duplicate service name: %s", svc.Name), ErrDuplicateService)
		}
		names[svc.Name] = true

		for _, dep := range svc.DependsOn {
			if dep == svc.Name {
				return NewValidationError(svc.Name, "depends_on",
					"service depends on itself", ErrSelfDependency)
			}
		}
	}

	for _, svc := range plan.Services {
		for _, dep := range svc.DependsOn {
			if !names[dep] {
				return NewValidationError(svc.Name, "depends_on",
					fmt.Sprintf("depends on unknown service: %s", dep), ErrMissingDependency)
			}
		}
	}

	if _, err := BuildDAG(plan); err != nil {
		return err
	}

	return nil
}

// validateFields проверяет struct-теги плана.
func validateFields(plan *domain.RunPlan) error {
	err := validate.Struct(plan)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return NewValidationError("", "", err.Error(), ErrInvalidPlanFields)
	}

	fe := fieldErrs[0]
	return NewValidationError("", fe.Namespace(),
		fmt.Sprintf("field %s failed rule %q", fe.Namespace(), fe.Tag()), ErrInvalidPlanFields)
}
