package engine

import "errors"

// Ошибки валидации RunPlan.
var (
	// ErrNilPlan — план не передан.
	ErrNilPlan = errors.New("run plan is nil")

	// ErrInvalidPlanFields — нарушены правила полей плана (id, services, max duration).
	ErrInvalidPlanFields = errors.New("run plan fields are invalid")

	// ErrDuplicateService — несколько сервисов с одинаковым именем.
	ErrDuplicateService = errors.New("duplicate service name")

	// ErrMissingDependency — сервис зависит от несуществующего сервиса.
	ErrMissingDependency = errors.New("service depends on unknown service")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — сервис зависит от самого себя.
	ErrSelfDependency = errors.New("service depends on itself")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Service string // имя сервиса, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Service != "" {
		return "service " + e.Service + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(service, field, message string, err error) *ValidationError {
	return &ValidationError{
		Service: service,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
