package domain

// ServiceDefinition — описание одного сервиса внутри плана.
//
// Name уникален в пределах плана, WorkerKey указывает на запись
// реестра воркеров (по нему резолвится конфигурация).
type ServiceDefinition struct {
	// Name — уникальное имя сервиса в плане.
	Name string `json:"name" yaml:"name" validate:"required"`

	// WorkerKey — ключ воркера в реестре.
	WorkerKey string `json:"worker_key" yaml:"worker_key" validate:"required"`

	// DependsOn — имена сервисов, которые должны завершиться успешно до запуска.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// RunPlan — декларативный план выполнения run.
//
// План неизменяем после загрузки и валидируется до старта любого run:
// без циклов, все зависимости существуют.
type RunPlan struct {
	// ID — идентификатор плана.
	ID string `json:"id" yaml:"id" validate:"required"`

	// Name — человекочитаемое имя.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Services — упорядоченный список сервисов.
	Services []ServiceDefinition `json:"services" yaml:"services" validate:"required,min=1,dive"`

	// MaxRunDurationMs — глобальный дедлайн run в миллисекундах.
	MaxRunDurationMs int64 `json:"max_run_duration_ms" yaml:"max_run_duration_ms" validate:"gt=0"`
}

// Service возвращает определение сервиса по имени.
func (p *RunPlan) Service(name string) (ServiceDefinition, bool) {
	for _, svc := range p.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return ServiceDefinition{}, false
}

// WorkerService — запись реестра воркеров.
type WorkerService struct {
	// Key — логический ключ воркера.
	Key string `json:"key" yaml:"key"`

	// Name — отображаемое имя.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// SecretName — имя секрета с конфигурацией.
	// Может содержать плейсхолдер {tenant}.
	SecretName string `json:"secret_name" yaml:"secret_name"`

	// HTTP — воркер доступен по HTTP и участвует в тестовых прогонах.
	HTTP bool `json:"http" yaml:"http"`

	// RequiresBaseURL — без base_url воркер вызвать нельзя.
	RequiresBaseURL bool `json:"requires_base_url" yaml:"requires_base_url"`

	// ExpectedOutputs — ключи, которые воркер обязан вернуть в smoke-режиме.
	ExpectedOutputs []string `json:"expected_outputs,omitempty" yaml:"expected_outputs,omitempty"`
}
