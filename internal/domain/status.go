package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	STARTED → RUNNING → COMPLETED
//	                  ↘ FAILED
//	                  ↘ TIMEOUT
type RunStatus string

const (
	// RunStatusStarted — run создан, план провалидирован.
	RunStatusStarted RunStatus = "started"

	// RunStatusRunning — run выполняет волны сервисов.
	RunStatusRunning RunStatus = "running"

	// RunStatusCompleted — run завершён (хотя бы один сервис успешен или ошибок нет).
	RunStatusCompleted RunStatus = "completed"

	// RunStatusFailed — были ошибки и ни одного успешного сервиса.
	RunStatusFailed RunStatus = "failed"

	// RunStatusTimeout — превышен maxRunDurationMs.
	RunStatusTimeout RunStatus = "timeout"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusTimeout:
		return true
	default:
		return false
	}
}

// ServiceStatus — статус выполнения одного сервиса внутри run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED | FAILED | TIMEOUT
//	PENDING → SKIPPED (зависимость упала)
//	PENDING → TIMEOUT (глобальный дедлайн run)
type ServiceStatus string

const (
	// ServiceStatusPending — сервис ждёт своей волны.
	ServiceStatusPending ServiceStatus = "pending"

	// ServiceStatusRunning — вызов воркера в процессе.
	ServiceStatusRunning ServiceStatus = "running"

	// ServiceStatusCompleted — воркер вернул успешный результат.
	ServiceStatusCompleted ServiceStatus = "completed"

	// ServiceStatusFailed — вызов завершился ошибкой.
	ServiceStatusFailed ServiceStatus = "failed"

	// ServiceStatusTimeout — вызов или run превысили таймаут.
	ServiceStatusTimeout ServiceStatus = "timeout"

	// ServiceStatusSkipped — сервис не запускался, т.к. зависимость не завершилась успешно.
	ServiceStatusSkipped ServiceStatus = "skipped"
)

// IsTerminal возвращает true, если статус финальный.
func (s ServiceStatus) IsTerminal() bool {
	switch s {
	case ServiceStatusCompleted, ServiceStatusFailed, ServiceStatusTimeout, ServiceStatusSkipped:
		return true
	default:
		return false
	}
}

// ConfigStatus — результат резолва конфигурации воркера.
type ConfigStatus string

const (
	// ConfigStatusReady — конфигурация валидна, воркер можно вызывать.
	ConfigStatusReady ConfigStatus = "ready"

	// ConfigStatusNeedsConfig — секрет отсутствует.
	ConfigStatusNeedsConfig ConfigStatus = "needs_config"

	// ConfigStatusBlocked — секрет есть, но в нём нет обязательного base_url.
	ConfigStatusBlocked ConfigStatus = "blocked"

	// ConfigStatusError — секрет нечитаем или содержит невалидные данные.
	ConfigStatusError ConfigStatus = "error"
)

// JobType — тип тестовой задачи.
type JobType string

const (
	// JobTypeConnectionAll — проверка доступности всех HTTP-воркеров.
	JobTypeConnectionAll JobType = "connection_all"

	// JobTypeSmokeAll — smoke-вызов всех HTTP-воркеров с проверкой outputs.
	JobTypeSmokeAll JobType = "smoke_all"
)

// JobStatus — статус тестовой задачи.
//
//	RUNNING → DONE
//	        ↘ FAILED
type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// CheckStatus — статус проверки одного сервиса внутри тестовой задачи.
type CheckStatus string

const (
	CheckStatusQueued  CheckStatus = "queued"
	CheckStatusRunning CheckStatus = "running"
	CheckStatusPass    CheckStatus = "pass"
	CheckStatusPartial CheckStatus = "partial"
	CheckStatusFail    CheckStatus = "fail"
	CheckStatusSkipped CheckStatus = "skipped"
)
