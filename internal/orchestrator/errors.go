package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrPlanNotFound — план с указанным ID не найден.
	ErrPlanNotFound = errors.New("run plan not found")

	// ErrInvalidPlan — план не прошёл валидацию (цикл, висячая зависимость, поля).
	ErrInvalidPlan = errors.New("invalid run plan")

	// ErrInvalidRequest — запрос на запуск без tenant, domain или plan.
	ErrInvalidRequest = errors.New("invalid run request")

	// ErrRunAlreadyActive — run с тем же ключом идемпотентности уже выполняется.
	ErrRunAlreadyActive = errors.New("run already being processed")

	// ErrNilState — передан nil RunState.
	ErrNilState = errors.New("run state is nil")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
