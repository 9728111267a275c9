// Package orchestrator управляет выполнением runs.
//
// Жизненный цикл run:
//
//	StartRun → EnqueueRunJobs → WaitForRun → FinalizeRun
//
// StartRun валидирует план и создаёт RunState со всеми сервисами в pending.
// EnqueueRunJobs выполняет сервисы волнами: волна — все pending-сервисы,
// зависимости которых завершились успешно; следующая волна стартует только
// после завершения всех вызовов предыдущей. Сервисы, чьи зависимости упали,
// помечаются skipped и не вызываются. Дедлайн run проверяется между волнами.
// FinalizeRun закрывает неразрешённые результаты как timeout, считает итог,
// вызывает синтез и пишет аудит-событие run.status.
//
// Run объединяет все четыре шага и является единственной точкой запуска
// для API, scheduler'а и очереди runs.requested.
package orchestrator
