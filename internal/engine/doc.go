// Package engine содержит валидацию и граф зависимостей RunPlan.
//
// Включает:
//   - parser.go — парсинг и валидация RunPlan (struct-правила + граф)
//   - dag.go    — построение DAG и вычисление готовых к запуску сервисов
//
// Engine отвечает за понимание структуры плана и определение
// волн выполнения на основе зависимостей сервисов.
package engine
