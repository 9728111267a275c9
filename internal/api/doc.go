// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go        — Handler с DI (оркестратор, каталог, раннер тестов, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (logging, metrics, recovery)
//   - response.go       — унифицированные JSON-ответы и маппинг доменных ошибок
//   - decode.go         — разбор и валидация тела запроса
//   - dto.go            — Data Transfer Objects (request/response)
//   - run_handler.go    — запуск run и журнал событий
//   - plan_handler.go   — планы каталога
//   - test_handler.go   — тестовые задачи и их опрос
//   - worker_handler.go — статус конфигурации воркера
//
// Ответы: {"data": ...} или {"error": {"code", "message"}}.
package api
