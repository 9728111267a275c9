// Package worker содержит примитивы вызова воркер-сервисов по HTTP.
//
// Включает:
//   - caller.go   — один исходящий вызов с единственным повтором после холодного старта
//   - poll.go     — опрос статуса асинхронной задачи воркера (202 + jobId)
//   - executor.go — одно выполнение сервиса в рамках run с нормализованным Outcome
//
// Воркеры засыпают между вызовами, поэтому первый запрос после простоя
// может получить 502/503/504 или обрыв соединения. Caller повторяет такой
// вызов ровно один раз после фиксированной паузы.
package worker
