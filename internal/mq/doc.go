// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect и graceful shutdown
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация запросов и событий run
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.requested — запрос на запуск run (API async, scheduler)
//   - run.event     — аудит-факт run.started / run.status
//
// Exchanges:
//   - hermes.runs — запросы и события runs
//   - hermes.dlq  — dead letter queue
package mq
