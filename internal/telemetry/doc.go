// Package telemetry — логирование и метрики Hermes.
//
// SetupLogger настраивает slog (JSON или text) и делает его логгером
// по умолчанию; WithRunID, WithJobID и WithTenant добавляют стандартные
// атрибуты. Логгер запроса передаётся через контекст (WithLogger/FromContext).
//
// Метрики регистрируются через promauto при импорте пакета и отдаются
// каждым бинарником на /metrics. Компоненты пишут их через Observe*-функции,
// не трогая коллекторы напрямую.
package telemetry
