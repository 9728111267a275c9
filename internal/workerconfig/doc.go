// Package workerconfig резолвит логический ключ воркера в конфигурацию
// вызова (base URL, API-ключ, пути) по одному секрету.
//
// Resolve не кэширует результат и не возвращает ошибок: любая проблема
// конфигурации выражается статусом и полем Error в domain.WorkerConfig.
package workerconfig
