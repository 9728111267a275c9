// Package testjob запускает пользовательские проверки всех HTTP-воркеров.
//
// Два режима:
//   - connection_all — warmup и health-пробы с токеном и без
//   - smoke_all      — реальный запуск воркера в режиме smoke и сверка outputs
//
// Start* возвращает задачу сразу в статусе running; сервисы обрабатываются
// последовательно в горутине раннера, снимок задачи сохраняется в Store
// после каждого изменения. Клиент опрашивает GetJobStatus.
package testjob
