// Package scheduler периодически запускает планы по расписаниям каталога.
//
// Scheduler не создаёт run сам: он публикует run.requested в RabbitMQ,
// а оркестратор исполняет запрос. Ключ идемпотентности
// "{schedule_id}_{next_due_unix}" гарантирует не более одного run на слот.
//
// Структура:
//   - scheduler.go — Init, Tick, публикация и сдвиг NextDueAt
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedules: catalog.Schedules(),
//	    Publisher: publisher,
//	    State:     repo.NewScheduleRepo(pool), // опционально
//	    Logger:    logger,
//	})
//	if err := sched.Init(ctx, time.Now()); err != nil { ... }
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	_ = sched.Tick(ctx, time.Now())
//
// Leader election делается в main.go через pg_try_advisory_lock.
// Tick вызывается только лидером.
package scheduler
