// Package cli реализует утилиту командной строки hermes.
//
// CLI общается с Hermes API только по HTTP и не импортирует внутренние
// пакеты: типы ответов продублированы в client.go.
//
// Команды сгруппированы по ресурсам:
//   - run: start, events
//   - plan: list, show
//   - test: connection, smoke (с --wait дожидается результата)
//   - job: status
//   - worker: config
//
// Каждая группа создаётся фабрикой (NewRunCmd и т.д.), которая принимает
// clientFn и outputFn. Client и Output создаются лениво, после разбора
// persistent-флагов --api-url и --json.
//
//	hermes test smoke acme --domain example.com --wait --json | jq .summary
package cli
