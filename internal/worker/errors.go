package worker

import "errors"

// Ошибки вызова воркера.
var (
	// ErrHTTPRequest — HTTP-запрос не удалось выполнить.
	ErrHTTPRequest = errors.New("http request failed")

	// ErrNoBaseURL — у конфигурации воркера нет base_url.
	ErrNoBaseURL = errors.New("worker has no base_url")

	// ErrNoJobID — воркер ответил 202 без идентификатора задачи.
	ErrNoJobID = errors.New("accepted response has no job id")

	// ErrPollExhausted — задача воркера не завершилась за отведённое число опросов.
	ErrPollExhausted = errors.New("worker job poll attempts exhausted")
)
