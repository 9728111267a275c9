package mq

import "errors"

// Ошибки MQ.
var (
	// ErrNoChannel — AMQP-канал недоступен (соединение разорвано).
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrClosed — соединение закрыто через Close.
	ErrClosed = errors.New("amqp connection closed")
)
