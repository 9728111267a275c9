package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение. Ошибка означает nack.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — разобранный конверт вместе с AMQP-метаданными.
type Delivery struct {
	Message Message

	// Redelivered — брокер уже доставлял это сообщение.
	Redelivered bool

	raw amqp.Delivery
}

// settlement — как закрыть доставку после обработчика.
type settlement int

const (
	settleAck settlement = iota
	settleRequeue
	settleDeadLetter
)

// settle решает судьбу сообщения. Повторно доставленное сообщение,
// которое снова упало, уходит в DLQ, чтобы не крутиться в очереди.
func settle(handlerErr error, requeueOnError, redelivered bool) settlement {
	switch {
	case handlerErr == nil:
		return settleAck
	case requeueOnError && !redelivered:
		return settleRequeue
	default:
		return settleDeadLetter
	}
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Types — принимаемые типы сообщений; пустой список принимает всё.
	// Сообщения других типов подтверждаются и отбрасываются.
	Types []MessageType

	// Prefetch — QoS канала (default: 1).
	Prefetch int

	// RequeueOnError — вернуть сообщение в очередь при первой ошибке обработчика.
	RequeueOnError bool
}

// Consumer читает очередь и переподписывается после reconnect.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig
	types  map[MessageType]struct{}

	cancelFunc context.CancelFunc
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	var types map[MessageType]struct{}
	if len(cfg.Types) > 0 {
		types = make(map[MessageType]struct{}, len(cfg.Types))
		for _, t := range cfg.Types {
			types[t] = struct{}{}
		}
	}

	return &Consumer{
		conn:   conn,
		logger: logger.With("queue", cfg.Queue),
		cfg:    cfg,
		types:  types,
	}
}

// Start блокируется до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			err = c.drain(ctx, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("delivery channel closed, waiting for reconnect", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, resubscribing")
		}
	}
}

// Stop прерывает Start.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// Ручной ack: сообщение подтверждается только после обработчика.
	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}
	return deliveries, nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.dispatch(ctx, raw)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message, dead-lettering", "error", err, "bytes", len(raw.Body))
		c.finish(raw, settleDeadLetter)
		return
	}

	log := c.logger.With("message_id", msg.ID, "type", msg.Type)

	if c.types != nil {
		if _, ok := c.types[msg.Type]; !ok {
			log.Warn("unexpected message type dropped")
			c.finish(raw, settleAck)
			return
		}
	}

	d := &Delivery{Message: msg, Redelivered: raw.Redelivered, raw: raw}
	err := c.cfg.Handler(ctx, d)

	outcome := settle(err, c.cfg.RequeueOnError, raw.Redelivered)
	switch outcome {
	case settleRequeue:
		log.Warn("handler failed, requeueing", "error", err)
	case settleDeadLetter:
		log.Error("handler failed, dead-lettering", "error", err, "redelivered", raw.Redelivered)
	default:
		log.Debug("message handled")
	}
	c.finish(raw, outcome)
}

func (c *Consumer) finish(raw amqp.Delivery, s settlement) {
	var err error
	switch s {
	case settleAck:
		err = raw.Ack(false)
	case settleRequeue:
		err = raw.Nack(false, true)
	default:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("failed to settle delivery", "error", err)
	}
}

// ParsePayload декодирует Payload конверта в T.
// После json.Unmarshal конверта payload — это map[string]any, поэтому
// он перекодируется через JSON.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T

	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return out, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return out, nil
}
