package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequest MessageType = "run.request"
	MessageTypeRunEvent   MessageType = "run.event"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload json.RawMessage `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunRequest публикует запрос на выполнение графа.
// Потребитель: nodeflow-engine.
func (p *Publisher) PublishRunRequest(ctx context.Context, req *domain.RunRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal run request: %w", err)
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunRequest,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequest, msg)
}

// PublishRunEvent публикует событие выполнения узла.
// Потребители: подписчики nodeflow.events (стриминг, персистентность).
func (p *Publisher) PublishRunEvent(ctx context.Context, ev domain.RunEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunEvent,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyEvent, msg)
}
