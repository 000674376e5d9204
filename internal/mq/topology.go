package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeRuns — запросы на выполнение графов.
	ExchangeRuns Exchange = "nodeflow.runs"

	// ExchangeEvents — события выполнения узлов (fanout).
	ExchangeEvents Exchange = "nodeflow.events"

	// ExchangeDLQ — dead letter queue.
	ExchangeDLQ Exchange = "nodeflow.dlq"
)

// Queues — имена очередей.
const (
	// QueueRunRequests — очередь запросов на выполнение (потребляет nodeflow-engine).
	QueueRunRequests Queue = "runs.requests"

	// QueueRunEvents — очередь событий выполнения для персистентности.
	QueueRunEvents Queue = "runs.events"

	// QueueDLQRuns — мёртвые запросы.
	QueueDLQRuns Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyRequest RoutingKey = "request"
	RoutingKeyEvent   RoutingKey = "event"
	RoutingKeyDLQRuns RoutingKey = "runs"
)

// SetupTopology объявляет exchanges, queues и bindings.
// Идемпотентна: повторный вызов на существующей топологии безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeRuns, "direct"},
		{ExchangeEvents, "fanout"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // args
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Запросы на выполнение уходят в DLQ после отклонения
	requestArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueueRunRequests, requestArgs},
		{QueueRunEvents, nil},
		{QueueDLQRuns, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // auto-delete
			false,          // exclusive
			false,          // no-wait
			q.args,         // args
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue    Queue
		key      RoutingKey
		exchange Exchange
	}{
		{QueueRunRequests, RoutingKeyRequest, ExchangeRuns},
		{QueueRunEvents, RoutingKeyEvent, ExchangeEvents},
		{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),    // queue
			string(b.key),      // routing key
			string(b.exchange), // exchange
			false,              // no-wait
			nil,                // args
		)
		if err != nil {
			return fmt.Errorf("bind %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}
