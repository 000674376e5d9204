package sink

import (
	"context"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/mq"
)

// AMQP — sink, публикующий события run в RabbitMQ (fanout-обменник
// nodeflow.events). Подписчики — стриминг и внешняя персистентность.
type AMQP struct {
	publisher *mq.Publisher
}

// NewAMQP создаёт AMQP sink поверх publisher'а.
func NewAMQP(publisher *mq.Publisher) *AMQP {
	return &AMQP{publisher: publisher}
}

// Append реализует Sink.
func (a *AMQP) Append(ctx context.Context, ev domain.RunEvent) error {
	return a.publisher.PublishRunEvent(ctx, ev)
}
