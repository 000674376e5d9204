package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// maxReconnectDelay — потолок экспоненциальной задержки переподключения.
const maxReconnectDelay = 30 * time.Second

// Connection — AMQP соединение с автоматическим восстановлением.
//
// При разрыве канал и соединение пересоздаются с экспоненциальной
// задержкой; подписчики узнают о восстановлении через ReconnectNotify
// и перепривязывают своих consumers.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	closedCh    chan struct{}
	reconnectCh chan struct{}
}

// NewConnection подключается к RabbitMQ и запускает наблюдение за
// разрывами.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	c := &Connection{
		url:         url,
		logger:      logger,
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}
	if err := c.dial(); err != nil {
		return nil, err
	}
	go c.supervise()
	return c, nil
}

// dial устанавливает соединение и открывает канал.
func (c *Connection) dial() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ")
	return nil
}

// supervise ждёт разрыва соединения и восстанавливает его.
// Завершается при Close.
func (c *Connection) supervise() {
	for {
		c.mu.RLock()
		conn, closed := c.conn, c.closed
		c.mu.RUnlock()
		if closed {
			return
		}

		notify := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-c.closedCh:
			return
		case err := <-notify:
			if err != nil {
				c.logger.Warn("connection lost", "error", err)
			}
		}

		delay := time.Second
		for {
			select {
			case <-c.closedCh:
				return
			case <-time.After(delay):
			}

			if err := c.dial(); err != nil {
				c.logger.Warn("reconnect failed", "error", err, "retry_in", delay)
				delay = min(delay*2, maxReconnectDelay)
				continue
			}

			select {
			case c.reconnectCh <- struct{}{}:
			default:
			}
			break
		}
	}
}

// Channel возвращает текущий AMQP канал.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// WithChannel выполняет функцию с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := c.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}
	return fn(ch)
}

// ReconnectNotify возвращает канал уведомлений о переподключении.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// Close закрывает соединение. Повторный вызов безопасен.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			return fmt.Errorf("close channel: %w", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	}
	return nil
}
