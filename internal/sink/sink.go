package sink

import (
	"context"
	"sync"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// Sink — упорядоченный append-only приёмник событий выполнения.
//
// Движок не знает о транспорте: sink может писать в память, в
// PostgreSQL, публиковать в RabbitMQ или на stdout. Гарантируется,
// что Append вызывается последовательно, в порядке выполнения узлов
// одного run.
type Sink interface {
	// Append добавляет событие в конец потока.
	Append(ctx context.Context, ev domain.RunEvent) error
}

// Memory — sink в памяти. Используется в тестах и CLI.
type Memory struct {
	mu     sync.Mutex
	events []domain.RunEvent
}

// NewMemory создаёт пустой Memory sink.
func NewMemory() *Memory {
	return &Memory{events: make([]domain.RunEvent, 0)}
}

// Append реализует Sink.
func (m *Memory) Append(_ context.Context, ev domain.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events возвращает копию накопленных событий.
func (m *Memory) Events() []domain.RunEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]domain.RunEvent, len(m.events))
	copy(events, m.events)
	return events
}

// Func — sink-адаптер над функцией. Удобен для стриминга на stdout.
type Func func(ctx context.Context, ev domain.RunEvent) error

// Append реализует Sink.
func (f Func) Append(ctx context.Context, ev domain.RunEvent) error {
	return f(ctx, ev)
}
