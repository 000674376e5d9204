package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Ошибки admission control.
var (
	// ErrQueueFull — очередь ожидания переполнена, запрос отклонён сразу.
	ErrQueueFull = errors.New("broker queue is full")

	// ErrAcquireTimeout — слот не получен за отведённое время.
	ErrAcquireTimeout = errors.New("broker acquire timeout")

	// ErrCancelled — ожидание слота отменено (run отменён).
	ErrCancelled = errors.New("broker acquire cancelled")

	// ErrClosed — брокер остановлен.
	ErrClosed = errors.New("broker is closed")
)

// Значения по умолчанию.
const (
	defaultGlobalLimit    = 16
	defaultQueueDepth     = 64
	defaultAcquireTimeout = 30 * time.Second
	defaultSlotTimeout    = 5 * time.Minute
	watchdogInterval      = 1 * time.Second
)

// Config — конфигурация брокера.
type Config struct {
	// GlobalLimit — общий потолок одновременно удерживаемых слотов.
	GlobalLimit int

	// CategoryLimits — опциональные потолки по категориям
	// (http, store, model, ...). Категория без потолка ограничена
	// только глобальным.
	CategoryLimits map[string]int

	// QueueDepth — максимальное число ожидающих acquire.
	// При переполнении acquire отклоняется сразу с ErrQueueFull.
	QueueDepth int

	// AcquireTimeout — максимальное время ожидания слота.
	AcquireTimeout time.Duration

	// SlotTimeout — максимальное время удержания слота.
	// Слоты, удерживаемые дольше, принудительно освобождаются watchdog'ом.
	SlotTimeout time.Duration

	// Logger — логгер. Если nil, используется slog.Default().
	Logger *slog.Logger
}

// Broker — шлюз admission control для executor'ов, работающих с
// внешними ресурсами.
//
// Поддерживает глобальный потолок и опциональные потолки по
// категориям: шумная категория не может выесть все слоты у остальных.
// Счётчики обновляются атомарно и не держат блокировку на время
// выполнения executor'а.
type Broker struct {
	global     chan struct{}
	categories map[string]chan struct{}

	queueDepth     int
	acquireTimeout time.Duration
	slotTimeout    time.Duration
	logger         *slog.Logger

	// Атомарные счётчики метрик.
	inFlight       atomic.Int64
	queueLength    atomic.Int64
	acquiredTotal  atomic.Int64
	rejectedTotal  atomic.Int64
	timedOutTotal  atomic.Int64
	cancelledTotal atomic.Int64
	forcedTotal    atomic.Int64
	holdNanos      atomic.Int64
	releasedTotal  atomic.Int64

	// Активные слоты для watchdog'а.
	mu     sync.Mutex
	slots  map[int64]*Slot
	nextID atomic.Int64

	closed   atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Slot — удерживаемый слот брокера.
type Slot struct {
	id         int64
	category   string
	acquiredAt time.Time
	deadline   time.Time
	released   atomic.Bool
	forced     atomic.Bool
	broker     *Broker
}

// Category возвращает категорию слота.
func (s *Slot) Category() string {
	return s.category
}

// Forced возвращает true, если слот был принудительно освобождён watchdog'ом.
func (s *Slot) Forced() bool {
	return s.forced.Load()
}

// New создаёт брокер и запускает watchdog принудительного освобождения.
func New(cfg Config) *Broker {
	if cfg.GlobalLimit <= 0 {
		cfg.GlobalLimit = defaultGlobalLimit
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}
	if cfg.SlotTimeout <= 0 {
		cfg.SlotTimeout = defaultSlotTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	b := &Broker{
		global:         make(chan struct{}, cfg.GlobalLimit),
		categories:     make(map[string]chan struct{}, len(cfg.CategoryLimits)),
		queueDepth:     cfg.QueueDepth,
		acquireTimeout: cfg.AcquireTimeout,
		slotTimeout:    cfg.SlotTimeout,
		logger:         cfg.Logger,
		slots:          make(map[int64]*Slot),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}

	for category, limit := range cfg.CategoryLimits {
		if limit > 0 {
			b.categories[category] = make(chan struct{}, limit)
		}
	}

	go b.watchdog()

	return b
}

// Acquire получает слот для категории.
//
// Блокируется до получения слота, но не дольше AcquireTimeout.
// Если очередь ожидания переполнена — возвращает ErrQueueFull сразу.
// Отмена ctx возвращает ErrCancelled.
func (b *Broker) Acquire(ctx context.Context, category string) (*Slot, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	// Проверка глубины очереди до постановки в ожидание.
	if b.queueLength.Add(1) > int64(b.queueDepth) {
		b.queueLength.Add(-1)
		b.rejectedTotal.Add(1)
		return nil, fmt.Errorf("%w: category %s, depth %d", ErrQueueFull, category, b.queueDepth)
	}
	defer b.queueLength.Add(-1)

	timer := time.NewTimer(b.acquireTimeout)
	defer timer.Stop()

	// Сначала берём слот категории (если у категории есть потолок),
	// затем глобальный. Порядок фиксированный для всех acquire,
	// поэтому взаимная блокировка невозможна.
	catCh := b.categories[category]
	if catCh != nil {
		select {
		case catCh <- struct{}{}:
		case <-ctx.Done():
			b.cancelledTotal.Add(1)
			return nil, fmt.Errorf("%w: category %s", ErrCancelled, category)
		case <-timer.C:
			b.timedOutTotal.Add(1)
			return nil, fmt.Errorf("%w: category %s after %s", ErrAcquireTimeout, category, b.acquireTimeout)
		case <-b.stopCh:
			return nil, ErrClosed
		}
	}

	select {
	case b.global <- struct{}{}:
	case <-ctx.Done():
		b.releaseCategory(category)
		b.cancelledTotal.Add(1)
		return nil, fmt.Errorf("%w: category %s", ErrCancelled, category)
	case <-timer.C:
		b.releaseCategory(category)
		b.timedOutTotal.Add(1)
		return nil, fmt.Errorf("%w: category %s after %s", ErrAcquireTimeout, category, b.acquireTimeout)
	case <-b.stopCh:
		b.releaseCategory(category)
		return nil, ErrClosed
	}

	now := time.Now()
	slot := &Slot{
		id:         b.nextID.Add(1),
		category:   category,
		acquiredAt: now,
		deadline:   now.Add(b.slotTimeout),
		broker:     b,
	}

	b.mu.Lock()
	b.slots[slot.id] = slot
	b.mu.Unlock()

	b.inFlight.Add(1)
	b.acquiredTotal.Add(1)

	return slot, nil
}

// Release освобождает слот. Повторные вызовы безопасны.
func (b *Broker) Release(slot *Slot) {
	if slot == nil || !slot.released.CompareAndSwap(false, true) {
		return
	}

	b.mu.Lock()
	delete(b.slots, slot.id)
	b.mu.Unlock()

	<-b.global
	b.releaseCategory(slot.category)

	b.inFlight.Add(-1)
	b.releasedTotal.Add(1)
	b.holdNanos.Add(int64(time.Since(slot.acquiredAt)))
}

// releaseCategory возвращает слот категории, если у неё есть потолок.
func (b *Broker) releaseCategory(category string) {
	if catCh := b.categories[category]; catCh != nil {
		<-catCh
	}
}

// watchdog принудительно освобождает слоты, удерживаемые дольше
// SlotTimeout: executor, который никогда не вызовет Release, не должен
// навсегда занять слот.
func (b *Broker) watchdog() {
	defer close(b.doneCh)

	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case now := <-ticker.C:
			b.reapExpired(now)
		}
	}
}

// reapExpired находит и освобождает просроченные слоты.
func (b *Broker) reapExpired(now time.Time) {
	b.mu.Lock()
	expired := make([]*Slot, 0)
	for _, slot := range b.slots {
		if now.After(slot.deadline) {
			expired = append(expired, slot)
		}
	}
	b.mu.Unlock()

	for _, slot := range expired {
		slot.forced.Store(true)
		b.forcedTotal.Add(1)
		b.logger.Warn("force-releasing expired slot",
			"category", slot.category,
			"held", now.Sub(slot.acquiredAt).String())
		b.Release(slot)
	}
}

// Close останавливает watchdog. Удерживаемые слоты не освобождаются.
func (b *Broker) Close() {
	b.stopOnce.Do(func() {
		b.closed.Store(true)
		close(b.stopCh)
		<-b.doneCh
	})
}

// Metrics — снимок метрик брокера.
type Metrics struct {
	// InFlight — число удерживаемых слотов.
	InFlight int64

	// QueueLength — число ожидающих acquire.
	QueueLength int64

	// AcquiredTotal — всего выдано слотов.
	AcquiredTotal int64

	// RejectedTotal — всего отклонено из-за переполнения очереди.
	RejectedTotal int64

	// TimedOutTotal — всего истекло по таймауту ожидания.
	TimedOutTotal int64

	// CancelledTotal — всего отменено ожиданий.
	CancelledTotal int64

	// ForcedTotal — всего принудительно освобождено watchdog'ом.
	ForcedTotal int64

	// AvgHold — среднее время удержания освобождённых слотов.
	AvgHold time.Duration
}

// Snapshot возвращает текущий снимок метрик.
func (b *Broker) Snapshot() Metrics {
	m := Metrics{
		InFlight:       b.inFlight.Load(),
		QueueLength:    b.queueLength.Load(),
		AcquiredTotal:  b.acquiredTotal.Load(),
		RejectedTotal:  b.rejectedTotal.Load(),
		TimedOutTotal:  b.timedOutTotal.Load(),
		CancelledTotal: b.cancelledTotal.Load(),
		ForcedTotal:    b.forcedTotal.Load(),
	}
	if released := b.releasedTotal.Load(); released > 0 {
		m.AvgHold = time.Duration(b.holdNanos.Load() / released)
	}
	return m
}
