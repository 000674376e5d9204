package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBroker_AcquireRelease(t *testing.T) {
	b := New(Config{GlobalLimit: 2})
	defer b.Close()

	ctx := context.Background()

	s1, err := b.Acquire(ctx, "http")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s2, err := b.Acquire(ctx, "http")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := b.Snapshot()
	if m.InFlight != 2 {
		t.Errorf("expected 2 in flight, got %d", m.InFlight)
	}
	if m.AcquiredTotal != 2 {
		t.Errorf("expected 2 acquired, got %d", m.AcquiredTotal)
	}

	b.Release(s1)
	b.Release(s2)

	// Повторный Release безопасен
	b.Release(s1)

	m = b.Snapshot()
	if m.InFlight != 0 {
		t.Errorf("expected 0 in flight, got %d", m.InFlight)
	}
}

func TestBroker_NeverExceedsCeiling(t *testing.T) {
	const limit = 3
	b := New(Config{GlobalLimit: limit, QueueDepth: 100, AcquireTimeout: 5 * time.Second})
	defer b.Close()

	var held atomic.Int64
	var maxHeld atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			slot, err := b.Acquire(context.Background(), "http")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			cur := held.Add(1)
			for {
				prev := maxHeld.Load()
				if cur <= prev || maxHeld.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			held.Add(-1)
			b.Release(slot)
		}()
	}

	wg.Wait()

	if maxHeld.Load() > limit {
		t.Errorf("ceiling exceeded: %d > %d", maxHeld.Load(), limit)
	}
}

func TestBroker_CategoryLimit(t *testing.T) {
	b := New(Config{
		GlobalLimit:    10,
		CategoryLimits: map[string]int{"model": 1},
		AcquireTimeout: 50 * time.Millisecond,
	})
	defer b.Close()

	ctx := context.Background()

	s1, err := b.Acquire(ctx, "model")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Категория model исчерпана — таймаут
	_, err = b.Acquire(ctx, "model")
	if !errors.Is(err, ErrAcquireTimeout) {
		t.Errorf("expected ErrAcquireTimeout, got %v", err)
	}

	// Другая категория не затронута
	s3, err := b.Acquire(ctx, "http")
	if err != nil {
		t.Errorf("other category starved: %v", err)
	}

	b.Release(s1)
	b.Release(s3)
}

func TestBroker_QueueFull(t *testing.T) {
	b := New(Config{GlobalLimit: 1, QueueDepth: 1, AcquireTimeout: time.Second})
	defer b.Close()

	ctx := context.Background()

	s1, err := b.Acquire(ctx, "http")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Release(s1)

	// Первый ожидающий занимает очередь
	go func() {
		slot, err := b.Acquire(ctx, "http")
		if err == nil {
			b.Release(slot)
		}
	}()
	time.Sleep(20 * time.Millisecond)

	// Второй отклоняется сразу
	_, err = b.Acquire(ctx, "http")
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	m := b.Snapshot()
	if m.RejectedTotal != 1 {
		t.Errorf("expected 1 rejected, got %d", m.RejectedTotal)
	}
}

func TestBroker_CancelledAcquire(t *testing.T) {
	b := New(Config{GlobalLimit: 1, AcquireTimeout: 5 * time.Second})
	defer b.Close()

	s1, err := b.Acquire(context.Background(), "http")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer b.Release(s1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = b.Acquire(ctx, "http")
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestBroker_WatchdogForcesRelease(t *testing.T) {
	b := New(Config{GlobalLimit: 1, SlotTimeout: 50 * time.Millisecond})
	defer b.Close()

	slot, err := b.Acquire(context.Background(), "http")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Слот не освобождаем — watchdog должен сделать это сам
	deadline := time.After(5 * time.Second)
	for b.Snapshot().ForcedTotal == 0 {
		select {
		case <-deadline:
			t.Fatal("watchdog did not force-release the slot")
		case <-time.After(20 * time.Millisecond):
		}
	}

	if !slot.Forced() {
		t.Error("slot should be marked as forced")
	}

	// Слот снова доступен
	s2, err := b.Acquire(context.Background(), "http")
	if err != nil {
		t.Errorf("slot not recovered after force release: %v", err)
	}
	b.Release(s2)
}
