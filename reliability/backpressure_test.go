package reliability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackpressureManager_PushPopFIFO(t *testing.T) {
	m := NewBackpressureManager(BackpressureConfig{MaxSize: 10})
	defer m.Shutdown()

	ctx := context.Background()
	for _, v := range []int{1, 2, 3} {
		if _, err := m.Push(ctx, v); err != nil {
			t.Fatalf("Push(%d) error = %v", v, err)
		}
	}

	for _, want := range []int{1, 2, 3} {
		item, ok, err := m.Pop(ctx)
		if err != nil || !ok {
			t.Fatalf("Pop() = %v, %v, %v", item, ok, err)
		}
		if item != want {
			t.Errorf("Pop() = %v, want %v", item, want)
		}
	}
}

func TestBackpressureManager_DropNewestAtCapacity(t *testing.T) {
	m := NewBackpressureManager(BackpressureConfig{MaxSize: 2, Strategy: DropNewest})
	defer m.Shutdown()

	ctx := context.Background()
	m.Push(ctx, 1)
	m.Push(ctx, 2)

	if _, err := m.Push(ctx, 3); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Push at capacity = %v, want ErrQueueFull", err)
	}

	stats := m.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
}

func TestBackpressureManager_DropOldestAtCapacity(t *testing.T) {
	m := NewBackpressureManager(BackpressureConfig{MaxSize: 2, Strategy: DropOldest})
	defer m.Shutdown()

	ctx := context.Background()
	m.Push(ctx, 1)
	m.Push(ctx, 2)

	dropped, err := m.Push(ctx, 3)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if !dropped {
		t.Error("expected droppedExisting = true")
	}

	item, _, _ := m.Pop(ctx)
	if item != 2 {
		t.Errorf("oldest surviving item = %v, want 2 (1 was evicted)", item)
	}
}

func TestBackpressureManager_BlockUnblocksOnPop(t *testing.T) {
	m := NewBackpressureManager(BackpressureConfig{MaxSize: 1, Strategy: Block})
	defer m.Shutdown()

	ctx := context.Background()
	m.Push(ctx, 1)

	done := make(chan error, 1)
	go func() {
		_, err := m.Push(ctx, 2)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("blocking Push should not have returned yet")
	default:
	}

	m.Pop(ctx)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("blocked Push error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Push never unblocked after a Pop freed a slot")
	}
}

func TestBackpressureManager_BlockRespectsContextCancellation(t *testing.T) {
	m := NewBackpressureManager(BackpressureConfig{MaxSize: 1, Strategy: Block})
	defer m.Shutdown()

	bg := context.Background()
	m.Push(bg, 1)

	ctx, cancel := context.WithCancel(bg)
	done := make(chan error, 1)
	go func() {
		_, err := m.Push(ctx, 2)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Push error after cancel = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled blocking Push never returned")
	}
}

func TestBackpressureManager_PressureHysteresis(t *testing.T) {
	var pressureEvents, reliefEvents int
	ready := make(chan struct{}, 10)

	m := NewBackpressureManager(BackpressureConfig{
		HighWater: 2,
		LowWater:  1,
		MaxSize:   10,
		OnPressure: func(level float64) {
			pressureEvents++
			ready <- struct{}{}
		},
		OnRelief: func() {
			reliefEvents++
			ready <- struct{}{}
		},
	})
	defer m.Shutdown()

	ctx := context.Background()
	m.Push(ctx, 1)
	m.Push(ctx, 2) // crosses HighWater
	<-ready

	if pressureEvents != 1 {
		t.Fatalf("pressureEvents = %d, want 1", pressureEvents)
	}

	m.Pop(ctx) // length 1, at LowWater, should relieve
	<-ready

	if reliefEvents != 1 {
		t.Errorf("reliefEvents = %d, want 1", reliefEvents)
	}
}

func TestBackpressureManager_Drain(t *testing.T) {
	m := NewBackpressureManager(BackpressureConfig{MaxSize: 2, HighWater: 1, LowWater: 1, Strategy: DropOldest})
	defer m.Shutdown()

	ctx := context.Background()
	m.Push(ctx, 1)
	m.Push(ctx, 2)
	m.Push(ctx, 3) // queue full, drops item 1

	if got := m.Stats().Dropped; got != 1 {
		t.Fatalf("Dropped before Drain = %d, want 1", got)
	}

	items := m.Drain()
	if len(items) != 2 {
		t.Fatalf("Drain() returned %d items, want 2", len(items))
	}
	if m.Stats().Length != 0 {
		t.Error("queue should be empty after Drain")
	}
	if got := m.Stats().Dropped; got != 0 {
		t.Errorf("Dropped after Drain = %d, want 0 (cleared)", got)
	}
}

func TestBackpressureManager_ShutdownUnblocksWaiters(t *testing.T) {
	m := NewBackpressureManager(BackpressureConfig{MaxSize: 1, Strategy: Block})

	ctx := context.Background()
	m.Push(ctx, 1)

	done := make(chan error, 1)
	go func() {
		_, err := m.Push(ctx, 2)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)

	m.Shutdown()

	select {
	case err := <-done:
		if !errors.Is(err, ErrManagerClosed) {
			t.Errorf("Push error after Shutdown = %v, want ErrManagerClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Shutdown never unblocked a waiting Push")
	}
}

func TestBackpressureManager_PushAfterShutdownFails(t *testing.T) {
	m := NewBackpressureManager(BackpressureConfig{MaxSize: 10})
	m.Shutdown()

	if _, err := m.Push(context.Background(), 1); !errors.Is(err, ErrManagerClosed) {
		t.Errorf("Push after Shutdown = %v, want ErrManagerClosed", err)
	}
}
