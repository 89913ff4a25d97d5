package reliability

import (
	"container/list"
	"context"
	"sync"
)

// OverflowStrategy selects what happens to Push calls once the queue is at
// MaxSize.
type OverflowStrategy int

const (
	// DropNewest rejects the incoming item, returning ErrQueueFull.
	DropNewest OverflowStrategy = iota
	// DropOldest evicts the item at the head of the queue to make room.
	DropOldest
	// Block waits until a slot frees up or ctx is cancelled.
	Block
)

// BackpressureConfig configures a BackpressureManager.
type BackpressureConfig struct {
	// HighWater is the queue length at which the manager is considered
	// under pressure and OnPressure fires.
	HighWater int

	// LowWater is the queue length, once pressure has been entered, at or
	// below which the manager is considered relieved and OnRelief fires. Must be
	// <= HighWater; creates hysteresis so relief doesn't flap at the
	// boundary.
	LowWater int

	// MaxSize is the hard cap on queue length. Default: 2x HighWater.
	MaxSize int

	// Strategy controls Push behavior once the queue reaches MaxSize.
	// Default: DropNewest.
	Strategy OverflowStrategy

	// OnPressure fires once per crossing into the high-water condition,
	// with the current queue length as a fraction of MaxSize.
	OnPressure func(level float64)

	// OnRelief fires once per crossing back down to LowWater or below.
	OnRelief func()
}

func (c *BackpressureConfig) applyDefaults() {
	if c.HighWater <= 0 {
		c.HighWater = 100
	}
	if c.LowWater <= 0 || c.LowWater > c.HighWater {
		c.LowWater = c.HighWater / 2
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 2 * c.HighWater
	}
}

// BackpressureStats is a point-in-time snapshot of a BackpressureManager.
type BackpressureStats struct {
	Length        int
	MaxSize       int
	UnderPressure bool
	Dropped       int64
	Blocked       int64
}

// BackpressureManager is a bounded FIFO queue with hysteretic pressure
// signaling and a configurable overflow strategy for producers that outrun
// consumers.
type BackpressureManager struct {
	config BackpressureConfig

	mu            sync.Mutex
	notFull       *sync.Cond
	notEmpty      *sync.Cond
	items         *list.List
	underPressure bool
	dropped       int64
	blocked       int64
	closed        bool
}

// NewBackpressureManager creates a new BackpressureManager.
func NewBackpressureManager(config BackpressureConfig) *BackpressureManager {
	config.applyDefaults()

	m := &BackpressureManager{
		config: config,
		items:  list.New(),
	}
	m.notFull = sync.NewCond(&m.mu)
	m.notEmpty = sync.NewCond(&m.mu)
	return m
}

// Push enqueues item. Depending on Strategy, once the queue is at MaxSize it
// either rejects the newest item (DropNewest), evicts the oldest to make
// room (DropOldest), or blocks until a slot frees up or ctx is cancelled
// (Block). The returned bool reports whether an existing item was dropped to
// make room for this one.
func (m *BackpressureManager) Push(ctx context.Context, item any) (droppedExisting bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrManagerClosed
	}

	if m.items.Len() >= m.config.MaxSize {
		switch m.config.Strategy {
		case DropOldest:
			m.items.Remove(m.items.Front())
			m.dropped++
			droppedExisting = true
		case Block:
			if blockErr := m.waitForSlotLocked(ctx); blockErr != nil {
				return false, blockErr
			}
		default: // DropNewest
			m.dropped++
			return false, ErrQueueFull
		}
	}

	m.items.PushBack(item)
	m.notEmpty.Signal()
	m.checkPressureLocked()
	return droppedExisting, nil
}

// waitForSlotLocked blocks until the queue has room, ctx is cancelled, or
// the manager is shut down. m.mu must be held on entry and is held on
// return. sync.Cond.Wait is not context-aware, so a goroutine registered via
// context.AfterFunc wakes the waiter on cancellation.
func (m *BackpressureManager) waitForSlotLocked(ctx context.Context) error {
	m.blocked++

	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.notFull.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	for m.items.Len() >= m.config.MaxSize && !m.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.notFull.Wait()
	}
	if m.closed {
		return ErrManagerClosed
	}
	return ctx.Err()
}

// Pop dequeues the oldest item. If the queue is empty it blocks until an
// item is pushed, ctx is cancelled, or the manager is shut down.
func (m *BackpressureManager) Pop(ctx context.Context) (item any, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.items.Len() == 0 {
		if m.closed {
			return nil, false, nil
		}

		stop := context.AfterFunc(ctx, func() {
			m.mu.Lock()
			m.notEmpty.Broadcast()
			m.mu.Unlock()
		})
		defer stop()

		for m.items.Len() == 0 && !m.closed {
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
			m.notEmpty.Wait()
		}
		if m.items.Len() == 0 {
			return nil, false, ctx.Err()
		}
	}

	front := m.items.Remove(m.items.Front())
	m.notFull.Signal()
	m.checkPressureLocked()
	return front, true, nil
}

// checkPressureLocked fires OnPressure/OnRelief on hysteresis crossings.
// m.mu must be held.
func (m *BackpressureManager) checkPressureLocked() {
	length := m.items.Len()

	if !m.underPressure && length >= m.config.HighWater {
		m.underPressure = true
		if m.config.OnPressure != nil {
			level := float64(length) / float64(m.config.MaxSize)
			go m.config.OnPressure(level)
		}
	} else if m.underPressure && length <= m.config.LowWater {
		m.underPressure = false
		if m.config.OnRelief != nil {
			go m.config.OnRelief()
		}
	}
}

// Drain atomically empties the queue and clears the dropped-item counter,
// returning whatever was queued, oldest first.
func (m *BackpressureManager) Drain() []any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]any, 0, m.items.Len())
	for e := m.items.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value)
	}
	m.items.Init()
	m.dropped = 0
	m.notFull.Broadcast()
	m.checkPressureLocked()
	return out
}

// Stats returns a snapshot of the queue's current state and counters.
func (m *BackpressureManager) Stats() BackpressureStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return BackpressureStats{
		Length:        m.items.Len(),
		MaxSize:       m.config.MaxSize,
		UnderPressure: m.underPressure,
		Dropped:       m.dropped,
		Blocked:       m.blocked,
	}
}

// Shutdown marks the manager closed, waking any blocked Push/Pop callers.
func (m *BackpressureManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.notFull.Broadcast()
	m.notEmpty.Broadcast()
}
