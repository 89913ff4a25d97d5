package reliability

import (
	"context"
	"sync"
	"time"

	"github.com/jonwraymond/relguard/resilience"
)

// CircuitRegistryConfig configures a CircuitRegistry.
type CircuitRegistryConfig struct {
	// Threshold is the failure count before a key's circuit opens.
	// Default: 5
	Threshold int

	// Timeout is how long an open circuit waits before probing again.
	// Default: 60 seconds
	Timeout time.Duration

	// HalfOpenRequests is the number of consecutive successful probes
	// required to close a half-open circuit. Default: 3
	HalfOpenRequests int

	// SweepInterval controls how often idle per-key circuits are evicted.
	// Default: 60 seconds
	SweepInterval time.Duration

	// OnStateChange is called whenever any key's circuit changes state.
	OnStateChange func(key string, from, to resilience.State)
}

func (c *CircuitRegistryConfig) applyDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = 5
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.HalfOpenRequests <= 0 {
		c.HalfOpenRequests = 3
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 60 * time.Second
	}
}

type circuitEntry struct {
	breaker    *resilience.CircuitBreaker
	lastActive time.Time
}

// CircuitRegistry tracks one resilience.CircuitBreaker per key, creating
// them lazily and evicting closed ones idle longer than 2x Timeout. This mirrors
// resilience.RateLimiterRegistry's per-key lifecycle.
type CircuitRegistry struct {
	config CircuitRegistryConfig

	mu       sync.Mutex
	breakers map[string]*circuitEntry

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewCircuitRegistry creates a registry and starts its idle sweeper.
func NewCircuitRegistry(config CircuitRegistryConfig) *CircuitRegistry {
	config.applyDefaults()

	r := &CircuitRegistry{
		config:   config,
		breakers: make(map[string]*circuitEntry),
		stopCh:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.sweepLoop()

	return r
}

func (r *CircuitRegistry) get(key string) *circuitEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.breakers[key]
	if ok {
		entry.lastActive = time.Now()
		return entry
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:         r.config.Threshold,
		ResetTimeout:        r.config.Timeout,
		HalfOpenMaxRequests: r.config.HalfOpenRequests,
		OnStateChange: func(from, to resilience.State) {
			if r.config.OnStateChange != nil {
				r.config.OnStateChange(key, from, to)
			}
		},
	})
	entry = &circuitEntry{breaker: breaker, lastActive: time.Now()}
	r.breakers[key] = entry
	return entry
}

// Execute runs op through the circuit breaker associated with key.
func (r *CircuitRegistry) Execute(ctx context.Context, key string, op func(context.Context) error) error {
	return r.get(key).breaker.Execute(ctx, op)
}

// Breaker returns the lazily-created *resilience.CircuitBreaker backing
// key, for callers (such as Manager's graceful-degradation path) that need
// to hand the breaker itself to a resilience.Executor rather than go
// through Execute.
func (r *CircuitRegistry) Breaker(key string) *resilience.CircuitBreaker {
	return r.get(key).breaker
}

// State returns the current state of key's circuit, or resilience.StateClosed
// if the key has never been used.
func (r *CircuitRegistry) State(key string) resilience.State {
	r.mu.Lock()
	entry, ok := r.breakers[key]
	r.mu.Unlock()
	if !ok {
		return resilience.StateClosed
	}
	return entry.breaker.State()
}

// Reset resets key's circuit to closed, if it exists.
func (r *CircuitRegistry) Reset(key string) {
	r.mu.Lock()
	entry, ok := r.breakers[key]
	r.mu.Unlock()
	if ok {
		entry.breaker.Reset()
	}
}

// Snapshot returns the current state of every tracked key.
func (r *CircuitRegistry) Snapshot() map[string]resilience.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]resilience.State, len(r.breakers))
	for key, entry := range r.breakers {
		out[key] = entry.breaker.State()
	}
	return out
}

// OpenCount returns the number of keys whose circuit is currently open.
func (r *CircuitRegistry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, entry := range r.breakers {
		if entry.breaker.State() == resilience.StateOpen {
			count++
		}
	}
	return count
}

// Shutdown stops the background sweeper. Safe to call more than once.
func (r *CircuitRegistry) Shutdown() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}

func (r *CircuitRegistry) sweepLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *CircuitRegistry) sweep() {
	cutoff := time.Now().Add(-2 * r.config.Timeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.breakers {
		if entry.breaker.State() == resilience.StateClosed && entry.lastActive.Before(cutoff) {
			delete(r.breakers, key)
		}
	}
}
