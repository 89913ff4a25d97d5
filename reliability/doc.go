// Package reliability is the telemetry reliability layer's façade: a
// single Manager that wires error handling, per-key circuit breakers and
// rate limiters, bounded backpressure queues, resource monitoring, health
// aggregation, and alerting behind a small set of operations.
//
// It builds directly on the lower-level combinators in resilience and the
// checker framework in health, generalizing them from single protected
// calls into a layer that can be asked, at any point, "is the system
// healthy, and if not, why."
//
// # Ecosystem Position
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│                      Reliability Layer                          │
//	├─────────────────────────────────────────────────────────────────┤
//	│                                                                 │
//	│   Caller                  Manager                                │
//	│   ┌──────┐         ┌─────────────────────┐                      │
//	│   │ Call │────────▶│  ErrorHandler        │──▶ AlertingService   │
//	│   │      │         │  CircuitRegistry     │       │              │
//	│   └──────┘         │  RateLimiterRegistry │       ▼              │
//	│                    │  BackpressureManager │   AlertChannel(s)   │
//	│                    │  ResourceMonitor      │                     │
//	│                    │  health.Aggregator    │──▶ GetSystemHealth  │
//	│                    └─────────────────────┘                      │
//	│                                                                 │
//	└─────────────────────────────────────────────────────────────────┘
//
// # Core Components
//
//   - [ErrorHandler]: Classifies, deduplicates, and buffers errors flowing
//     through the layer, firing threshold and critical callbacks.
//   - [CircuitRegistry]: One [resilience.CircuitBreaker] per protected key,
//     created lazily and evicted once idle.
//   - [BackpressureManager]: A bounded FIFO queue with hysteretic pressure
//     signaling and a configurable drop/block overflow strategy.
//   - [ResourceMonitor]: Periodic CPU/memory/goroutine/event-loop-latency
//     sampling with edge-triggered alerts.
//   - [AlertingService]: Rule-based alert evaluation against a read-only
//     [AlertContext] snapshot, dispatched to channels through a bounded
//     worker pool.
//   - [Manager]: Composes all of the above and exposes GetSystemHealth,
//     GetReliabilityReport, and the Execute* façade methods.
//
// # Quick Start
//
//	mgr, err := reliability.NewManager(reliability.Config{
//	    Circuits: reliability.CircuitRegistryConfig{Threshold: 5, Timeout: 30 * time.Second},
//	    Resource: reliability.ResourceMonitorConfig{Interval: 5 * time.Second},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Shutdown()
//
//	mgr.AddAlertRule(reliability.AlertRule{
//	    Name:      "circuits-open",
//	    Condition: reliability.AlertCondition{Kind: reliability.ConditionCircuitBroken, Threshold: 1},
//	    Cooldown:  5 * time.Minute,
//	})
//
//	err = mgr.ExecuteWithCircuitBreaker(ctx, "payments-api", func(ctx context.Context) error {
//	    return callPaymentsAPI(ctx)
//	})
//
// # Execution Order
//
// CheckRateLimit, ExecuteWithCircuitBreaker, and ExecuteWithRetry each wrap
// a single resilience.* combinator rather than a fixed pipeline — callers
// compose them explicitly in whatever order the call site needs.
// ExecuteWithGracefulDegradation is the one composed path: it runs primary
// through a resilience.Executor built from the key's circuit breaker
// (outside) and a retry policy (inside), then falls back.
//
// # Thread Safety
//
// Every exported type is safe for concurrent use after construction. Manager
// collapses concurrent GetSystemHealth callers onto a single in-flight
// check via singleflight, guarding against thundering-herd re-checks.
//
// # Error Handling
//
// Sentinel errors (use errors.Is for checking):
//
//   - [ErrRateLimited]: CheckRateLimit rejected the call for this window.
//   - [ErrManagerClosed]: A BackpressureManager.Push ran, or was blocked,
//     when Shutdown was called.
//   - [ErrQueueFull]: BackpressureManager.Push rejected under DropNewest.
//   - [resilience.ErrCapacityExceeded]: A bulkhead-backed operation's
//     waiter queue (MaxQueued) was already full.
//
// Every error that flows through Manager's Execute* methods is recorded via
// ErrorHandler.Handle, which classifies raw errors into a [TelemetryError]
// when they aren't one already.
//
// # Events
//
// Alongside the synchronous On* callbacks in each sub-component's config,
// Manager fans pressure, relief, resource-alert, circuit-state-change, and
// alert-fired events out on per-type subscription channels
// (SubscribePressure, SubscribeRelief, SubscribeResourceAlerts,
// SubscribeCircuitStateChanges, SubscribeAlertsFired). Each subscriber gets
// its own bounded buffer; a subscriber that falls behind misses events
// rather than stalling the producer goroutine. Call the returned
// unsubscribe function to stop receiving and release the channel.
package reliability
