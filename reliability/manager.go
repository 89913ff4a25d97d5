package reliability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/relguard/health"
	"github.com/jonwraymond/relguard/observe"
	"github.com/jonwraymond/relguard/resilience"
)

// Config aggregates every sub-component's configuration for NewManager.
type Config struct {
	ErrorHandler        ErrorHandlerConfig
	Circuits            CircuitRegistryConfig
	RateLimiter         resilience.RateLimiterConfig
	Backpressure        map[string]BackpressureConfig
	Resource            ResourceMonitorConfig
	Alerting            AlertingServiceConfig
	HealthCheckInterval time.Duration // default: 60s, used by the background health loop

	// Observer, if set, wires tracing/metrics/logging into every Execute*
	// call via observe.MiddlewareFromObserver.
	Observer observe.Observer
}

// Manager is the reliability layer's façade: it wires ErrorHandler,
// per-key circuit breakers and rate limiters, named backpressure queues, a
// resource monitor, a health aggregator, and an alerting service behind a
// small set of operations.
type Manager struct {
	config Config

	errors       *ErrorHandler
	circuits     *CircuitRegistry
	rateLimiters *resilience.RateLimiterRegistry
	queues       map[string]*BackpressureManager
	resources    *ResourceMonitor
	health       *health.Aggregator
	alerts       *AlertingService
	middleware   *observe.Middleware
	events       *eventBuses

	healthGroup singleflight.Group

	mu       sync.RWMutex
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewManager wires every sub-component per config and starts the resource
// monitor and background health/alert loop. Call Shutdown to stop them.
func NewManager(config Config) (*Manager, error) {
	if config.HealthCheckInterval <= 0 {
		config.HealthCheckInterval = 60 * time.Second
	}

	m := &Manager{
		config: config,
		queues: make(map[string]*BackpressureManager),
		health: health.NewAggregator(),
		events: newEventBuses(),
		stopCh: make(chan struct{}),
	}

	m.errors = NewErrorHandler(config.ErrorHandler)

	circuitsConfig := config.Circuits
	circuitsConfig.OnStateChange = func(key string, from, to resilience.State) {
		m.events.circuitChange.publish(CircuitStateChangeEvent{Key: key, From: from, To: to, At: time.Now()})
		if config.Circuits.OnStateChange != nil {
			config.Circuits.OnStateChange(key, from, to)
		}
	}
	m.circuits = NewCircuitRegistry(circuitsConfig)

	m.rateLimiters = resilience.NewRateLimiterRegistry(config.RateLimiter)

	for name, qc := range config.Backpressure {
		m.queues[name] = NewBackpressureManager(m.wrapQueueConfig(name, qc))
	}

	resourceConfig := config.Resource
	originalResourceAlert := resourceConfig.OnAlert
	resourceConfig.OnAlert = func(alert ResourceAlert) {
		m.events.resourceAlert.publish(ResourceAlertEvent{Alert: alert, At: time.Now()})
		m.runAlertCheck(context.Background())
		if originalResourceAlert != nil {
			originalResourceAlert(alert)
		}
	}
	m.resources = NewResourceMonitor(resourceConfig)
	m.resources.Start()

	alertConfig := config.Alerting
	alertConfig.ErrorHandler = m.errors
	m.alerts = NewAlertingService(alertConfig)

	m.errors.config.OnCritical = func(err *TelemetryError) {
		m.runAlertCheck(context.Background())
		if config.ErrorHandler.OnCritical != nil {
			config.ErrorHandler.OnCritical(err)
		}
	}
	m.errors.config.OnThreshold = func(batch []*TelemetryError, severity Severity) {
		m.runAlertCheck(context.Background())
		if config.ErrorHandler.OnThreshold != nil {
			config.ErrorHandler.OnThreshold(batch, severity)
		}
	}

	m.registerBuiltinHealthProbes()

	if config.Observer != nil {
		mw, err := observe.MiddlewareFromObserver(config.Observer)
		if err != nil {
			return nil, fmt.Errorf("reliability: building observability middleware: %w", err)
		}
		m.middleware = mw
	}

	m.wg.Add(1)
	go m.backgroundLoop()

	return m, nil
}

// wrapQueueConfig closes over name so the manager-level pressure/relief
// event buses can tag events with which queue raised them, while still
// invoking any caller-supplied callback on qc.
func (m *Manager) wrapQueueConfig(name string, qc BackpressureConfig) BackpressureConfig {
	originalPressure := qc.OnPressure
	originalRelief := qc.OnRelief

	qc.OnPressure = func(level float64) {
		m.events.pressure.publish(PressureEvent{Queue: name, Level: level, At: time.Now()})
		if originalPressure != nil {
			originalPressure(level)
		}
	}
	qc.OnRelief = func() {
		m.events.relief.publish(ReliefEvent{Queue: name, At: time.Now()})
		if originalRelief != nil {
			originalRelief()
		}
	}
	return qc
}

// SubscribePressure returns a receive-only channel of pressure events
// across every named queue, plus an unsubscribe function. Slow subscribers
// miss events rather than stalling the queue that raised them.
func (m *Manager) SubscribePressure() (<-chan PressureEvent, func()) {
	return m.events.pressure.subscribe()
}

// SubscribeRelief returns a receive-only channel of relief events across
// every named queue.
func (m *Manager) SubscribeRelief() (<-chan ReliefEvent, func()) {
	return m.events.relief.subscribe()
}

// SubscribeResourceAlerts returns a receive-only channel of resource
// threshold crossings.
func (m *Manager) SubscribeResourceAlerts() (<-chan ResourceAlertEvent, func()) {
	return m.events.resourceAlert.subscribe()
}

// SubscribeCircuitStateChanges returns a receive-only channel of per-key
// circuit breaker transitions.
func (m *Manager) SubscribeCircuitStateChanges() (<-chan CircuitStateChangeEvent, func()) {
	return m.events.circuitChange.subscribe()
}

// SubscribeAlertsFired returns a receive-only channel of fired alerts, in
// addition to whatever AlertSinks were registered via AddAlertChannel.
func (m *Manager) SubscribeAlertsFired() (<-chan AlertFiredEvent, func()) {
	return m.events.alertFired.subscribe()
}

// registerBuiltinHealthProbes wires error-rate, open-circuit, and
// queue-pressure checks into the Aggregator as optional checkers, so they
// can only ever pull overall status down to degraded on their own.
func (m *Manager) registerBuiltinHealthProbes() {
	m.health.RegisterOptional("error_rate", health.NewCheckerFunc("error_rate", func(ctx context.Context) health.Result {
		stats := m.errors.Stats()
		since := time.Now().Add(-time.Minute)
		count := m.errors.CountSince(since, SeverityHigh, SeverityCritical)
		details := map[string]any{"total": stats.Total, "high_and_critical_last_minute": count}
		if count >= 10 {
			return health.Unhealthy("high/critical error rate elevated", ErrRateLimited).WithDetails(details)
		}
		if count > 0 {
			return health.Degraded("high/critical errors observed in the last minute").WithDetails(details)
		}
		return health.Healthy("error rate nominal").WithDetails(details)
	}))

	m.health.RegisterOptional("circuits", health.NewCheckerFunc("circuits", func(ctx context.Context) health.Result {
		open := m.circuits.OpenCount()
		details := map[string]any{"open": open}
		switch {
		case open > 5:
			return health.Unhealthy("many circuits open", fmt.Errorf("%d circuits open", open)).WithDetails(details)
		case open > 0:
			return health.Degraded("some circuits open").WithDetails(details)
		default:
			return health.Healthy("no open circuits").WithDetails(details)
		}
	}))

	m.health.RegisterOptional("resources", health.NewCheckerFunc("resources", func(ctx context.Context) health.Result {
		ok, message := m.resources.healthy(ctx)
		if !ok {
			return health.Degraded(message)
		}
		return health.Healthy(message)
	}))

	m.health.RegisterOptional("queues", health.NewCheckerFunc("queues", func(ctx context.Context) health.Result {
		m.mu.RLock()
		defer m.mu.RUnlock()

		details := make(map[string]any, len(m.queues))
		worst := health.StatusHealthy
		for name, q := range m.queues {
			stats := q.Stats()
			details[name] = map[string]any{"length": stats.Length, "max_size": stats.MaxSize, "under_pressure": stats.UnderPressure}
			if stats.UnderPressure && worst == health.StatusHealthy {
				worst = health.StatusDegraded
			}
		}

		switch worst {
		case health.StatusDegraded:
			return health.Degraded("one or more queues under pressure").WithDetails(details)
		default:
			return health.Healthy("queues nominal").WithDetails(details)
		}
	}))
}

// CheckRateLimit reports whether key is admitted under its rate limit,
// returning ErrRateLimited with a TelemetryError context if not.
func (m *Manager) CheckRateLimit(key string) error {
	if ok, retryAfter := m.rateLimiters.Check(key); !ok {
		te := m.errors.CreateError("rate limit exceeded", CategorySystem, SeverityLow, map[string]any{
			"key":         key,
			"retry_after": retryAfter.String(),
		}, "", false)
		m.errors.Handle(te)
		return ErrRateLimited
	}
	return nil
}

// categoryForKey infers a TelemetryError category from an operation key's
// prefix, per §4.9: "storage:" -> storage, "streaming:" -> streaming,
// anything else -> system.
func categoryForKey(key string) Category {
	switch {
	case strings.HasPrefix(key, "storage:"):
		return CategoryStorage
	case strings.HasPrefix(key, "streaming:"):
		return CategoryStreaming
	default:
		return CategorySystem
	}
}

// circuitOp runs op through key's circuit breaker. If op already returned a
// *TelemetryError, that classification is preserved as-is (op knew its own
// category better than the key prefix could). Otherwise a raw failure (or
// the circuit-open sentinel) is wrapped into a *TelemetryError with category
// inferred from the key prefix and severity high if the circuit is now
// open, medium otherwise. Neither path records the result — callers record
// it themselves so composed calls (graceful degradation) don't double-record
// the primary's failure.
func (m *Manager) circuitOp(ctx context.Context, key, correlationID string, op func(context.Context) error) error {
	err := m.circuits.Execute(ctx, key, op)
	if err == nil {
		return nil
	}
	if te, ok := err.(*TelemetryError); ok {
		if te.CorrelationID == "" {
			te.CorrelationID = correlationID
		}
		return te
	}

	circuitOpen := errors.Is(err, resilience.ErrCircuitOpen)
	severity := SeverityMedium
	if circuitOpen || m.circuits.State(key) == resilience.StateOpen {
		severity = SeverityHigh
	}

	te := m.errors.CreateError(err.Error(), categoryForKey(key), severity, map[string]any{
		"key":          key,
		"circuit_open": circuitOpen,
	}, "", !circuitOpen)
	te.Cause = err
	te.CorrelationID = correlationID
	return te
}

// ExecuteWithCircuitBreaker runs op through the named circuit, recording
// any failure via the ErrorHandler.
func (m *Manager) ExecuteWithCircuitBreaker(ctx context.Context, key string, op func(context.Context) error) error {
	correlationID := uuid.NewString()
	execute := func(ctx context.Context) error {
		return m.circuitOp(ctx, key, correlationID, op)
	}
	if m.middleware != nil {
		wrapped := m.middleware.Wrap(func(ctx context.Context, meta observe.OperationMeta) error {
			return execute(ctx)
		})
		err := wrapped(ctx, observe.OperationMeta{Key: key, Category: "circuit"})
		return m.recordIfErr(err)
	}
	return m.recordIfErr(execute(ctx))
}

// retryAttempt is one logged retry of a retryOp call.
type retryAttempt struct {
	Attempt int
	Err     string
	Delay   time.Duration
}

// prepareRetryConfig fills in retryConfig.RetryIf (defaulting to
// ErrorHandler.IsRetryable) and wraps retryConfig.OnRetry to additionally
// append to attempts, returning the retryIf predicate actually installed so
// callers can reuse it when classifying the final result.
func (m *Manager) prepareRetryConfig(retryConfig resilience.RetryConfig, attempts *[]retryAttempt) (resilience.RetryConfig, func(error) bool) {
	retryIf := retryConfig.RetryIf
	if retryIf == nil {
		retryIf = m.errors.IsRetryable
	}
	retryConfig.RetryIf = retryIf

	userOnRetry := retryConfig.OnRetry
	retryConfig.OnRetry = func(attempt int, err error, delay time.Duration) {
		*attempts = append(*attempts, retryAttempt{Attempt: attempt, Err: err.Error(), Delay: delay})
		if userOnRetry != nil {
			userOnRetry(attempt, err, delay)
		}
	}
	return retryConfig, retryIf
}

// wrapRetryResult classifies the result of a retry run: nil stays nil, a
// non-retryable error (per retryIf) is returned as-is since it short-
// circuited rather than exhausting attempts, and an exhausted run is
// wrapped into a system/high, retryable=false *TelemetryError carrying the
// full attempt log. Does not record the result — callers do that.
func wrapRetryResult(err error, key, correlationID string, maxAttempts int, retryIf func(error) bool, attempts []retryAttempt) error {
	if err == nil {
		return nil
	}
	if !retryIf(err) {
		return err
	}

	log := make([]map[string]any, 0, len(attempts))
	for _, a := range attempts {
		log = append(log, map[string]any{"attempt": a.Attempt, "error": a.Err, "delay": a.Delay.String()})
	}

	te := &TelemetryError{
		ID:            uuid.NewString(),
		Timestamp:     time.Now(),
		Message:       fmt.Sprintf("retries exhausted after %d attempts: %v", maxAttempts, err),
		Cause:         err,
		Category:      CategorySystem,
		Severity:      SeverityHigh,
		Retryable:     false,
		Context:       map[string]any{"key": key, "attempts": log},
		CorrelationID: correlationID,
		Count:         1,
	}
	return te
}

// recordingOp wraps op so every attempt's failure is recorded through
// ErrorHandler as it happens (tagged with correlationID), rather than only
// the final summary wrapRetryResult builds.
func (m *Manager) recordingOp(correlationID string, op func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		err := op(ctx)
		if err != nil {
			if te, ok := err.(*TelemetryError); ok && te.CorrelationID == "" {
				te.CorrelationID = correlationID
			}
			m.errors.Handle(err)
		}
		return err
	}
}

// retryOp runs op with retry/backoff per retryConfig, consulting
// ErrorHandler.IsRetryable when retryConfig.RetryIf is unset. A
// non-retryable error short-circuits and is returned as-is; exhausting
// every attempt wraps the final error into a system/high, retryable=false
// *TelemetryError carrying the full attempt log. Neither path records the
// result — callers do that themselves.
func (m *Manager) retryOp(ctx context.Context, key, correlationID string, retryConfig resilience.RetryConfig, op func(context.Context) error) error {
	var attempts []retryAttempt
	retryConfig, retryIf := m.prepareRetryConfig(retryConfig, &attempts)

	retrier := resilience.NewRetry(retryConfig)
	err := retrier.Execute(ctx, m.recordingOp(correlationID, op))
	return wrapRetryResult(err, key, correlationID, retrier.Config().MaxAttempts, retryIf, attempts)
}

// ExecuteWithRetry runs op with retry/backoff per retryConfig, consulting
// ErrorHandler.IsRetryable when retryConfig.RetryIf is unset.
func (m *Manager) ExecuteWithRetry(ctx context.Context, key string, retryConfig resilience.RetryConfig, op func(context.Context) error) error {
	correlationID := uuid.NewString()
	execute := func(ctx context.Context) error {
		return m.retryOp(ctx, key, correlationID, retryConfig, op)
	}
	if m.middleware != nil {
		wrapped := m.middleware.Wrap(func(ctx context.Context, meta observe.OperationMeta) error {
			return execute(ctx)
		})
		err := wrapped(ctx, observe.OperationMeta{Key: key, Category: "retry"})
		return m.recordIfErr(err)
	}
	return m.recordIfErr(execute(ctx))
}

// ExecuteWithGracefulDegradation runs primary, falling back to fallback if
// primary ultimately fails. Per §4.9's state machine (rateLimitCheck →
// circuitAllowed? → retryLoop(primary)), primary is composed through a
// resilience.Executor built from key's circuit breaker and a default retry
// policy: the circuit is consulted once per call, and only if it admits the
// call does the retry loop run primary repeatedly. The primary's failure is
// always recorded even though it's swallowed; if fallback also fails the
// combined failure is elevated to a system/critical, retryable=false error
// carrying both messages.
func (m *Manager) ExecuteWithGracefulDegradation(ctx context.Context, key string, primary, fallback func(context.Context) error) error {
	correlationID := uuid.NewString()

	guardedPrimary := func(ctx context.Context) error {
		var attempts []retryAttempt
		retryConfig, retryIf := m.prepareRetryConfig(resilience.RetryConfig{
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
		}, &attempts)
		retrier := resilience.NewRetry(retryConfig)

		executor := resilience.NewExecutor(
			resilience.WithCircuitBreaker(m.circuits.Breaker(key)),
			resilience.WithRetry(retrier),
		)

		err := executor.Execute(ctx, m.recordingOp(correlationID, primary))
		if err == nil {
			return nil
		}
		if errors.Is(err, resilience.ErrCircuitOpen) {
			te := m.errors.CreateError(err.Error(), categoryForKey(key), SeverityHigh, map[string]any{
				"key":          key,
				"circuit_open": true,
			}, "", false)
			te.Cause = err
			te.CorrelationID = correlationID
			return te
		}
		return wrapRetryResult(err, key, correlationID, retrier.Config().MaxAttempts, retryIf, attempts)
	}

	execute := func(ctx context.Context) error {
		primaryErr := guardedPrimary(ctx)
		if primaryErr == nil {
			return nil
		}
		m.errors.Handle(primaryErr)

		fallbackErr := fallback(ctx)
		if fallbackErr == nil {
			return nil
		}

		te := m.errors.CreateError(
			fmt.Sprintf("graceful degradation exhausted: primary=%v fallback=%v", primaryErr, fallbackErr),
			CategorySystem, SeverityCritical,
			map[string]any{
				"key":            key,
				"primary_error":  primaryErr.Error(),
				"fallback_error": fallbackErr.Error(),
				"correlation_id": correlationID,
			}, "", false,
		)
		te.CorrelationID = correlationID
		return te
	}

	if m.middleware != nil {
		wrapped := m.middleware.Wrap(func(ctx context.Context, meta observe.OperationMeta) error {
			return execute(ctx)
		})
		err := wrapped(ctx, observe.OperationMeta{Key: key, Category: "fallback"})
		return m.recordIfErr(err)
	}
	return m.recordIfErr(execute(ctx))
}

func (m *Manager) recordIfErr(err error) error {
	if err == nil {
		return nil
	}
	m.errors.Handle(err)
	return err
}

// Queue returns the named backpressure queue, creating one with
// BackpressureConfig defaults if it was not configured up front.
func (m *Manager) Queue(name string) *BackpressureManager {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.queues[name]
	if !ok {
		q = NewBackpressureManager(m.wrapQueueConfig(name, BackpressureConfig{}))
		m.queues[name] = q
	}
	return q
}

// Push enqueues item onto the named queue.
func (m *Manager) Push(ctx context.Context, queue string, item any) (droppedExisting bool, err error) {
	return m.Queue(queue).Push(ctx, item)
}

// Consume dequeues the oldest item from the named queue.
func (m *Manager) Consume(ctx context.Context, queue string) (item any, ok bool, err error) {
	return m.Queue(queue).Pop(ctx)
}

// GetBackpressureStats returns a snapshot of every named queue.
func (m *Manager) GetBackpressureStats() map[string]BackpressureStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]BackpressureStats, len(m.queues))
	for name, q := range m.queues {
		out[name] = q.Stats()
	}
	return out
}

// SystemHealth is the composite result of GetSystemHealth.
type SystemHealth struct {
	Status  health.Status
	Results map[string]health.Result
}

// GetSystemHealth runs every registered health check, collapsing concurrent
// callers into a single in-flight evaluation via singleflight.
func (m *Manager) GetSystemHealth(ctx context.Context) (SystemHealth, error) {
	v, err, _ := m.healthGroup.Do("check", func() (any, error) {
		results := m.health.CheckAll(ctx)
		return SystemHealth{
			Status:  m.health.OverallStatus(results),
			Results: results,
		}, nil
	})
	if err != nil {
		return SystemHealth{}, err
	}
	return v.(SystemHealth), nil
}

// RunHealthCheck runs a single named health check.
func (m *Manager) RunHealthCheck(ctx context.Context, name string) (health.Result, error) {
	return m.health.Check(ctx, name)
}

// RegisterHealthCheck adds a caller-supplied checker alongside the built-in
// probes. Use required=true if a failure should be able to drive overall
// status to unhealthy.
func (m *Manager) RegisterHealthCheck(name string, checker health.Checker, required bool) {
	if required {
		m.health.Register(name, checker)
	} else {
		m.health.RegisterOptional(name, checker)
	}
}

// AddAlertChannel registers a delivery channel for fired alerts.
func (m *Manager) AddAlertChannel(channel AlertChannel) {
	m.alerts.AddChannel(channel)
}

// AddAlertRule registers an alert rule.
func (m *Manager) AddAlertRule(rule AlertRule) {
	m.alerts.AddRule(rule)
}

// GetAlertHistory returns alerts fired at or after since.
func (m *Manager) GetAlertHistory(since time.Time) []Alert {
	return m.alerts.History(since)
}

// runAlertCheck builds a fresh AlertContext snapshot and evaluates alert
// rules against it. Called both from the periodic background loop and
// immediately on critical errors / threshold crossings / resource alerts,
// so rule cooldowns (not this call site) are what prevent duplicate
// notifications.
func (m *Manager) runAlertCheck(ctx context.Context) {
	sample, _ := m.resources.Latest()

	m.mu.RLock()
	queueDepths := make(map[string]int, len(m.queues))
	for name, q := range m.queues {
		queueDepths[name] = q.Stats().Length
	}
	m.mu.RUnlock()

	circuitStates := make(map[string]string)
	for key, state := range m.circuits.Snapshot() {
		circuitStates[key] = state.String()
	}

	snapshot := AlertContext{
		Now:            time.Now(),
		ErrorStats:     m.errors.Stats(),
		OpenCircuits:   m.circuits.OpenCount(),
		CircuitStates:  circuitStates,
		ResourceSample: sample,
		QueueDepths:    queueDepths,
	}

	fired := m.alerts.Check(ctx, snapshot)
	for _, alert := range fired {
		m.events.alertFired.publish(AlertFiredEvent{Alert: alert, At: time.Now()})
	}
}

// ReliabilityReport is a point-in-time snapshot of the whole layer, handy
// for dashboards or a single diagnostic endpoint.
type ReliabilityReport struct {
	Errors       ErrorStats
	Circuits     map[string]string
	Queues       map[string]BackpressureStats
	Resource     Sample
	Alerts       []Alert
	SystemHealth SystemHealth
}

// GetReliabilityReport assembles a ReliabilityReport from the current state
// of every sub-component.
func (m *Manager) GetReliabilityReport(ctx context.Context) (ReliabilityReport, error) {
	sample, _ := m.resources.Latest()

	circuits := make(map[string]string)
	for key, state := range m.circuits.Snapshot() {
		circuits[key] = state.String()
	}

	sysHealth, err := m.GetSystemHealth(ctx)
	if err != nil {
		return ReliabilityReport{}, err
	}

	return ReliabilityReport{
		Errors:       m.errors.Stats(),
		Circuits:     circuits,
		Queues:       m.GetBackpressureStats(),
		Resource:     sample,
		Alerts:       m.alerts.History(time.Now().Add(-24 * time.Hour)),
		SystemHealth: sysHealth,
	}, nil
}

func (m *Manager) backgroundLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.runAlertCheck(context.Background())
		}
	}
}

// Shutdown stops every background goroutine owned by the manager: the
// resource monitor, the circuit registry's idle sweeper, the rate limiter
// registry's idle sweeper, every backpressure queue, and this manager's own
// health/alert loop. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()

	m.resources.Stop()
	m.circuits.Shutdown()
	m.rateLimiters.Shutdown()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, q := range m.queues {
		q.Shutdown()
	}
}
