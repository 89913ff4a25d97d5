package reliability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConditionKind discriminates which field of an AlertCondition is active.
// Go has no tagged unions, so this plays that role explicitly.
type ConditionKind string

// Recognized condition kinds.
const (
	ConditionErrorCount    ConditionKind = "error_count"
	ConditionErrorRate     ConditionKind = "error_rate"
	ConditionCircuitBroken ConditionKind = "circuit_breaker"
	ConditionResource      ConditionKind = "resource"
	ConditionCustom        ConditionKind = "custom"
)

// AlertCondition describes when an AlertRule should fire. Exactly the
// fields relevant to Kind are consulted.
type AlertCondition struct {
	Kind ConditionKind

	// ErrorCount / ErrorRate
	Severities []Severity
	Window     time.Duration // ErrorRate: errors-per-second over this window

	// Resource
	Signal string // matches the signal name reported by ResourceMonitor.OnAlert

	// Comparator applies to ErrorCount, ErrorRate, CircuitBroken, and
	// Resource kinds.
	Threshold  float64
	Comparator string // "gt", "gte", "lt", "lte", "eq"; default "gte"

	// Custom lets a caller supply arbitrary evaluation logic against the
	// snapshot, which is passed to it directly as an AlertContext.
	Custom func(ctx AlertContext) (value float64, fire bool)
}

// AlertContext is a read-only snapshot of reliability-layer state passed
// into AlertingService.Check. Using a snapshot rather than a back-reference
// to Manager avoids a Manager<->AlertingService import cycle.
type AlertContext struct {
	Now            time.Time
	ErrorStats     ErrorStats
	OpenCircuits   int
	CircuitStates  map[string]string
	ResourceSample Sample
	QueueDepths    map[string]int
}

// ChannelType names the transport an AlertChannel dispatches through.
type ChannelType string

// Recognized channel types. Callers register their own AlertSink
// implementations against whichever type fits their transport.
const (
	ChannelWebhook ChannelType = "webhook"
	ChannelLog     ChannelType = "log"
	ChannelEmail   ChannelType = "email"
	ChannelCustom  ChannelType = "custom"
)

// AlertSink delivers a fired Alert to a destination. Implementations must
// honor ctx cancellation.
type AlertSink interface {
	Send(ctx context.Context, alert Alert) error
}

// AlertSinkFunc adapts a function to AlertSink.
type AlertSinkFunc func(ctx context.Context, alert Alert) error

// Send implements AlertSink.
func (f AlertSinkFunc) Send(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

// AlertChannel pairs a sink with the channel type it implements.
type AlertChannel struct {
	Name string
	Type ChannelType
	Sink AlertSink

	// SeverityFilter restricts delivery to alerts whose computed severity
	// is in this set. A nil/empty filter receives every severity.
	SeverityFilter []Severity

	// Enabled gates delivery independent of severity. Defaults to true
	// when added via AddChannel.
	Enabled bool
}

func (c *AlertChannel) accepts(severity Severity) bool {
	if !c.Enabled {
		return false
	}
	if len(c.SeverityFilter) == 0 {
		return true
	}
	return containsSeverity(c.SeverityFilter, severity)
}

// AlertRule binds a name and severity to a condition, with cooldown gating
// to prevent re-firing on every evaluation tick.
type AlertRule struct {
	Name        string
	Description string
	Condition   AlertCondition
	Severity    Severity // zero value means derive severity from the condition
	Cooldown    time.Duration
	Enabled     bool

	lastFiredAt time.Time
}

// Alert is a single rule firing.
type Alert struct {
	ID        string
	RuleName  string
	Timestamp time.Time
	Value     float64
	Message   string
	Severity  Severity

	// ChannelsDispatched is filled in after dispatch with the name of
	// every channel the alert was actually sent to (those whose
	// SeverityFilter accepted this alert's Severity).
	ChannelsDispatched []string
}

// AlertingServiceConfig configures an AlertingService.
type AlertingServiceConfig struct {
	// SinkTimeout bounds each channel dispatch. Default: 5 seconds.
	SinkTimeout time.Duration

	// MaxConcurrentSinks caps how many channels dispatch at once per
	// Check call. Default: 8.
	MaxConcurrentSinks int

	// HistorySize caps the in-memory alert history ring. Default: 1000.
	HistorySize int

	// OnSinkError fires when a channel's Send fails; it never blocks
	// sibling sinks.
	OnSinkError func(channel string, alert Alert, err error)

	// ErrorHandler, if set, records sink failures as system/low
	// TelemetryErrors in addition to invoking OnSinkError.
	ErrorHandler *ErrorHandler
}

func (c *AlertingServiceConfig) applyDefaults() {
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = 5 * time.Second
	}
	if c.MaxConcurrentSinks <= 0 {
		c.MaxConcurrentSinks = 8
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 1000
	}
}

// AlertingService evaluates rules against a caller-supplied AlertContext
// snapshot and dispatches fired alerts to registered channels.
type AlertingService struct {
	config AlertingServiceConfig

	mu       sync.RWMutex
	rules    []*AlertRule
	channels []AlertChannel

	history *ring[Alert]
}

// NewAlertingService creates a new AlertingService.
func NewAlertingService(config AlertingServiceConfig) *AlertingService {
	config.applyDefaults()
	return &AlertingService{
		config:  config,
		history: newRing[Alert](config.HistorySize),
	}
}

// AddChannel registers a delivery channel, enabled by default. Use
// SetChannelEnabled to disable one later without removing it.
func (s *AlertingService) AddChannel(channel AlertChannel) {
	channel.Enabled = true
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, channel)
}

// SetChannelEnabled toggles a channel by name.
func (s *AlertingService) SetChannelEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.channels {
		if s.channels[i].Name == name {
			s.channels[i].Enabled = enabled
			return
		}
	}
}

// AddRule registers an alert rule, defaulting Cooldown to 5 minutes. Rules
// are enabled by default; pass an already-added rule's name to SetEnabled
// to disable one.
func (s *AlertingService) AddRule(rule AlertRule) {
	if rule.Cooldown <= 0 {
		rule.Cooldown = 5 * time.Minute
	}
	rule.Enabled = true

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &rule)
}

// SetEnabled toggles a rule by name.
func (s *AlertingService) SetEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rules {
		if r.Name == name {
			r.Enabled = enabled
			return
		}
	}
}

// Check evaluates every enabled rule against snapshot, builds an Alert for
// each newly-triggered (post-cooldown) rule, dispatches it to every enabled
// channel whose SeverityFilter accepts its severity through a bounded worker
// pool, and returns the fired alerts.
func (s *AlertingService) Check(ctx context.Context, snapshot AlertContext) []Alert {
	s.mu.Lock()
	var fired []Alert
	for _, rule := range s.rules {
		if !rule.Enabled {
			continue
		}
		if !rule.lastFiredAt.IsZero() && time.Since(rule.lastFiredAt) < rule.Cooldown {
			continue
		}

		value, shouldFire := evaluateCondition(rule.Condition, snapshot)
		if !shouldFire {
			continue
		}

		rule.lastFiredAt = snapshot.Now
		severity := rule.Severity
		if severity == "" {
			severity = deriveSeverity(rule.Condition, snapshot, value)
		}

		channelNames := make([]string, 0, len(s.channels))
		for _, ch := range s.channels {
			if ch.accepts(severity) {
				channelNames = append(channelNames, ch.Name)
			}
		}

		alert := Alert{
			ID:                 uuid.NewString(),
			RuleName:           rule.Name,
			Timestamp:          snapshot.Now,
			Value:              value,
			Severity:           severity,
			Message:            formatAlertMessage(rule, value),
			ChannelsDispatched: channelNames,
		}
		s.history.push(alert)
		fired = append(fired, alert)
	}
	channels := append([]AlertChannel(nil), s.channels...)
	s.mu.Unlock()

	if len(fired) > 0 && len(channels) > 0 {
		s.dispatch(ctx, fired, channels)
	}

	return fired
}

// channelsFor returns the subset of channels whose SeverityFilter accepts
// severity, preserving registration order.
func channelsFor(channels []AlertChannel, severity Severity) []AlertChannel {
	out := make([]AlertChannel, 0, len(channels))
	for _, ch := range channels {
		if ch.accepts(severity) {
			out = append(out, ch)
		}
	}
	return out
}

func evaluateCondition(c AlertCondition, snap AlertContext) (value float64, fire bool) {
	switch c.Kind {
	case ConditionErrorCount:
		since := snap.Now.Add(-c.Window)
		count := 0
		for _, e := range snap.ErrorStats.Recent {
			if e.Timestamp.Before(since) {
				continue
			}
			if len(c.Severities) > 0 && !containsSeverity(c.Severities, e.Severity) {
				continue
			}
			count += e.Count
		}
		value = float64(count)
		return value, compare(value, c.Threshold, c.Comparator)

	case ConditionErrorRate:
		since := snap.Now.Add(-c.Window)
		count := 0
		for _, e := range snap.ErrorStats.Recent {
			if e.Timestamp.Before(since) {
				continue
			}
			if len(c.Severities) > 0 && !containsSeverity(c.Severities, e.Severity) {
				continue
			}
			count += e.Count
		}
		seconds := c.Window.Seconds()
		if seconds <= 0 {
			seconds = 1
		}
		value = float64(count) / seconds
		return value, compare(value, c.Threshold, c.Comparator)

	case ConditionCircuitBroken:
		value = float64(snap.OpenCircuits)
		return value, compare(value, c.Threshold, c.Comparator)

	case ConditionResource:
		value = resourceSignalValue(c.Signal, snap.ResourceSample)
		return value, compare(value, c.Threshold, c.Comparator)

	case ConditionCustom:
		if c.Custom == nil {
			return 0, false
		}
		return c.Custom(snap)

	default:
		return 0, false
	}
}

func containsSeverity(list []Severity, s Severity) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func compare(value, threshold float64, comparator string) bool {
	switch comparator {
	case "gt":
		return value > threshold
	case "lt":
		return value < threshold
	case "lte":
		return value <= threshold
	case "eq":
		return value == threshold
	case "gte", "":
		return value >= threshold
	default:
		return false
	}
}

func resourceSignalValue(signal string, s Sample) float64 {
	switch signal {
	case "goroutines":
		return float64(s.Goroutines)
	case "heap_alloc_bytes":
		return float64(s.HeapAllocBytes)
	case "event_loop_latency_ms":
		return s.EventLoopLatencyMs
	case "cpu_percent":
		if s.CPUUserPercent != nil && s.CPUSystemPercent != nil {
			return *s.CPUUserPercent + *s.CPUSystemPercent
		}
		return 0
	case "memory_percent":
		if s.FreeMemBytes != nil && s.TotalMemBytes != nil && *s.TotalMemBytes > 0 {
			return float64(*s.TotalMemBytes-*s.FreeMemBytes) / float64(*s.TotalMemBytes) * 100
		}
		return 0
	default:
		return 0
	}
}

// deriveSeverity computes a severity when a rule doesn't pin one
// explicitly: a critical error in the evaluated window always yields
// critical; more than 5 high-severity errors yields high; more than 5 open
// circuits is critical, more than 2 is high; otherwise medium.
func deriveSeverity(c AlertCondition, snap AlertContext, value float64) Severity {
	switch c.Kind {
	case ConditionErrorCount, ConditionErrorRate:
		highCount := 0
		for _, e := range snap.ErrorStats.Recent {
			if e.Severity == SeverityCritical {
				return SeverityCritical
			}
			if e.Severity == SeverityHigh {
				highCount += e.Count
			}
		}
		if highCount > 5 {
			return SeverityHigh
		}
		return SeverityMedium
	case ConditionCircuitBroken:
		switch {
		case value > 5:
			return SeverityCritical
		case value > 2:
			return SeverityHigh
		default:
			return SeverityMedium
		}
	default:
		return SeverityMedium
	}
}

func formatAlertMessage(rule *AlertRule, value float64) string {
	desc := rule.Description
	if desc == "" {
		desc = rule.Name
	}
	return fmt.Sprintf("%s: observed %.2f (%s %.2f)", desc, value, rule.Condition.Comparator, rule.Condition.Threshold)
}

// dispatch fans alerts out to every channel whose SeverityFilter accepts
// that alert's severity, through a bounded worker pool with each send
// bounded by SinkTimeout. A sink failure is reported via OnSinkError and
// ErrorHandler but never blocks sibling sinks.
func (s *AlertingService) dispatch(ctx context.Context, alerts []Alert, channels []AlertChannel) {
	sem := make(chan struct{}, s.config.MaxConcurrentSinks)
	var wg sync.WaitGroup

	for _, alert := range alerts {
		for _, channel := range channelsFor(channels, alert.Severity) {
			wg.Add(1)
			sem <- struct{}{}
			go func(ch AlertChannel, a Alert) {
				defer wg.Done()
				defer func() { <-sem }()

				sendCtx, cancel := context.WithTimeout(ctx, s.config.SinkTimeout)
				defer cancel()

				if err := ch.Sink.Send(sendCtx, a); err != nil {
					if s.config.OnSinkError != nil {
						s.config.OnSinkError(ch.Name, a, err)
					}
					if s.config.ErrorHandler != nil {
						s.config.ErrorHandler.Handle(&TelemetryError{
							ID:        uuid.NewString(),
							Timestamp: time.Now(),
							Message:   fmt.Sprintf("alert sink %q failed: %v", ch.Name, err),
							Cause:     err,
							Category:  CategorySystem,
							Severity:  SeverityLow,
							Count:     1,
						})
					}
				}
			}(channel, alert)
		}
	}

	wg.Wait()
}

// History returns buffered alerts at or after since.
func (s *AlertingService) History(since time.Time) []Alert {
	var out []Alert
	for _, a := range s.history.items() {
		if !a.Timestamp.Before(since) {
			out = append(out, a)
		}
	}
	return out
}

// Rules returns a copy of the currently registered rules.
func (s *AlertingService) Rules() []AlertRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AlertRule, len(s.rules))
	for i, r := range s.rules {
		out[i] = *r
	}
	return out
}
