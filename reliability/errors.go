package reliability

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for the reliability package.
var (
	// ErrRateLimited is returned by Manager.CheckRateLimit when a key has
	// exhausted its window.
	ErrRateLimited = errors.New("reliability: rate limit exceeded")

	// ErrManagerClosed is returned by BackpressureManager operations after
	// Shutdown.
	ErrManagerClosed = errors.New("reliability: manager is shut down")

	// ErrQueueFull is returned by BackpressureManager.Push under the
	// drop-newest strategy when the queue is at capacity.
	ErrQueueFull = errors.New("reliability: queue at capacity")
)

// Category classifies the subsystem an error originated from.
type Category string

// Recognized error categories.
const (
	CategoryValidation Category = "validation"
	CategoryStorage    Category = "storage"
	CategoryStreaming  Category = "streaming"
	CategoryNetwork    Category = "network"
	CategorySystem     Category = "system"
	CategoryUser       Category = "user"
)

// Severity ranks the impact of an error.
type Severity string

// Recognized severities, ordered low to critical.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank orders severities for comparison (higher is worse).
func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// retryableCategories is the set of categories whose errors are eligible for
// retry, provided the Retryable flag is also set.
var retryableCategories = map[Category]bool{
	CategoryNetwork:   true,
	CategoryStorage:   true,
	CategoryStreaming: true,
}

// TelemetryError is the typed error that flows through the reliability
// layer. Every public Manager operation that fails returns one of these.
type TelemetryError struct {
	ID            string
	Timestamp     time.Time
	Message       string
	Cause         error
	Category      Category
	Severity      Severity
	Retryable     bool
	Context       map[string]any
	CorrelationID string
	EventRef      string

	// Count tracks how many times an equivalent error (same category,
	// severity, and message prefix) was deduplicated into this record
	// within the handler's dedupe window.
	Count int
}

// Error implements the error interface.
func (e *TelemetryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Category, e.Severity, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *TelemetryError) Unwrap() error {
	return e.Cause
}

// dedupeKey returns the key used to collapse repeated errors within the
// handler's dedupe window: hash(category, message-prefix, severity).
func dedupeKey(category Category, severity Severity, message string) string {
	prefix := message
	if len(prefix) > 128 {
		prefix = prefix[:128]
	}
	return string(category) + "|" + string(severity) + "|" + prefix
}

// classify assigns a category, severity, and retryability to a raw error
// that was not already a *TelemetryError. It never inspects an error's text
// for a bare digit like "4" to guess at an HTTP status family; only
// recognizable substrings drive classification.
func classify(err error) (Category, Severity, bool) {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "dial"),
		strings.Contains(msg, "dns"):
		return CategoryNetwork, SeverityMedium, true
	case strings.Contains(msg, "permission"),
		strings.Contains(msg, "forbidden"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "bad request"),
		strings.Contains(msg, "invalid"):
		return CategoryValidation, SeverityMedium, false
	default:
		return CategorySystem, SeverityMedium, false
	}
}

// ErrorHandlerConfig configures an ErrorHandler.
type ErrorHandlerConfig struct {
	// BufferSize caps the in-memory error ring buffer. Default: 1000.
	BufferSize int

	// Window is the sliding window used to evaluate severity thresholds.
	// Default: 5 minutes.
	Window time.Duration

	// DedupeWindow collapses identical (category, severity, message)
	// errors seen within this duration into a single record with an
	// incrementing Count. Default: 10 seconds.
	DedupeWindow time.Duration

	// Thresholds maps a severity to the count, within Window, that
	// triggers OnThreshold. Default: {high: 10, critical: 1}.
	Thresholds map[Severity]int

	// OnThreshold fires once per crossing (not on every call above
	// threshold) with the batch of matching errors in the current window.
	OnThreshold func(batch []*TelemetryError, severity Severity)

	// OnCritical fires for every critical error, regardless of window.
	OnCritical func(err *TelemetryError)
}

func (c *ErrorHandlerConfig) applyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.Window <= 0 {
		c.Window = 5 * time.Minute
	}
	if c.DedupeWindow <= 0 {
		c.DedupeWindow = 10 * time.Second
	}
	if c.Thresholds == nil {
		c.Thresholds = map[Severity]int{
			SeverityHigh:     10,
			SeverityCritical: 1,
		}
	}
}

type dedupeEntry struct {
	err      *TelemetryError
	lastSeen time.Time
}

// ErrorHandler classifies, deduplicates, and buffers errors flowing through
// the reliability layer, firing threshold and critical callbacks.
type ErrorHandler struct {
	config ErrorHandlerConfig

	mu             sync.Mutex
	buf            *ring[*TelemetryError]
	total          int64
	bySeverity     map[Severity]int64
	byCategory     map[Category]int64
	dedupe         map[string]*dedupeEntry
	aboveThreshold map[Severity]bool
}

// NewErrorHandler creates a new ErrorHandler.
func NewErrorHandler(config ErrorHandlerConfig) *ErrorHandler {
	config.applyDefaults()
	return &ErrorHandler{
		config:         config,
		buf:            newRing[*TelemetryError](config.BufferSize),
		bySeverity:     make(map[Severity]int64),
		byCategory:     make(map[Category]int64),
		dedupe:         make(map[string]*dedupeEntry),
		aboveThreshold: make(map[Severity]bool),
	}
}

// CreateError builds a new TelemetryError without recording it. Callers
// pass the result to Handle to apply dedup, buffering, and callbacks.
func (h *ErrorHandler) CreateError(msg string, category Category, severity Severity, context map[string]any, eventRef string, retryable bool) *TelemetryError {
	return &TelemetryError{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Message:   msg,
		Category:  category,
		Severity:  severity,
		Retryable: retryable,
		Context:   context,
		EventRef:  eventRef,
		Count:     1,
	}
}

// Handle classifies err if it is not already a *TelemetryError, then
// records it: dedup, ring buffer append, counters, and threshold/critical
// callbacks.
func (h *ErrorHandler) Handle(err error) *TelemetryError {
	if err == nil {
		return nil
	}

	te, ok := err.(*TelemetryError)
	if !ok {
		category, severity, retryable := classify(err)
		te = &TelemetryError{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Message:   err.Error(),
			Cause:     err,
			Category:  category,
			Severity:  severity,
			Retryable: retryable,
			Count:     1,
		}
	}

	h.mu.Lock()

	h.total++
	h.bySeverity[te.Severity]++
	h.byCategory[te.Category]++

	key := dedupeKey(te.Category, te.Severity, te.Message)
	if existing, ok := h.dedupe[key]; ok && time.Since(existing.lastSeen) < h.config.DedupeWindow {
		existing.err.Count++
		existing.lastSeen = time.Now()
	} else {
		h.buf.push(te)
		h.dedupe[key] = &dedupeEntry{err: te, lastSeen: time.Now()}
	}

	threshold, hasThreshold := h.config.Thresholds[te.Severity]
	var batch []*TelemetryError
	var fireThreshold bool
	if hasThreshold {
		cutoff := time.Now().Add(-h.config.Window)
		windowCount := 0
		for _, e := range h.buf.items() {
			if e.Severity == te.Severity && !e.Timestamp.Before(cutoff) {
				windowCount += e.Count
				batch = append(batch, e)
			}
		}
		wasAbove := h.aboveThreshold[te.Severity]
		isAbove := windowCount >= threshold
		h.aboveThreshold[te.Severity] = isAbove
		fireThreshold = isAbove && !wasAbove
	}

	onThreshold := h.config.OnThreshold
	onCritical := h.config.OnCritical
	isCritical := te.Severity == SeverityCritical

	h.mu.Unlock()

	if fireThreshold && onThreshold != nil {
		onThreshold(batch, te.Severity)
	}
	if isCritical && onCritical != nil {
		onCritical(te)
	}

	return te
}

// IsRetryable reports whether err is eligible for retry: it must carry
// Retryable=true, belong to a retryable category, and not be marked as
// failing because its circuit is open.
func (h *ErrorHandler) IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	te, ok := err.(*TelemetryError)
	if !ok {
		category, _, retryable := classify(err)
		return retryable && retryableCategories[category]
	}

	if circuitOpen, _ := te.Context["circuit_open"].(bool); circuitOpen {
		return false
	}
	return te.Retryable && retryableCategories[te.Category]
}

// ErrorStats is a point-in-time snapshot of ErrorHandler counters.
type ErrorStats struct {
	Total      int64
	BySeverity map[Severity]int64
	ByCategory map[Category]int64
	Recent     []*TelemetryError
}

// Stats returns a snapshot of totals, per-severity/category counts, and the
// errors observed within the configured Window.
func (h *ErrorHandler) Stats() ErrorStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	bySeverity := make(map[Severity]int64, len(h.bySeverity))
	for k, v := range h.bySeverity {
		bySeverity[k] = v
	}
	byCategory := make(map[Category]int64, len(h.byCategory))
	for k, v := range h.byCategory {
		byCategory[k] = v
	}

	cutoff := time.Now().Add(-h.config.Window)
	var recent []*TelemetryError
	for _, e := range h.buf.items() {
		if !e.Timestamp.Before(cutoff) {
			recent = append(recent, e)
		}
	}

	return ErrorStats{
		Total:      h.total,
		BySeverity: bySeverity,
		ByCategory: byCategory,
		Recent:     recent,
	}
}

// CountSince returns the number of buffered errors (honoring dedupe counts)
// at or after since, optionally restricted to the given severities.
func (h *ErrorHandler) CountSince(since time.Time, severities ...Severity) int {
	var filter map[Severity]bool
	if len(severities) > 0 {
		filter = make(map[Severity]bool, len(severities))
		for _, s := range severities {
			filter[s] = true
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for _, e := range h.buf.items() {
		if e.Timestamp.Before(since) {
			continue
		}
		if filter != nil && !filter[e.Severity] {
			continue
		}
		count += e.Count
	}
	return count
}
