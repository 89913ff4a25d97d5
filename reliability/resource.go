package reliability

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// Sample is a single point-in-time resource reading. Fields the current
// platform cannot supply are left nil rather than reported as zero.
type Sample struct {
	Timestamp time.Time

	// HeapAllocBytes and Goroutines are always populated via runtime.
	HeapAllocBytes uint64
	Goroutines     int
	NumGC          uint32

	// GCPerMinute is the GC rate computed from the delta against the
	// previous sample; nil for the first sample taken.
	GCPerMinute *float64

	// EventLoopLatencyMs approximates scheduler latency via a zero-delay
	// continuation: a goroutine that sends time.Now() back immediately
	// over a one-slot buffered channel. High latency means goroutines are
	// waiting longer than expected to be scheduled.
	EventLoopLatencyMs float64

	// CPUUserPercent/CPUSystemPercent are omitted on platforms without
	// rusage support (see resource_rusage_*.go).
	CPUUserPercent   *float64
	CPUSystemPercent *float64

	// RSSBytes, LoadAverage1, FreeMemBytes, TotalMemBytes are omitted on
	// platforms without /proc access (see resource_procfs_*.go).
	RSSBytes      *uint64
	LoadAverage1  *float64
	FreeMemBytes  *uint64
	TotalMemBytes *uint64
}

// cpuState carries the previous CPU sample's cumulative usage so sampleCPU
// can diff against it. It lives on ResourceMonitor rather than as a package
// global so each monitor instance tracks its own baseline.
type cpuState struct {
	user time.Duration
	sys  time.Duration
	wall time.Time
}

// ThresholdPair is a warning/critical pair for a single resource signal.
type ThresholdPair struct {
	Warning  float64
	Critical float64
}

// ResourceThresholds configures the levels at which ResourceMonitor fires
// OnAlert. A zero ThresholdPair (Warning and Critical both <= 0) disables
// that signal.
type ResourceThresholds struct {
	HeapAllocBytes     ThresholdPair
	Goroutines         ThresholdPair
	EventLoopLatencyMs ThresholdPair
	CPUPercent         ThresholdPair
	MemoryPercent      ThresholdPair
	GCPerMinute        ThresholdPair
}

func defaultResourceThresholds() ResourceThresholds {
	return ResourceThresholds{
		Goroutines:         ThresholdPair{Warning: 5000, Critical: 20000},
		EventLoopLatencyMs: ThresholdPair{Warning: 100, Critical: 250},
		CPUPercent:         ThresholdPair{Warning: 70, Critical: 90},
		MemoryPercent:      ThresholdPair{Warning: 70, Critical: 85},
		GCPerMinute:        ThresholdPair{Warning: 10, Critical: 20},
	}
}

// AlertLevel is the severity of a ResourceAlert.
type AlertLevel string

// Recognized resource alert levels.
const (
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// ResourceAlert describes a single threshold crossing.
type ResourceAlert struct {
	Signal string
	Level  AlertLevel
	Value  float64
	Sample Sample
}

// ResourceMonitorConfig configures a ResourceMonitor.
type ResourceMonitorConfig struct {
	// Interval between samples. Default: 5 seconds.
	Interval time.Duration

	// BufferSize caps the in-memory sample ring. Default: 1000.
	BufferSize int

	// Thresholds controls OnAlert firing. Defaults apply only when
	// Thresholds is left entirely zero; once any signal is set, every
	// signal left zero is disabled.
	Thresholds ResourceThresholds

	// OnAlert fires on each edge-triggered threshold crossing (not on
	// every sample above threshold).
	OnAlert func(ResourceAlert)
}

func (c *ResourceMonitorConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.Thresholds == (ResourceThresholds{}) {
		c.Thresholds = defaultResourceThresholds()
	}
}

// ResourceMonitor periodically samples process resource usage, buffering
// the last BufferSize samples and firing edge-triggered alerts.
type ResourceMonitor struct {
	config ResourceMonitorConfig

	buf *ring[Sample]

	mu       sync.Mutex
	lastGC   uint32
	lastTime time.Time
	above    map[string]AlertLevel
	cpu      cpuState

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewResourceMonitor creates a new ResourceMonitor. Call Start to begin
// sampling.
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	config.applyDefaults()
	return &ResourceMonitor{
		config: config,
		buf:    newRing[Sample](config.BufferSize),
		above:  make(map[string]AlertLevel),
		stopCh: make(chan struct{}),
	}
}

// Start begins the periodic sampling loop in a background goroutine.
func (m *ResourceMonitor) Start() {
	m.wg.Add(1)
	go m.loop()
}

// Stop halts sampling. Safe to call more than once.
func (m *ResourceMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.wg.Wait()
}

func (m *ResourceMonitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

// sample takes one reading, appends it to the ring, and fires any threshold
// crossings.
func (m *ResourceMonitor) sample() Sample {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s := Sample{
		Timestamp:          time.Now(),
		HeapAllocBytes:     mem.HeapAlloc,
		Goroutines:         runtime.NumGoroutine(),
		NumGC:              mem.NumGC,
		EventLoopLatencyMs: measureEventLoopLatency(),
	}

	m.mu.Lock()
	if !m.lastTime.IsZero() {
		elapsedMin := s.Timestamp.Sub(m.lastTime).Minutes()
		if elapsedMin > 0 {
			rate := float64(s.NumGC-m.lastGC) / elapsedMin
			s.GCPerMinute = &rate
		}
	}
	m.lastGC = s.NumGC
	m.lastTime = s.Timestamp
	prevCPU := m.cpu
	m.mu.Unlock()

	var nextCPU cpuState
	s.CPUUserPercent, s.CPUSystemPercent, nextCPU = sampleCPU(prevCPU)
	s.RSSBytes, s.LoadAverage1, s.FreeMemBytes, s.TotalMemBytes = sampleProcfs()

	m.mu.Lock()
	m.cpu = nextCPU
	m.mu.Unlock()

	m.buf.push(s)
	m.checkThresholds(s)

	return s
}

// measureEventLoopLatency spawns a goroutine that reports back immediately
// over a one-slot buffered channel; the delay approximates how long a
// newly runnable goroutine waits to be scheduled. This is measured directly
// rather than inferred from a stored timestamp delta, since the latter
// conflates scheduling delay with whatever else happened between samples.
func measureEventLoopLatency() float64 {
	start := time.Now()
	done := make(chan time.Time, 1)
	go func() {
		done <- time.Now()
	}()
	scheduled := <-done
	return scheduled.Sub(start).Seconds() * 1000
}

func (m *ResourceMonitor) checkThresholds(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.edgeCheck("goroutines", float64(s.Goroutines), m.config.Thresholds.Goroutines, s)
	m.edgeCheck("event_loop_latency_ms", s.EventLoopLatencyMs, m.config.Thresholds.EventLoopLatencyMs, s)
	if s.CPUUserPercent != nil && s.CPUSystemPercent != nil {
		m.edgeCheck("cpu_percent", *s.CPUUserPercent+*s.CPUSystemPercent, m.config.Thresholds.CPUPercent, s)
	}
	if s.FreeMemBytes != nil && s.TotalMemBytes != nil && *s.TotalMemBytes > 0 {
		used := float64(*s.TotalMemBytes-*s.FreeMemBytes) / float64(*s.TotalMemBytes) * 100
		m.edgeCheck("memory_percent", used, m.config.Thresholds.MemoryPercent, s)
	}
	if s.GCPerMinute != nil {
		m.edgeCheck("gc_per_min", *s.GCPerMinute, m.config.Thresholds.GCPerMinute, s)
	}
}

// edgeCheck fires OnAlert only when crossing into or escalating within a
// threshold band, never on every sample that remains above it. m.mu must be
// held.
func (m *ResourceMonitor) edgeCheck(signal string, value float64, t ThresholdPair, s Sample) {
	if t.Critical <= 0 && t.Warning <= 0 {
		return
	}

	var level AlertLevel
	switch {
	case t.Critical > 0 && value >= t.Critical:
		level = AlertCritical
	case t.Warning > 0 && value >= t.Warning:
		level = AlertWarning
	}

	prev := m.above[signal]
	if level == "" {
		delete(m.above, signal)
		return
	}
	if level == prev {
		return
	}
	m.above[signal] = level

	if m.config.OnAlert != nil {
		go m.config.OnAlert(ResourceAlert{Signal: signal, Level: level, Value: value, Sample: s})
	}
}

// Latest returns the most recent sample, or the zero Sample if none has
// been taken yet.
func (m *ResourceMonitor) Latest() (Sample, bool) {
	items := m.buf.items()
	if len(items) == 0 {
		return Sample{}, false
	}
	return items[len(items)-1], true
}

// Samples returns every buffered sample, oldest first.
func (m *ResourceMonitor) Samples() []Sample {
	return m.buf.items()
}

// Average returns the mean HeapAllocBytes, Goroutines, and
// EventLoopLatencyMs across all buffered samples.
func (m *ResourceMonitor) Average() (heapAlloc float64, goroutines float64, eventLoopLatencyMs float64) {
	items := m.buf.items()
	if len(items) == 0 {
		return 0, 0, 0
	}
	for _, s := range items {
		heapAlloc += float64(s.HeapAllocBytes)
		goroutines += float64(s.Goroutines)
		eventLoopLatencyMs += s.EventLoopLatencyMs
	}
	n := float64(len(items))
	return heapAlloc / n, goroutines / n, eventLoopLatencyMs / n
}

// Peak returns the maximum HeapAllocBytes and Goroutines observed across
// all buffered samples.
func (m *ResourceMonitor) Peak() (heapAlloc uint64, goroutines int) {
	for _, s := range m.buf.items() {
		if s.HeapAllocBytes > heapAlloc {
			heapAlloc = s.HeapAllocBytes
		}
		if s.Goroutines > goroutines {
			goroutines = s.Goroutines
		}
	}
	return heapAlloc, goroutines
}

// healthy adapts ResourceMonitor into a health.Aggregator-compatible checker.
// Defined here (rather than manager.go) since it only touches
// ResourceMonitor state.
func (m *ResourceMonitor) healthy(ctx context.Context) (bool, string) {
	select {
	case <-ctx.Done():
		return false, ctx.Err().Error()
	default:
	}

	if _, ok := m.Latest(); !ok {
		return true, "no samples yet"
	}

	m.mu.Lock()
	_, goroutinesCritical := m.above["goroutines"]
	_, latencyCritical := m.above["event_loop_latency_ms"]
	m.mu.Unlock()

	if goroutinesCritical || latencyCritical {
		return false, "resource pressure detected"
	}
	return true, "resource usage nominal"
}
