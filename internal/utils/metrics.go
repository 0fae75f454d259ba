// internal/utils/metrics.go
package utils

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects application metrics
type MetricsCollector struct {
	counters   map[string]*int64
	gauges     map[string]*int64
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Histogram metric (simple implementation tracking count, sum, min, max)
type Histogram struct {
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the global metrics collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

// NewMetricsCollector creates an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*int64),
		histograms: make(map[string]*Histogram),
	}
}

// slot returns the atomic cell for name, creating it on first use
func (m *MetricsCollector) slot(table map[string]*int64, name string) *int64 {
	m.mu.RLock()
	v, exists := table[name]
	m.mu.RUnlock()
	if exists {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, exists = table[name]; !exists {
		v = new(int64)
		table[name] = v
	}
	return v
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	atomic.AddInt64(m.slot(m.counters, name), 1)
}

// AddCounter adds a value to a counter metric
func (m *MetricsCollector) AddCounter(name string, value int64) {
	atomic.AddInt64(m.slot(m.counters, name), value)
}

// SetGauge sets a gauge metric
func (m *MetricsCollector) SetGauge(name string, value int64) {
	atomic.StoreInt64(m.slot(m.gauges, name), value)
}

// GetGauge reads a gauge metric
func (m *MetricsCollector) GetGauge(name string) int64 {
	return atomic.LoadInt64(m.slot(m.gauges, name))
}

// GetCounterValue reads a counter metric
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	v, exists := m.counters[name]
	m.mu.RUnlock()
	if !exists {
		return 0
	}
	return atomic.LoadInt64(v)
}

// RecordHistogram records a value in a histogram
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	h, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if h, exists = m.histograms[name]; !exists {
			h = &Histogram{min: value, max: value}
			m.histograms[name] = h
		}
		m.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.count++
	h.sum += value
	if value < h.min {
		h.min = value
	}
	if value > h.max {
		h.max = value
	}
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, v := range m.counters {
		counters[name] = atomic.LoadInt64(v)
	}

	gauges := make(map[string]int64, len(m.gauges))
	for name, v := range m.gauges {
		gauges[name] = atomic.LoadInt64(v)
	}

	histograms := make(map[string]map[string]int64, len(m.histograms))
	for name, h := range m.histograms {
		h.mu.Lock()
		histograms[name] = map[string]int64{
			"count": h.count,
			"sum":   h.sum,
			"min":   h.min,
			"max":   h.max,
		}
		h.mu.Unlock()
	}

	return map[string]interface{}{
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}

// SummaryMetrics records the summarizer's request, fetch and LLM metrics
type SummaryMetrics struct {
	metrics *MetricsCollector
	logger  *Logger
}

// NewSummaryMetrics binds metrics to a collector and logger; nil arguments fall back to the globals
func NewSummaryMetrics(collector *MetricsCollector, logger *Logger) *SummaryMetrics {
	if collector == nil {
		collector = GetMetricsCollector()
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &SummaryMetrics{metrics: collector, logger: logger}
}

// Collector exposes the underlying collector
func (sm *SummaryMetrics) Collector() *MetricsCollector {
	return sm.metrics
}

// RecordAPIRequest records metrics for an API request
func (sm *SummaryMetrics) RecordAPIRequest(route, method string, statusCode int, duration time.Duration) {
	sm.metrics.IncrementCounter("api_requests_total")
	sm.metrics.IncrementCounter("api_requests_" + method + "_" + route)
	sm.metrics.IncrementCounter("api_responses_" + strconv.Itoa(statusCode/100) + "xx")
	sm.metrics.RecordHistogram("api_response_time_ms", duration.Milliseconds())

	sm.logger.Debug("API request completed", map[string]interface{}{
		"route":    route,
		"method":   method,
		"status":   statusCode,
		"duration": duration.Milliseconds(),
	})
}

// RecordTranscriptFetch records one call to the transcript endpoint
func (sm *SummaryMetrics) RecordTranscriptFetch(videoID string, fragments int, duration time.Duration, err error) {
	sm.metrics.IncrementCounter("transcript_fetch_total")
	sm.metrics.RecordHistogram("transcript_fetch_time_ms", duration.Milliseconds())
	if err != nil {
		sm.metrics.IncrementCounter("transcript_fetch_failed")
		return
	}
	sm.metrics.AddCounter("transcript_fragments_total", int64(fragments))

	sm.logger.Debug("Transcript fetched", map[string]interface{}{
		"video_id":  videoID,
		"fragments": fragments,
		"duration":  duration.Milliseconds(),
	})
}

// RecordLLMRequest records metrics for an LLM request
func (sm *SummaryMetrics) RecordLLMRequest(provider, model string, tokensUsed int, duration time.Duration, err error) {
	sm.metrics.IncrementCounter("llm_requests_total")
	sm.metrics.IncrementCounter("llm_requests_" + provider)
	sm.metrics.RecordHistogram("llm_response_time_ms", duration.Milliseconds())
	if err != nil {
		sm.metrics.IncrementCounter("llm_requests_failed")
		return
	}
	sm.metrics.AddCounter("llm_tokens_total", int64(tokensUsed))

	sm.logger.Info("LLM request completed", map[string]interface{}{
		"provider": provider,
		"model":    model,
		"tokens":   tokensUsed,
		"duration": duration.Milliseconds(),
	})
}

// RecordAction records a session action (generate, regenerate, edit, save, export)
func (sm *SummaryMetrics) RecordAction(action string, err error) {
	sm.metrics.IncrementCounter("session_actions_" + action)
	if err != nil {
		sm.metrics.IncrementCounter("session_actions_" + action + "_failed")
	}
}

// RecordError records an error by kind and component
func (sm *SummaryMetrics) RecordError(errorKind, component string) {
	sm.metrics.IncrementCounter("errors_total")
	sm.metrics.IncrementCounter("errors_" + errorKind)
	sm.metrics.IncrementCounter("errors_component_" + component)
}

// SetActiveSessions updates the live session gauge
func (sm *SummaryMetrics) SetActiveSessions(n int) {
	sm.metrics.SetGauge("sessions_active", int64(n))
}
