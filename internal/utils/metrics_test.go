package utils

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	m := NewMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter("hits")
			m.AddCounter("bytes", 10)
		}()
	}
	wg.Wait()

	if got := m.GetCounterValue("hits"); got != 50 {
		t.Errorf("hits = %d, want 50", got)
	}
	if got := m.GetCounterValue("bytes"); got != 500 {
		t.Errorf("bytes = %d, want 500", got)
	}
	if got := m.GetCounterValue("missing"); got != 0 {
		t.Errorf("missing counter = %d, want 0", got)
	}
}

func TestHistogramTracksMinMax(t *testing.T) {
	m := NewMetricsCollector()
	for _, v := range []int64{30, 10, 50} {
		m.RecordHistogram("latency", v)
	}

	h := m.GetMetrics()["histograms"].(map[string]map[string]int64)["latency"]
	if h["count"] != 3 || h["sum"] != 90 || h["min"] != 10 || h["max"] != 50 {
		t.Errorf("unexpected histogram %v", h)
	}
}

func TestSummaryMetrics(t *testing.T) {
	m := NewMetricsCollector()
	sm := NewSummaryMetrics(m, NewLogger(io.Discard, DEBUG))

	sm.RecordAPIRequest("/api/summary", "POST", 201, 5*time.Millisecond)
	sm.RecordAPIRequest("/api/summary", "POST", 502, 5*time.Millisecond)
	sm.RecordTranscriptFetch("vid", 3, time.Millisecond, nil)
	sm.RecordTranscriptFetch("vid", 0, time.Millisecond, errors.New("down"))
	sm.RecordLLMRequest("github", "gpt-4o-mini", 120, time.Second, nil)
	sm.RecordAction("generate", errors.New("boom"))
	sm.SetActiveSessions(2)

	checks := map[string]int64{
		"api_responses_2xx":               1,
		"api_responses_5xx":               1,
		"transcript_fetch_total":          2,
		"transcript_fetch_failed":         1,
		"transcript_fragments_total":      3,
		"llm_requests_github":             1,
		"llm_tokens_total":                120,
		"session_actions_generate":        1,
		"session_actions_generate_failed": 1,
	}
	for name, want := range checks {
		if got := m.GetCounterValue(name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
	if m.GetGauge("sessions_active") != 2 {
		t.Errorf("sessions_active = %d, want 2", m.GetGauge("sessions_active"))
	}
}
