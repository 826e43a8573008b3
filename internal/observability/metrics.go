package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters. It satisfies token.Recorder.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	tokensIssued  map[string]int64
	verifications map[string]int64
	latencyTotal  time.Duration
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests          map[string]int64 `json:"requests"`
	Errors            map[string]int64 `json:"errors"`
	TokensIssued      map[string]int64 `json:"tokensIssued"`
	Verifications     map[string]int64 `json:"verifications"`
	AverageLatencyMS  float64          `json:"averageLatencyMs"`
	TotalRequestCount int64            `json:"totalRequests"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		tokensIssued:  make(map[string]int64),
		verifications: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTokenIssued counts a token signed under algorithm.
func (m *Metrics) RecordTokenIssued(algorithm string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokensIssued[algorithm]++
}

// RecordVerification counts a verification attempt by algorithm and outcome kind.
func (m *Metrics) RecordVerification(algorithm, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications[algorithm+"|"+outcome]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Requests:      copyCounts(m.requestCount),
		Errors:        copyCounts(m.errorCount),
		TokensIssued:  copyCounts(m.tokensIssued),
		Verifications: copyCounts(m.verifications),
	}
	for _, n := range m.requestCount {
		snap.TotalRequestCount += n
	}
	if snap.TotalRequestCount > 0 {
		snap.AverageLatencyMS = float64(m.latencyTotal.Microseconds()) / 1000 / float64(snap.TotalRequestCount)
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
