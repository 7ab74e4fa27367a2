package observability

import (
	"strconv"
	"sync"
)

// Refresh outcomes recorded by the refresh coordinator.
const (
	RefreshStarted   = "started"
	RefreshSucceeded = "succeeded"
	RefreshFailed    = "failed"
	RefreshShared    = "shared"
	RefreshSkipped   = "skipped"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	refreshCount map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		refreshCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(method, path string, status int) {
	if m == nil {
		return
	}
	key := method + "|" + path + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters keyed by error code name.
func (m *Metrics) RecordError(code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[code]++
}

// RecordRefresh increments the counter of a refresh outcome for a role.
func (m *Metrics) RecordRefresh(role, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCount[role+"|"+outcome]++
}

// Requests returns the request count for method, path and status.
func (m *Metrics) Requests(method, path string, status int) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount[method+"|"+path+"|"+strconv.Itoa(status)]
}

// Errors returns the error count for a code name.
func (m *Metrics) Errors(code string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorCount[code]
}

// Refreshes returns the count of a refresh outcome for a role.
func (m *Metrics) Refreshes(role, outcome string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCount[role+"|"+outcome]
}
