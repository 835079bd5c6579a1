package observability

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	latencyTotal map[string]time.Duration

	eventsPublished   atomic.Int64
	eventsDropped     atomic.Int64
	notificationsSent atomic.Int64
	notificationsFail atomic.Int64
	bestEffortFail    atomic.Int64
	remindersSent     atomic.Int64
	activeConnections atomic.Int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		latencyTotal: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.latencyTotal[key] += duration
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

func (m *Metrics) EventPublished() {
	if m != nil {
		m.eventsPublished.Add(1)
	}
}

func (m *Metrics) EventDropped() {
	if m != nil {
		m.eventsDropped.Add(1)
	}
}

// NotificationResult counts one delivery attempt.
func (m *Metrics) NotificationResult(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.notificationsFail.Add(1)
		return
	}
	m.notificationsSent.Add(1)
}

// BestEffortFailure counts a swallowed side-effect failure (history, events, tasks).
func (m *Metrics) BestEffortFailure() {
	if m != nil {
		m.bestEffortFail.Add(1)
	}
}

func (m *Metrics) ReminderSent() {
	if m != nil {
		m.remindersSent.Add(1)
	}
}

// SetActiveConnections records the open realtime connection count.
func (m *Metrics) SetActiveConnections(n int) {
	if m != nil {
		m.activeConnections.Store(int64(n))
	}
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests          map[string]int64 `json:"requests"`
	Errors            map[string]int64 `json:"errors"`
	AvgLatencyMillis  map[string]int64 `json:"avgLatencyMs"`
	EventsPublished   int64            `json:"eventsPublished"`
	EventsDropped     int64            `json:"eventsDropped"`
	NotificationsSent int64            `json:"notificationsSent"`
	NotificationsFail int64            `json:"notificationsFailed"`
	BestEffortFailed  int64            `json:"bestEffortFailed"`
	RemindersSent     int64            `json:"remindersSent"`
	ActiveConnections int64            `json:"activeConnections"`
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Requests:         map[string]int64{},
		Errors:           map[string]int64{},
		AvgLatencyMillis: map[string]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	for k, v := range m.requestCount {
		snap.Requests[k] = v
		if v > 0 {
			snap.AvgLatencyMillis[k] = (m.latencyTotal[k] / time.Duration(v)).Milliseconds()
		}
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	m.mu.Unlock()

	snap.EventsPublished = m.eventsPublished.Load()
	snap.EventsDropped = m.eventsDropped.Load()
	snap.NotificationsSent = m.notificationsSent.Load()
	snap.NotificationsFail = m.notificationsFail.Load()
	snap.BestEffortFailed = m.bestEffortFail.Load()
	snap.RemindersSent = m.remindersSent.Load()
	snap.ActiveConnections = m.activeConnections.Load()
	return snap
}

// RequestKeys lists request counter keys in stable order.
func (s Snapshot) RequestKeys() []string {
	keys := make([]string, 0, len(s.Requests))
	for k := range s.Requests {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
