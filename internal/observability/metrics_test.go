package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotCopiesCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/tickets", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/tickets", "GET", 200, 30*time.Millisecond)
	m.RecordError("/tickets", "POST", "FORBIDDEN")
	m.EventPublished()
	m.EventDropped()
	m.NotificationResult(nil)
	m.NotificationResult(errors.New("x"))
	m.BestEffortFailure()
	m.SetActiveConnections(4)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/tickets|GET|200"])
	assert.Equal(t, int64(20), snap.AvgLatencyMillis["/tickets|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/tickets|POST|FORBIDDEN"])
	assert.Equal(t, int64(1), snap.EventsPublished)
	assert.Equal(t, int64(1), snap.EventsDropped)
	assert.Equal(t, int64(1), snap.NotificationsSent)
	assert.Equal(t, int64(1), snap.NotificationsFail)
	assert.Equal(t, int64(1), snap.BestEffortFailed)
	assert.Equal(t, int64(4), snap.ActiveConnections)
	assert.Equal(t, []string{"/tickets|GET|200"}, snap.RequestKeys())

	m.RecordRequest("/tickets", "GET", 200, time.Millisecond)
	assert.Equal(t, int64(2), snap.Requests["/tickets|GET|200"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.EventPublished()
	m.NotificationResult(nil)
	assert.Empty(t, m.Snapshot().Requests)
}
