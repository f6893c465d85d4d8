package pipeline

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/poiesic/vecsync/core"
)

// countingMonitor records every event it receives.
type countingMonitor struct {
	mu         sync.Mutex
	starts     int
	read       int
	failures   map[string]core.ErrorKind
	written    int
	commits    []core.Cursor
	finishes   int
	lastStatus RunStatus
}

func newCountingMonitor() *countingMonitor {
	return &countingMonitor{failures: make(map[string]core.ErrorKind)}
}

func (m *countingMonitor) RunStarted(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
}

func (m *countingMonitor) BatchRead(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.read += count
}

func (m *countingMonitor) RecordFailed(id string, kind core.ErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = kind
}

func (m *countingMonitor) BatchWritten(result *core.BatchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written += result.SucceededCount()
}

func (m *countingMonitor) WatermarkCommitted(_ string, cursor core.Cursor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits = append(m.commits, cursor)
}

func (m *countingMonitor) RunFinished(summary *RunSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishes++
	m.lastStatus = summary.Status
}

func testSummary(status RunStatus, read, failed int) *RunSummary {
	started := time.Now().UTC().Add(-2 * time.Second)
	return &RunSummary{
		Pipeline:    "records",
		Status:      status,
		StartedAt:   started,
		FinishedAt:  started.Add(2 * time.Second),
		RecordsRead: read,
		Failed:      failed,
	}
}

func TestProgressMonitor_ReportsAtInterval(t *testing.T) {
	var buf bytes.Buffer
	monitor := NewProgressMonitor(&buf, 10)

	monitor.RunStarted("records")
	assert.Contains(t, buf.String(), `Starting run of pipeline "records"`)

	monitor.BatchRead(5)
	assert.NotContains(t, buf.String(), "Progress:", "below the interval, no report yet")

	monitor.BatchRead(5)
	assert.Contains(t, buf.String(), "Progress: 10 records")
}

func TestProgressMonitor_RunFinished(t *testing.T) {
	var buf bytes.Buffer
	monitor := NewProgressMonitor(&buf, 10)

	monitor.RunStarted("records")
	monitor.BatchRead(25)
	monitor.RunFinished(testSummary(StatusSucceeded, 25, 0))

	output := buf.String()
	assert.Contains(t, output, "Run succeeded")
	assert.Contains(t, output, "Processed 25 records")
	assert.Contains(t, output, "0 failed")
}

func TestProgressMonitor_NoChanges(t *testing.T) {
	var buf bytes.Buffer
	monitor := NewProgressMonitor(&buf, 10)

	monitor.RunStarted("records")
	monitor.RunFinished(testSummary(StatusSucceeded, 0, 0))

	assert.Contains(t, buf.String(), "No changed records")
}

func TestProgressMonitor_ReportsFailures(t *testing.T) {
	var buf bytes.Buffer
	monitor := NewProgressMonitor(&buf, 10)

	monitor.RunStarted("records")
	monitor.BatchRead(12)
	monitor.RunFinished(testSummary(StatusPartial, 12, 3))

	output := buf.String()
	assert.Contains(t, output, "Run partial")
	assert.Contains(t, output, "3 failed")
}

func TestMultiMonitor_FansOut(t *testing.T) {
	first := newCountingMonitor()
	second := newCountingMonitor()
	monitor := MultiMonitor(first, second)

	monitor.RunStarted("records")
	monitor.BatchRead(4)
	monitor.RecordFailed("rec-1", core.KindEmbeddingUnavailable)
	result := core.NewBatchResult("batch-1")
	result.Inserted = []string{"rec-2", "rec-3"}
	monitor.BatchWritten(result)
	cursor := core.Cursor{UpdatedAt: time.Now().UTC(), ID: "rec-3"}
	monitor.WatermarkCommitted("records", cursor)
	monitor.RunFinished(testSummary(StatusPartial, 4, 1))

	for _, m := range []*countingMonitor{first, second} {
		assert.Equal(t, 1, m.starts)
		assert.Equal(t, 4, m.read)
		assert.Equal(t, core.KindEmbeddingUnavailable, m.failures["rec-1"])
		assert.Equal(t, 2, m.written)
		assert.Equal(t, []core.Cursor{cursor}, m.commits)
		assert.Equal(t, 1, m.finishes)
		assert.Equal(t, StatusPartial, m.lastStatus)
	}
}

func TestRunSummary_Duration(t *testing.T) {
	summary := testSummary(StatusSucceeded, 10, 0)
	assert.Equal(t, 2*time.Second, summary.Duration())
}
