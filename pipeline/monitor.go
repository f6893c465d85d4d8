package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/poiesic/vecsync/core"
)

// RunMonitor observes pipeline run progress. Implementations must be safe
// for concurrent use; batch callbacks arrive from more than one goroutine.
type RunMonitor interface {
	// RunStarted is called once when a run begins.
	RunStarted(pipeline string)

	// BatchRead is called after each batch of changed records is read from
	// the source.
	BatchRead(count int)

	// RecordFailed is called for each record that fails in any stage.
	RecordFailed(id string, kind core.ErrorKind)

	// BatchWritten is called after each destination batch write.
	BatchWritten(result *core.BatchResult)

	// WatermarkCommitted is called when a run advances the watermark.
	WatermarkCommitted(pipeline string, cursor core.Cursor)

	// RunFinished is called once when the run reaches a terminal state.
	RunFinished(summary *RunSummary)
}

// noopMonitor ignores all events.
type noopMonitor struct{}

var _ RunMonitor = (*noopMonitor)(nil)

func (noopMonitor) RunStarted(string)                      {}
func (noopMonitor) BatchRead(int)                          {}
func (noopMonitor) RecordFailed(string, core.ErrorKind)    {}
func (noopMonitor) BatchWritten(*core.BatchResult)         {}
func (noopMonitor) WatermarkCommitted(string, core.Cursor) {}
func (noopMonitor) RunFinished(*RunSummary)                {}

// MultiMonitor fans events out to several monitors in order.
func MultiMonitor(monitors ...RunMonitor) RunMonitor {
	return multiMonitor(monitors)
}

type multiMonitor []RunMonitor

func (m multiMonitor) RunStarted(pipeline string) {
	for _, monitor := range m {
		monitor.RunStarted(pipeline)
	}
}

func (m multiMonitor) BatchRead(count int) {
	for _, monitor := range m {
		monitor.BatchRead(count)
	}
}

func (m multiMonitor) RecordFailed(id string, kind core.ErrorKind) {
	for _, monitor := range m {
		monitor.RecordFailed(id, kind)
	}
}

func (m multiMonitor) BatchWritten(result *core.BatchResult) {
	for _, monitor := range m {
		monitor.BatchWritten(result)
	}
}

func (m multiMonitor) WatermarkCommitted(pipeline string, cursor core.Cursor) {
	for _, monitor := range m {
		monitor.WatermarkCommitted(pipeline, cursor)
	}
}

func (m multiMonitor) RunFinished(summary *RunSummary) {
	for _, monitor := range m {
		monitor.RunFinished(summary)
	}
}

// progressMonitor reports run progress to a writer, typically os.Stderr.
// The size of an incremental scan is unknown up front, so it reports a
// running count and rate rather than a percentage.
type progressMonitor struct {
	writer         io.Writer
	reportInterval int

	mu           sync.Mutex
	startTime    time.Time
	processed    int
	lastReported int
}

// NewProgressMonitor returns a monitor that writes a progress line every
// reportInterval records read.
// writer: where to write progress output (typically os.Stderr)
func NewProgressMonitor(writer io.Writer, reportInterval int) RunMonitor {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &progressMonitor{
		writer:         writer,
		reportInterval: reportInterval,
	}
}

func (p *progressMonitor) RunStarted(pipeline string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.processed = 0
	p.lastReported = 0
	fmt.Fprintf(p.writer, "Starting run of pipeline %q\n", pipeline)
}

func (p *progressMonitor) BatchRead(count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed += count

	// Report if we've crossed a report interval
	if p.processed-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.processed
	}
}

func (p *progressMonitor) RecordFailed(string, core.ErrorKind) {}

func (p *progressMonitor) BatchWritten(*core.BatchResult) {}

func (p *progressMonitor) WatermarkCommitted(string, core.Cursor) {}

func (p *progressMonitor) RunFinished(summary *RunSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if summary.RecordsRead == 0 {
		fmt.Fprintf(p.writer, "Run %s. No changed records\n", summary.Status)
		return
	}

	p.report()
	fmt.Fprintln(p.writer) // Print newline after final progress

	elapsed := summary.Duration()
	fmt.Fprintf(p.writer, "Run %s. Processed %d records in %v (%.1f records/sec), %d failed\n",
		summary.Status, summary.RecordsRead, elapsed.Round(time.Millisecond),
		float64(summary.RecordsRead)/elapsed.Seconds(), summary.Failed)
}

// report prints the current progress. Must be called with lock held.
func (p *progressMonitor) report() {
	elapsed := time.Since(p.startTime)
	rate := float64(p.processed) / elapsed.Seconds()

	fmt.Fprintf(p.writer, "\rProgress: %d records - %.1f records/s", p.processed, rate)
}
