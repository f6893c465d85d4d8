package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/vecsync/core"
)

// Metrics exposes run activity as Prometheus metrics. It implements
// RunMonitor so it can be attached to a coordinator directly, alone or
// combined with other monitors through MultiMonitor.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	recordsRead     prometheus.Counter
	recordsFailed   *prometheus.CounterVec
	rowsWritten     *prometheus.CounterVec
	batchesTotal    prometheus.Counter
	watermarkMicros *prometheus.GaugeVec
}

var _ RunMonitor = (*Metrics)(nil)

// NewMetrics creates the pipeline metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vecsync",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by terminal status",
		}, []string{"pipeline", "status"}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vecsync",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"pipeline"}),

		recordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vecsync",
			Name:      "records_read_total",
			Help:      "Changed records read from the source",
		}),

		recordsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vecsync",
			Name:      "records_failed_total",
			Help:      "Records that failed during a run, by error kind",
		}, []string{"kind"}),

		rowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vecsync",
			Name:      "rows_written_total",
			Help:      "Destination rows by write outcome",
		}, []string{"outcome"}),

		batchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vecsync",
			Name:      "batches_total",
			Help:      "Destination batches written",
		}),

		watermarkMicros: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vecsync",
			Name:      "watermark_position_microseconds",
			Help:      "Committed watermark position as unix microseconds",
		}, []string{"pipeline"}),
	}

	reg.MustRegister(
		m.runsTotal, m.runDuration,
		m.recordsRead, m.recordsFailed,
		m.rowsWritten, m.batchesTotal,
		m.watermarkMicros,
	)

	return m
}

func (m *Metrics) RunStarted(string) {}

func (m *Metrics) BatchRead(count int) {
	m.recordsRead.Add(float64(count))
}

func (m *Metrics) RecordFailed(_ string, kind core.ErrorKind) {
	m.recordsFailed.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) BatchWritten(result *core.BatchResult) {
	m.batchesTotal.Inc()
	m.rowsWritten.WithLabelValues("inserted").Add(float64(len(result.Inserted)))
	m.rowsWritten.WithLabelValues("updated").Add(float64(len(result.Updated)))
	m.rowsWritten.WithLabelValues("skipped_stale").Add(float64(len(result.SkippedStale)))
}

func (m *Metrics) WatermarkCommitted(pipeline string, cursor core.Cursor) {
	m.watermarkMicros.WithLabelValues(pipeline).Set(float64(cursor.UpdatedAt.UnixMicro()))
}

func (m *Metrics) RunFinished(summary *RunSummary) {
	m.runsTotal.WithLabelValues(summary.Pipeline, string(summary.Status)).Inc()
	m.runDuration.WithLabelValues(summary.Pipeline).Observe(summary.Duration().Seconds())
}
