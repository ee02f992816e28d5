package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names used as the "stage" label.
const (
	StageNews     = "news"
	StageTrends   = "trends"
	StageAnalysis = "analysis"
	StageSpeech   = "speech"
	StageArchive  = "archive"
	StageIndex    = "index"
	StagePublish  = "publish"
)

type Metrics struct {
	mu sync.RWMutex

	cycles         *prometheus.CounterVec
	stageFailures  *prometheus.CounterVec
	logsWritten    *prometheus.CounterVec
	audioWritten   *prometheus.CounterVec
	trendsSelected *prometheus.HistogramVec
	cycleDuration  *prometheus.HistogramVec

	// Status
	TotalCycles           int64
	FailedCycles          int64
	SkippedCycles         int64
	LogsWritten           int64
	AudioWritten          int64
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	LastRunTime           time.Time
	LastErrorTime         time.Time
	LastError             string
	IsHealthy             bool
}

// NewMetrics registers the collectors with reg. A nil reg keeps them
// unregistered, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "cycles_total",
			Help:      "Fetch cycles by country and outcome",
		}, []string{"country", "status"}),
		stageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "stage_failures_total",
			Help:      "Failed pipeline stages",
		}, []string{"country", "stage"}),
		logsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "logs_written_total",
			Help:      "Log files written to the archive",
		}, []string{"country"}),
		audioWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "audio_written_total",
			Help:      "Audio files written to the archive",
		}, []string{"country"}),
		trendsSelected: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pulse",
			Name:      "trends_selected",
			Help:      "Number of surprising trends selected per cycle",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		}, []string{"country"}),
		cycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pulse",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full fetch cycle",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"country"}),
		IsHealthy: true,
	}
}

func (m *Metrics) StageFailed(country, stage string) {
	m.stageFailures.WithLabelValues(country, stage).Inc()
}

func (m *Metrics) LogWritten(country string) {
	m.logsWritten.WithLabelValues(country).Inc()
	m.mu.Lock()
	m.LogsWritten++
	m.mu.Unlock()
}

func (m *Metrics) AudioStored(country string) {
	m.audioWritten.WithLabelValues(country).Inc()
	m.mu.Lock()
	m.AudioWritten++
	m.mu.Unlock()
}

func (m *Metrics) TrendsSelected(country string, n int) {
	m.trendsSelected.WithLabelValues(country).Observe(float64(n))
}

// CycleDone records the outcome of one cycle. A nil err counts as success.
func (m *Metrics) CycleDone(country string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.cycles.WithLabelValues(country, status).Inc()
	m.cycleDuration.WithLabelValues(country).Observe(d.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalCycles++
	m.LastProcessingTime = d
	m.TotalProcessingTime += d
	m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.TotalCycles)
	m.LastRunTime = time.Now()
	if err != nil {
		m.FailedCycles++
		m.LastError = err.Error()
		m.LastErrorTime = m.LastRunTime
		m.IsHealthy = false
		return
	}
	m.IsHealthy = true
}

// CycleSkipped records a cycle that found nothing to analyse. It counts as
// a run but leaves the health state and last error alone.
func (m *Metrics) CycleSkipped(country string, d time.Duration) {
	m.cycles.WithLabelValues(country, "skipped").Inc()
	m.cycleDuration.WithLabelValues(country).Observe(d.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalCycles++
	m.SkippedCycles++
	m.LastProcessingTime = d
	m.TotalProcessingTime += d
	m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.TotalCycles)
	m.LastRunTime = time.Now()
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := map[string]interface{}{
		"total_cycles":               m.TotalCycles,
		"failed_cycles":              m.FailedCycles,
		"skipped_cycles":             m.SkippedCycles,
		"logs_written":               m.LogsWritten,
		"audio_written":              m.AudioWritten,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
	if !m.LastRunTime.IsZero() {
		stats["last_run_time"] = m.LastRunTime.Format(time.RFC3339)
	}
	if !m.LastErrorTime.IsZero() {
		stats["last_error_time"] = m.LastErrorTime.Format(time.RFC3339)
	}
	return stats
}
