package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline stage metrics
	stageRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lecture_notes_stage_requests_total",
		Help: "Pipeline stage invocations by outcome",
	}, []string{"stage", "status"})

	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lecture_notes_stage_latency_seconds",
		Help:    "Pipeline stage latency in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	// Model fallback metrics
	modelAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lecture_notes_model_attempts_total",
		Help: "Language model attempts by chain, model and outcome",
	}, []string{"chain", "model", "outcome"})

	// Preflight metrics
	preflightRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lecture_notes_preflight_rejections_total",
		Help: "Audio resources rejected before job submission",
	}, []string{"reason"})

	// Fact-check metrics
	factCheckItems = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lecture_notes_fact_check_items",
		Help:    "Fact-check items kept after sanitization",
		Buckets: []float64{0, 1, 2, 3, 5, 10},
	})

	// Idempotency guard hits
	completionsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lecture_notes_completions_skipped_total",
		Help: "Completion requests skipped because the lecture was already completed",
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lecture_notes_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lecture_notes_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// StageTimer tracks one pipeline stage invocation
type StageTimer struct {
	stage string
	start time.Time
}

// StartStage records the start of a pipeline stage
func StartStage(stage string) *StageTimer {
	return &StageTimer{stage: stage, start: time.Now()}
}

// End records the outcome and latency of the stage
func (t *StageTimer) End(err error) {
	stageLatency.WithLabelValues(t.stage).Observe(time.Since(t.start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	stageRequests.WithLabelValues(t.stage, status).Inc()
}

// RecordModelAttempt records one model attempt in a fallback chain
func RecordModelAttempt(chain, model, outcome string) {
	modelAttempts.WithLabelValues(chain, model, outcome).Inc()
}

// RecordPreflightRejection records a rejected audio resource
func RecordPreflightRejection(reason string) {
	preflightRejections.WithLabelValues(reason).Inc()
}

// RecordFactCheckItems records how many fact-check items survived sanitization
func RecordFactCheckItems(n int) {
	factCheckItems.Observe(float64(n))
}

// RecordCompletionSkipped records an idempotency guard hit
func RecordCompletionSkipped() {
	completionsSkipped.Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
