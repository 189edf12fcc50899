package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for canvass. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Answer flow metrics
	SessionsStarted    *prometheus.CounterVec
	AnswersRecorded    *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	Submissions        *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec

	// Backend metrics
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	StoredResponses  *prometheus.CounterVec
	PriorCacheLookup *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		SessionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvass_sessions_started_total",
				Help: "Total number of questionnaire sessions started",
			},
			[]string{"questionnaire"},
		),
		AnswersRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvass_answers_recorded_total",
				Help: "Total number of answer edits by question category",
			},
			[]string{"category"},
		),
		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvass_validation_failures_total",
				Help: "Total number of blocked advances due to invalid answers",
			},
			[]string{"questionnaire"},
		),
		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvass_submissions_total",
				Help: "Total number of finalize attempts",
			},
			[]string{"questionnaire", "success"},
		),
		SubmissionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "canvass_submission_duration_seconds",
				Help:    "Time spent handing responses to the submission sink",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"questionnaire"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvass_http_requests_total",
				Help: "Total number of backend HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "canvass_http_request_duration_seconds",
				Help:    "Backend HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		StoredResponses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvass_stored_responses_total",
				Help: "Total number of responses persisted by the backend",
			},
			[]string{"questionnaire"},
		),
		PriorCacheLookup: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvass_prior_cache_lookups_total",
				Help: "Prior response cache lookups by result",
			},
			[]string{"result"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "canvass_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// RecordSessionStart counts a new answering session
func (m *Metrics) RecordSessionStart(questionnaireID int) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(strconv.Itoa(questionnaireID)).Inc()
}

// RecordAnswer counts one answer edit
func (m *Metrics) RecordAnswer(category string) {
	if m == nil {
		return
	}
	m.AnswersRecorded.WithLabelValues(category).Inc()
}

// RecordValidationFailure counts one blocked advance
func (m *Metrics) RecordValidationFailure(questionnaireID int) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(strconv.Itoa(questionnaireID)).Inc()
}

// RecordSubmission records a finalize attempt and its duration
func (m *Metrics) RecordSubmission(questionnaireID int, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	id := strconv.Itoa(questionnaireID)
	m.Submissions.WithLabelValues(id, strconv.FormatBool(success)).Inc()
	m.SubmissionDuration.WithLabelValues(id).Observe(duration.Seconds())
}

// RecordHTTPRequest records a served backend request
func (m *Metrics) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordStoredResponses counts persisted responses
func (m *Metrics) RecordStoredResponses(questionnaireID, count int) {
	if m == nil {
		return
	}
	m.StoredResponses.WithLabelValues(strconv.Itoa(questionnaireID)).Add(float64(count))
}

// RecordCacheLookup records a prior-response cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.PriorCacheLookup.WithLabelValues(result).Inc()
}

// RecordError counts an error by code and component
func (m *Metrics) RecordError(code, component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(code, component).Inc()
}
