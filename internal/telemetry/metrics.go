package telemetry

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"timed-quiz-service/internal/domain"
)

// Metrics counts quiz events and HTTP traffic. It implements app.Observer.
type Metrics struct {
	attemptsStarted  prometheus.Counter
	attemptsFinished *prometheus.CounterVec
	answers          *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Attempts whose timer was started",
		}),
		attemptsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_attempts_finished_total",
			Help: "Attempts finished, split by whether time ran out",
		}, []string{"time_up"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_answers_recorded_total",
			Help: "Answers recorded by question type",
		}, []string{"type"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_reattempt_decisions_total",
			Help: "Re-attempt requests decided by staff",
		}, []string{"status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "endpoint"}),
	}
	reg.MustRegister(m.attemptsStarted, m.attemptsFinished, m.answers, m.decisions, m.requests, m.duration)
	return m
}

func (m *Metrics) AttemptStarted(string) { m.attemptsStarted.Inc() }

func (m *Metrics) AttemptFinished(_ string, timeUp bool) {
	m.attemptsFinished.WithLabelValues(strconv.FormatBool(timeUp)).Inc()
}

func (m *Metrics) AnswerRecorded(qtype domain.QuestionType) {
	m.answers.WithLabelValues(string(qtype)).Inc()
}

func (m *Metrics) RequestDecided(status domain.RequestStatus) {
	m.decisions.WithLabelValues(string(status)).Inc()
}

// Middleware records request counts and latency. The endpoint label is the
// matched route pattern so path IDs do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requests.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
