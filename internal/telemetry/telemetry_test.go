package telemetry

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zapcore"
	"timed-quiz-service/internal/domain"
)

func TestMetricsObserveQuizEvents(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.AttemptStarted("quiz-1")
	m.AttemptFinished("quiz-1", true)
	m.AttemptFinished("quiz-1", false)
	m.AnswerRecorded(domain.QuestionMCQ)
	m.RequestDecided(domain.RequestApproved)

	if got := testutil.ToFloat64(m.attemptsStarted); got != 1 {
		t.Fatalf("started: got %v", got)
	}
	if got := testutil.ToFloat64(m.attemptsFinished.WithLabelValues("true")); got != 1 {
		t.Fatalf("finished time_up=true: got %v", got)
	}
	if got := testutil.ToFloat64(m.answers.WithLabelValues("mcq")); got != 1 {
		t.Fatalf("answers mcq: got %v", got)
	}
	if got := testutil.ToFloat64(m.decisions.WithLabelValues("approved")); got != 1 {
		t.Fatalf("decisions approved: got %v", got)
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /quizzes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := m.Middleware(mux)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quizzes/"+id, nil))
	}

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "GET /quizzes/{id}", "418")); got != 2 {
		t.Fatalf("expected two requests under one pattern, got %v", got)
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "quiz.log")
	log := NewLogger(LogOptions{Level: "debug", File: file})
	log.Debug("hello")
	_ = log.Sync()

	if !log.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level enabled")
	}
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("expected log file: %v", err)
	}
}
