package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/telemetry"
)

// API exposes the quiz use cases as JSON over HTTP.
type API struct {
	quizzes *app.QuizService
	drafts  *app.DraftService
	log     *zap.Logger
}

func NewAPI(quizzes *app.QuizService, drafts *app.DraftService, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{quizzes: quizzes, drafts: drafts, log: log}
}

// RouterOptions holds the optional middleware. Nil fields are skipped. The
// limiter guards the polled status route only.
type RouterOptions struct {
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer
	Limiter  *RateLimiter
}

// NewRouter registers every route on one mux and wraps it with the configured middleware.
func NewRouter(api *API, feed *FeedHandler, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("GET /quizzes", api.HandleListQuizzes)
	mux.HandleFunc("POST /quizzes", api.staffOnly(api.HandleCreateQuiz))
	mux.HandleFunc("DELETE /quizzes/{id}", api.staffOnly(api.HandleDeleteQuiz))
	mux.HandleFunc("GET /quizzes/{id}", api.participant(api.HandleDetail))
	mux.HandleFunc("POST /quizzes/{id}/unlock", api.HandleUnlock)
	mux.HandleFunc("POST /quizzes/{id}/join", api.participant(api.HandleJoin))
	mux.HandleFunc("POST /quizzes/{id}/start", api.participant(api.HandleStart))
	mux.HandleFunc("GET /quizzes/{id}/questions/{order}", api.participant(api.HandleQuestion))
	mux.HandleFunc("POST /quizzes/{id}/questions/{order}", api.participant(api.HandleSubmitAnswer))
	mux.HandleFunc("POST /quizzes/{id}/finish", api.participant(api.HandleFinish))
	mux.HandleFunc("GET /quizzes/{id}/leaderboard", api.HandleLeaderboard)
	status := http.HandlerFunc(api.HandleStatus)
	if opts.Limiter != nil {
		status = opts.Limiter.Limit(status)
	}
	mux.HandleFunc("GET /quizzes/{id}/status", status)
	mux.HandleFunc("POST /quizzes/{id}/reattempts", api.participant(api.HandleRequestReattempt))
	mux.HandleFunc("POST /reattempts/{id}/decision", api.staffOnly(api.HandleDecideReattempt))
	mux.HandleFunc("GET /admin/dashboard", api.staffOnly(api.HandleDashboard))
	mux.HandleFunc("POST /drafts", api.staffOnly(api.HandleGenerateDraft))
	mux.HandleFunc("POST /drafts/ingest", api.staffOnly(api.HandleIngestDraft))
	if feed != nil {
		mux.HandleFunc("GET /quizzes/{id}/feed", feed.ServeWS)
	}

	var handler http.Handler = mux
	if opts.Metrics != nil {
		handler = opts.Metrics.Middleware(handler)
	}
	return handler
}
