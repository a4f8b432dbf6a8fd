package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/memory"
	"timed-quiz-service/internal/telemetry"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	server  *httptest.Server
	service *app.QuizService
	store   *memory.Store
}

func newTestEnv(t *testing.T, opts RouterOptions) *testEnv {
	t.Helper()
	store := memory.NewStore()
	service := app.NewQuizService(app.Deps{
		Quizzes:   store,
		Attempts:  store,
		Requests:  store,
		Reports:   store,
		Gate:      memory.NewAccessGate(),
		Standings: memory.NewStandingsCache(store, 10, time.Minute),
		Feeds:     memory.NewFeedStore(),
		Now:       func() time.Time { return now },
	})
	api := NewAPI(service, nil, nil)
	server := httptest.NewServer(NewRouter(api, NewFeedHandler(service, nil), opts))
	t.Cleanup(server.Close)
	return &testEnv{server: server, service: service, store: store}
}

type caller struct {
	userID  string
	session string
	staff   bool
}

func (e *testEnv) do(t *testing.T, c caller, method, path string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userID != "" {
		req.Header.Set(headerUserID, c.userID)
		req.Header.Set(headerUsername, "name-"+c.userID)
	}
	if c.session != "" {
		req.Header.Set(headerSessionID, c.session)
	}
	if c.staff {
		req.Header.Set(headerStaff, "true")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) createQuiz(t *testing.T, token string, start, end time.Time) domain.Quiz {
	t.Helper()
	req := createQuizRequest{
		Title:       "Arithmetic",
		StartTime:   start,
		EndTime:     end,
		Duration:    10,
		AccessToken: token,
		Questions: []questionInput{
			{Text: "2 + 2?", Marks: 2, Options: []optionInput{{Text: "3"}, {Text: "4", Correct: true}}},
			{Text: "3 + 3?", Marks: 1, Options: []optionInput{{Text: "6", Correct: true}, {Text: "7"}}},
		},
	}
	var quiz domain.Quiz
	if code := e.do(t, caller{userID: "staff", staff: true}, http.MethodPost, "/quizzes", req, &quiz); code != http.StatusCreated {
		t.Fatalf("create quiz: status %d", code)
	}
	return quiz
}

func optionID(t *testing.T, q *app.QuestionView, text string) string {
	t.Helper()
	for _, opt := range q.Options {
		if opt.Text == text {
			return opt.ID
		}
	}
	t.Fatalf("option %q not served", text)
	return ""
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})
	quiz := env.createQuiz(t, "", now.Add(-time.Hour), now.Add(time.Hour))
	alice := caller{userID: "alice", session: "s-alice"}
	base := "/quizzes/" + quiz.ID

	var detail app.Detail
	if code := env.do(t, alice, http.MethodGet, base, nil, &detail); code != http.StatusOK {
		t.Fatalf("detail: status %d", code)
	}
	if detail.State != domain.AttemptNotStarted || detail.TotalMarks != 3 || !detail.HasAccess {
		t.Fatalf("unexpected detail %+v", detail)
	}

	var step app.Step
	if code := env.do(t, alice, http.MethodPost, base+"/start", nil, &step); code != http.StatusOK {
		t.Fatalf("start: status %d", code)
	}
	if step.Next != app.NextQuestion || step.Question.Order != 1 || step.Question.RemainingSeconds != 600 {
		t.Fatalf("unexpected start step %+v", step)
	}

	answer := app.AnswerPayload{OptionID: optionID(t, step.Question, "4")}
	step = app.Step{}
	if code := env.do(t, alice, http.MethodPost, base+"/questions/1", answer, &step); code != http.StatusOK {
		t.Fatalf("answer 1: status %d", code)
	}
	if step.Next != app.NextQuestion || !step.Recorded || step.Question.Order != 2 {
		t.Fatalf("unexpected step after first answer %+v", step)
	}

	answer = app.AnswerPayload{OptionID: optionID(t, step.Question, "7")}
	step = app.Step{}
	if code := env.do(t, alice, http.MethodPost, base+"/questions/2", answer, &step); code != http.StatusOK {
		t.Fatalf("answer 2: status %d", code)
	}
	if step.Next != app.NextFinish || step.Result == nil {
		t.Fatalf("expected finish after last question, got %+v", step)
	}
	if step.Result.Score != 2 || step.Result.Correct != 1 || step.Result.Incorrect != 1 || step.Result.Percentage < 66 {
		t.Fatalf("unexpected result %+v", step.Result)
	}

	var lb domain.Leaderboard
	if code := env.do(t, alice, http.MethodGet, base+"/leaderboard", nil, &lb); code != http.StatusOK {
		t.Fatalf("leaderboard: status %d", code)
	}
	if len(lb.Entries) != 1 || lb.YourRank != 1 || lb.Entries[0].Username != "name-alice" {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}

	var status domain.Status
	if code := env.do(t, caller{}, http.MethodGet, base+"/status", nil, &status); code != http.StatusOK {
		t.Fatalf("status: status %d", code)
	}
	if status.Phase != domain.PhaseOngoing || len(status.Leaderboard) != 1 || !status.ServerTime.Equal(now) {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestServiceErrorsMapToStatusCodes(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})
	future := env.createQuiz(t, "", now.Add(time.Hour), now.Add(2*time.Hour))
	bob := caller{userID: "bob"}

	if code := env.do(t, caller{}, http.MethodPost, "/quizzes/"+future.ID+"/start", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous start: expected 401, got %d", code)
	}
	if code := env.do(t, bob, http.MethodPost, "/quizzes", createQuizRequest{}, nil); code != http.StatusForbidden {
		t.Fatalf("non-staff create: expected 403, got %d", code)
	}
	if code := env.do(t, bob, http.MethodGet, "/quizzes/missing", nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown quiz: expected 404, got %d", code)
	}
	if code := env.do(t, bob, http.MethodPost, "/quizzes/"+future.ID+"/start", nil, nil); code != http.StatusNotFound {
		t.Fatalf("start before visiting: expected 404, got %d", code)
	}

	env.do(t, bob, http.MethodPost, "/quizzes/"+future.ID+"/join", nil, nil)
	var notActive notActiveResponse
	if code := env.do(t, bob, http.MethodPost, "/quizzes/"+future.ID+"/start", nil, &notActive); code != http.StatusForbidden {
		t.Fatalf("scheduled quiz: expected 403, got %d", code)
	}
	if notActive.Status != domain.PhaseScheduled || !notActive.ServerTime.Equal(now) {
		t.Fatalf("unexpected not-active payload %+v", notActive)
	}

	if code := env.do(t, bob, http.MethodPost, "/quizzes/"+future.ID+"/reattempts", reattemptRequest{Reason: "again"}, nil); code != http.StatusConflict {
		t.Fatalf("request before finishing: expected 409, got %d", code)
	}

	invalid := createQuizRequest{Title: "Broken", StartTime: now, EndTime: now.Add(-time.Minute), Duration: 5}
	if code := env.do(t, caller{staff: true}, http.MethodPost, "/quizzes", invalid, nil); code != http.StatusBadRequest {
		t.Fatalf("invalid quiz: expected 400, got %d", code)
	}
}

func TestAccessTokenGate(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})
	quiz := env.createQuiz(t, "open-sesame", now.Add(-time.Hour), now.Add(time.Hour))
	carol := caller{userID: "carol", session: "s-carol"}
	base := "/quizzes/" + quiz.ID

	var detail app.Detail
	env.do(t, carol, http.MethodGet, base, nil, &detail)
	if detail.HasAccess {
		t.Fatalf("expected locked quiz")
	}
	if code := env.do(t, carol, http.MethodPost, base+"/start", nil, nil); code != http.StatusForbidden {
		t.Fatalf("locked start: expected 403, got %d", code)
	}
	if code := env.do(t, carol, http.MethodPost, base+"/unlock", unlockRequest{Token: "wrong"}, nil); code != http.StatusForbidden {
		t.Fatalf("wrong token: expected 403, got %d", code)
	}
	if code := env.do(t, carol, http.MethodPost, base+"/unlock", unlockRequest{Token: " open-sesame "}, nil); code != http.StatusOK {
		t.Fatalf("unlock: expected 200, got %d", code)
	}
	if code := env.do(t, carol, http.MethodPost, base+"/start", nil, nil); code != http.StatusOK {
		t.Fatalf("unlocked start: expected 200, got %d", code)
	}

	other := caller{userID: "carol", session: "s-other"}
	if code := env.do(t, other, http.MethodPost, base+"/start", nil, nil); code != http.StatusForbidden {
		t.Fatalf("other session: expected 403, got %d", code)
	}
}

func TestReattemptDecisionOverHTTP(t *testing.T) {
	env := newTestEnv(t, RouterOptions{})
	quiz := env.createQuiz(t, "", now.Add(-time.Hour), now.Add(time.Hour))
	dave := caller{userID: "dave"}
	staff := caller{userID: "mod", staff: true}
	base := "/quizzes/" + quiz.ID

	env.do(t, dave, http.MethodPost, base+"/join", nil, nil)
	env.do(t, dave, http.MethodPost, base+"/start", nil, nil)
	env.do(t, dave, http.MethodPost, base+"/finish", nil, nil)

	var req domain.ReattemptRequest
	if code := env.do(t, dave, http.MethodPost, base+"/reattempts", reattemptRequest{Reason: "network"}, &req); code != http.StatusCreated {
		t.Fatalf("request: status %d", code)
	}
	if code := env.do(t, dave, http.MethodPost, base+"/reattempts", reattemptRequest{}, nil); code != http.StatusConflict {
		t.Fatalf("second request: expected 409, got %d", code)
	}

	var dashboard app.Dashboard
	if code := env.do(t, staff, http.MethodGet, "/admin/dashboard", nil, &dashboard); code != http.StatusOK {
		t.Fatalf("dashboard: status %d", code)
	}
	if len(dashboard.Pending) != 1 || dashboard.Pending[0].ID != req.ID {
		t.Fatalf("expected pending request on dashboard, got %+v", dashboard.Pending)
	}

	var decided domain.ReattemptRequest
	if code := env.do(t, staff, http.MethodPost, "/reattempts/"+req.ID+"/decision", decisionRequest{Approve: true}, &decided); code != http.StatusOK {
		t.Fatalf("decide: status %d", code)
	}
	if decided.Status != domain.RequestApproved || decided.ProcessedBy != "name-mod" {
		t.Fatalf("unexpected decision %+v", decided)
	}
	if code := env.do(t, staff, http.MethodPost, "/reattempts/"+req.ID+"/decision", decisionRequest{Approve: true}, nil); code != http.StatusNotFound {
		t.Fatalf("second decision: expected 404, got %d", code)
	}

	var detail app.Detail
	env.do(t, dave, http.MethodGet, base, nil, &detail)
	if detail.State != domain.AttemptNotStarted || detail.Notice == nil || detail.Notice.Level != "success" {
		t.Fatalf("expected fresh attempt with approval notice, got %+v", detail)
	}
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	env := newTestEnv(t, RouterOptions{Limiter: NewRateLimiter(0.001, 2)})
	quiz := env.createQuiz(t, "", now.Add(-time.Hour), now.Add(time.Hour))
	poller := caller{session: "poller"}

	for i := 0; i < 2; i++ {
		if code := env.do(t, poller, http.MethodGet, "/quizzes/"+quiz.ID+"/status", nil, nil); code != http.StatusOK {
			t.Fatalf("poll %d within burst: status %d", i, code)
		}
	}
	if code := env.do(t, poller, http.MethodGet, "/quizzes/"+quiz.ID+"/status", nil, nil); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the burst is spent, got %d", code)
	}
	if code := env.do(t, caller{session: "other"}, http.MethodGet, "/quizzes/"+quiz.ID+"/status", nil, nil); code != http.StatusOK {
		t.Fatalf("other client should not be limited, got %d", code)
	}
	if code := env.do(t, poller, http.MethodGet, "/quizzes/"+quiz.ID+"/leaderboard", nil, nil); code != http.StatusOK {
		t.Fatalf("only the status route is limited, leaderboard got %d", code)
	}
}

func TestMetricsEndpointCountsRoutes(t *testing.T) {
	registry := prometheus.NewRegistry()
	env := newTestEnv(t, RouterOptions{Metrics: telemetry.NewMetrics(registry), Gatherer: registry})
	quiz := env.createQuiz(t, "", now.Add(-time.Hour), now.Add(time.Hour))
	env.do(t, caller{}, http.MethodGet, "/quizzes/"+quiz.ID+"/status", nil, nil)

	resp, err := http.Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	if !strings.Contains(text, `endpoint="GET /quizzes/{id}/status"`) {
		t.Fatalf("expected status route in metrics, got:\n%s", text)
	}
	if !strings.Contains(text, "quiz_attempts_started_total") {
		t.Fatalf("expected quiz counters in metrics")
	}
}
