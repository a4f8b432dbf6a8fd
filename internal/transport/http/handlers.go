package http

import (
	"net/http"
	"strings"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

func (a *API) HandleListQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.quizzes.ListQuizzes(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if quizzes == nil {
		quizzes = []domain.Quiz{}
	}
	writeJSON(w, http.StatusOK, quizListResponse{Quizzes: quizzes})
}

func (a *API) HandleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	quiz, questions := req.toDomain()
	created, err := a.quizzes.CreateQuiz(r.Context(), quiz, questions)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) HandleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	if err := a.quizzes.DeleteQuiz(r.Context(), r.PathValue("id")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) HandleDetail(w http.ResponseWriter, r *http.Request) {
	p, _ := participantFrom(r)
	detail, err := a.quizzes.Detail(r.Context(), r.PathValue("id"), p)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.Header.Get(headerSessionID))
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing " + headerSessionID + " header"})
		return
	}
	var req unlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.quizzes.Unlock(r.Context(), r.PathValue("id"), sessionID, req.Token); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"unlocked": true})
}

func (a *API) HandleJoin(w http.ResponseWriter, r *http.Request) {
	p, _ := participantFrom(r)
	attempt, err := a.quizzes.EnsureAttempt(r.Context(), r.PathValue("id"), p)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) HandleStart(w http.ResponseWriter, r *http.Request) {
	p, _ := participantFrom(r)
	step, err := a.quizzes.Start(r.Context(), r.PathValue("id"), p)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (a *API) HandleQuestion(w http.ResponseWriter, r *http.Request) {
	order, ok := pathOrder(w, r)
	if !ok {
		return
	}
	p, _ := participantFrom(r)
	step, err := a.quizzes.Question(r.Context(), r.PathValue("id"), p, order)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (a *API) HandleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	order, ok := pathOrder(w, r)
	if !ok {
		return
	}
	var payload app.AnswerPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	p, _ := participantFrom(r)
	step, err := a.quizzes.SubmitAnswer(r.Context(), r.PathValue("id"), p, order, payload)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (a *API) HandleFinish(w http.ResponseWriter, r *http.Request) {
	p, _ := participantFrom(r)
	result, err := a.quizzes.Finish(r.Context(), r.PathValue("id"), p)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleLeaderboard works anonymously; an identified caller also gets their rank.
func (a *API) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	p, _ := participantFrom(r)
	lb, err := a.quizzes.Leaderboard(r.Context(), r.PathValue("id"), p.UserID)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if lb.Entries == nil {
		lb.Entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, lb)
}

func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.quizzes.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if status.Leaderboard == nil {
		status.Leaderboard = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) HandleRequestReattempt(w http.ResponseWriter, r *http.Request) {
	var req reattemptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, _ := participantFrom(r)
	created, err := a.quizzes.RequestReattempt(r.Context(), r.PathValue("id"), p, req.Reason)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) HandleDecideReattempt(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	decided, err := a.quizzes.DecideReattempt(r.Context(), r.PathValue("id"), req.Approve, staffName(r))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decided)
}

func (a *API) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := a.quizzes.Dashboard(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (a *API) HandleGenerateDraft(w http.ResponseWriter, r *http.Request) {
	if a.drafts == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "draft generation is not configured"})
		return
	}
	var prompt domain.DraftPrompt
	if !decodeJSON(w, r, &prompt) {
		return
	}
	draft, err := a.drafts.Generate(r.Context(), prompt)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (a *API) HandleIngestDraft(w http.ResponseWriter, r *http.Request) {
	if a.drafts == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "draft generation is not configured"})
		return
	}
	var req app.IngestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	quiz, err := a.drafts.Ingest(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}
