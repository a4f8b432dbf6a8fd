package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

const (
	headerUserID    = "X-User-ID"
	headerUsername  = "X-Username"
	headerSessionID = "X-Session-ID"
	headerStaff     = "X-Staff"
)

type participantKey struct{}

// participant requires an upstream-authenticated user and stores it on the request context.
func (a *API) participant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := participantFrom(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + headerUserID + " header"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), participantKey{}, p)))
	}
}

func (a *API) staffOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isStaff(r) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "staff only"})
			return
		}
		next(w, r)
	}
}

func participantFrom(r *http.Request) (app.Participant, bool) {
	if p, ok := r.Context().Value(participantKey{}).(app.Participant); ok {
		return p, true
	}
	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	if userID == "" {
		return app.Participant{}, false
	}
	username := strings.TrimSpace(r.Header.Get(headerUsername))
	if username == "" {
		username = userID
	}
	return app.Participant{
		UserID:    userID,
		Username:  username,
		SessionID: strings.TrimSpace(r.Header.Get(headerSessionID)),
	}, true
}

func isStaff(r *http.Request) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.Header.Get(headerStaff)))
	return err == nil && v
}

// staffName is the actor recorded on staff decisions.
func staffName(r *http.Request) string {
	if name := strings.TrimSpace(r.Header.Get(headerUsername)); name != "" {
		return name
	}
	if id := strings.TrimSpace(r.Header.Get(headerUserID)); id != "" {
		return id
	}
	return "staff"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func pathOrder(w http.ResponseWriter, r *http.Request) (int, bool) {
	order, err := strconv.Atoi(r.PathValue("order"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "order must be an integer"})
		return 0, false
	}
	return order, true
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrQuizNotActive):
		a.writeNotActive(w, r)
	case errors.Is(err, domain.ErrAccessLocked), errors.Is(err, domain.ErrInvalidToken):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidRequestState):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidQuiz):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrGenerationFailed):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		a.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
	}
}

// writeNotActive answers a schedule rejection with the phase the quiz is in.
func (a *API) writeNotActive(w http.ResponseWriter, r *http.Request) {
	resp := notActiveResponse{Error: domain.ErrQuizNotActive.Error()}
	if status, err := a.quizzes.Status(r.Context(), r.PathValue("id")); err == nil {
		resp.Status = status.Phase
		resp.ServerTime = status.ServerTime
	}
	writeJSON(w, http.StatusForbidden, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
