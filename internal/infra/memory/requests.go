package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

func (s *Store) CreateRequest(_ context.Context, req domain.ReattemptRequest) (domain.ReattemptRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.requests {
		if r.QuizID == req.QuizID && r.UserID == req.UserID && r.Open() {
			return domain.ReattemptRequest{}, domain.ErrRequestOpen
		}
	}
	req.ID = uuid.NewString()
	s.requests = append(s.requests, req)
	return req, nil
}

func (s *Store) LatestRequest(_ context.Context, quizID, userID string) (domain.ReattemptRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.latestLocked(quizID, userID, func(domain.ReattemptRequest) bool { return true }); i >= 0 {
		return s.requests[i], nil
	}
	return domain.ReattemptRequest{}, domain.ErrRequestNotFound
}

func (s *Store) MarkRequestUsed(_ context.Context, quizID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.latestLocked(quizID, userID, func(r domain.ReattemptRequest) bool {
		return r.Status == domain.RequestApproved && !r.Used
	})
	if i < 0 {
		return false, nil
	}
	s.requests[i].Used = true
	return true, nil
}

func (s *Store) MarkRequestNotified(_ context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.requests {
		if s.requests[i].ID != requestID {
			continue
		}
		if s.requests[i].UserNotified {
			return false, nil
		}
		s.requests[i].UserNotified = true
		return true, nil
	}
	return false, domain.ErrRequestNotFound
}

func (s *Store) DecideRequest(_ context.Context, requestID string, decision domain.Decision) (domain.ReattemptRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i := range s.requests {
		if s.requests[i].ID == requestID && s.requests[i].Status == domain.RequestPending {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ReattemptRequest{}, domain.ErrRequestNotFound
	}

	req := s.requests[idx]
	decidedAt := decision.DecidedAt
	req.ProcessedAt = &decidedAt
	req.ProcessedBy = decision.Actor
	req.UserNotified = false
	req.Used = false
	if decision.Approve {
		req.Status = domain.RequestApproved
		req.AttemptID = ""
	} else {
		req.Status = domain.RequestRejected
	}
	s.requests[idx] = req

	if decision.Approve {
		key := attemptKey{quizID: req.QuizID, userID: req.UserID}
		if id, ok := s.byKey[key]; ok {
			s.deleteAttemptLocked(key, id)
		}
	}
	return req, nil
}

func (s *Store) ListRequests(_ context.Context, status domain.RequestStatus, limit int) ([]domain.ReattemptRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ReattemptRequest
	for _, r := range s.requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if status == domain.RequestPending || out[i].ProcessedAt == nil || out[j].ProcessedAt == nil {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ProcessedAt.After(*out[j].ProcessedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// latestLocked returns the index of the newest matching request, or -1.
func (s *Store) latestLocked(quizID, userID string, match func(domain.ReattemptRequest) bool) int {
	found := -1
	for i, r := range s.requests {
		if r.QuizID != quizID || r.UserID != userID || !match(r) {
			continue
		}
		if found < 0 || !r.CreatedAt.Before(s.requests[found].CreatedAt) {
			found = i
		}
	}
	return found
}

func (s *Store) Standings(_ context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := domain.RankFinished(s.finishedLocked(quizID))
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) UserStats(_ context.Context, limit int) ([]app.UserStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byUser := make(map[string]*app.UserStat)
	for _, a := range s.attempts {
		stat, ok := byUser[a.Username]
		if !ok {
			stat = &app.UserStat{Username: a.Username}
			byUser[a.Username] = stat
		}
		stat.QuizzesTaken++
		stat.TotalScore += a.Score
	}
	out := make([]app.UserStat, 0, len(byUser))
	for _, stat := range byUser {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuizzesTaken != out[j].QuizzesTaken {
			return out[i].QuizzesTaken > out[j].QuizzesTaken
		}
		return out[i].Username < out[j].Username
	})
	return truncate(out, limit), nil
}

func (s *Store) QuizStats(_ context.Context, limit int) ([]app.QuizStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]app.QuizStat, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		stat := app.QuizStat{QuizID: q.ID, Title: q.Title, StartTime: q.StartTime}
		for key, id := range s.byKey {
			if key.quizID == q.ID {
				stat.Attempts++
				stat.TotalScore += s.attempts[id].Score
			}
		}
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return truncate(out, limit), nil
}

func (s *Store) RecentAttempts(_ context.Context, limit int) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	return truncate(out, limit), nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
