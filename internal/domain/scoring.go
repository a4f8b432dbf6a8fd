package domain

import (
	"sort"
)

// ServedQuestions returns the truncated ordered set: questions sorted by Order,
// limited to the first maxQuestions when that is positive. The input is not modified.
func ServedQuestions(questions []Question, maxQuestions int) []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	if maxQuestions > 0 && maxQuestions < len(out) {
		out = out[:maxQuestions]
	}
	return out
}

// TotalMarks sums marks over the served set. It is never cached.
func TotalMarks(served []Question) int {
	total := 0
	for _, q := range served {
		total += q.Marks
	}
	return total
}

// IndexOfOrder finds the position of the question with the given order in the served set.
func IndexOfOrder(served []Question, order int) int {
	for i, q := range served {
		if q.Order == order {
			return i
		}
	}
	return -1
}

// AwardMarks derives marks for an answer from the question alone; callers
// never supply marks. Free-text answers are never auto-scored.
func AwardMarks(q Question, selectedOptionID string) int {
	if q.Type != QuestionMCQ || selectedOptionID == "" {
		return 0
	}
	opt, ok := q.Option(selectedOptionID)
	if !ok || !opt.Correct {
		return 0
	}
	return q.Marks
}

// Percentage is score over total marks, 0 when the quiz carries no marks.
func Percentage(score, totalMarks int) float64 {
	if totalMarks <= 0 {
		return 0
	}
	return float64(score) / float64(totalMarks) * 100
}

// RankFinished orders finished attempts by score desc, then earlier finish.
// Unfinished attempts are dropped.
func RankFinished(attempts []Attempt) []LeaderboardEntry {
	finished := make([]Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.FinishedAt != nil {
			finished = append(finished, a)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool {
		if finished[i].Score != finished[j].Score {
			return finished[i].Score > finished[j].Score
		}
		if !finished[i].FinishedAt.Equal(*finished[j].FinishedAt) {
			return finished[i].FinishedAt.Before(*finished[j].FinishedAt)
		}
		return finished[i].UserID < finished[j].UserID
	})

	entries := make([]LeaderboardEntry, 0, len(finished))
	for i, a := range finished {
		entries = append(entries, LeaderboardEntry{
			Rank:       i + 1,
			UserID:     a.UserID,
			Username:   a.Username,
			Score:      a.Score,
			FinishedAt: *a.FinishedAt,
		})
	}
	return entries
}
