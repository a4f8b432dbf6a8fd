package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/domain"
)

// Reports serves the read-only projections straight from a pgx pool.
type Reports struct {
	pool *pgxpool.Pool
}

func NewReports(pool *pgxpool.Pool) *Reports {
	return &Reports{pool: pool}
}

var _ app.ReportStore = (*Reports)(nil)

// Standings ranks finished attempts; the query order matches domain.RankFinished.
func (r *Reports) Standings(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quiz_id, user_id, username, finished_at, score
		FROM attempts
		WHERE quiz_id = $1 AND finished_at IS NOT NULL
		ORDER BY score DESC, finished_at ASC, user_id ASC
		LIMIT $2`, quizID, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("query standings: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Username, &a.FinishedAt, &a.Score); err != nil {
			return nil, fmt.Errorf("scan standings: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read standings: %w", err)
	}
	return domain.RankFinished(attempts), nil
}

func (r *Reports) UserStats(ctx context.Context, limit int) ([]app.UserStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT username, COUNT(*), COALESCE(SUM(score), 0)
		FROM attempts
		GROUP BY username
		ORDER BY COUNT(*) DESC, username ASC
		LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("query user stats: %w", err)
	}
	defer rows.Close()

	out := []app.UserStat{}
	for rows.Next() {
		var s app.UserStat
		if err := rows.Scan(&s.Username, &s.QuizzesTaken, &s.TotalScore); err != nil {
			return nil, fmt.Errorf("scan user stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Reports) QuizStats(ctx context.Context, limit int) ([]app.QuizStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.id, q.title, q.start_time, COUNT(a.id), COALESCE(SUM(a.score), 0)
		FROM quizzes q
		LEFT JOIN attempts a ON a.quiz_id = q.id
		GROUP BY q.id, q.title, q.start_time
		ORDER BY q.start_time DESC
		LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("query quiz stats: %w", err)
	}
	defer rows.Close()

	out := []app.QuizStat{}
	for rows.Next() {
		var s app.QuizStat
		if err := rows.Scan(&s.QuizID, &s.Title, &s.StartTime, &s.Attempts, &s.TotalScore); err != nil {
			return nil, fmt.Errorf("scan quiz stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Reports) RecentAttempts(ctx context.Context, limit int) ([]domain.Attempt, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quiz_id, user_id, username, joined_at, started_at, allowed_finish_at, finished_at, score
		FROM attempts
		ORDER BY joined_at DESC
		LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent attempts: %w", err)
	}
	defer rows.Close()

	out := []domain.Attempt{}
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Username, &a.JoinedAt,
			&a.StartedAt, &a.AllowedFinishAt, &a.FinishedAt, &a.Score); err != nil {
			return nil, fmt.Errorf("scan recent attempts: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// limitArg turns a non-positive limit into NULL, which Postgres reads as no limit.
func limitArg(limit int) interface{} {
	if limit <= 0 {
		return nil
	}
	return limit
}
