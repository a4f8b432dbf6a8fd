package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"timed-quiz-service/internal/domain"
)

const openRequestFilter = "status = 'pending' OR (status = 'approved' AND NOT used)"

// CreateRequest serializes creators of the same (quiz, user) pair with a
// transaction-scoped advisory lock before checking for an open request.
func (s *Store) CreateRequest(ctx context.Context, req domain.ReattemptRequest) (domain.ReattemptRequest, error) {
	req.ID = uuid.NewString()
	row := requestRowFrom(req)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", req.QuizID+"/"+req.UserID); err != nil {
			return err
		}
		open, err := tx.NewSelect().Model((*requestRow)(nil)).
			Where("quiz_id = ?", req.QuizID).
			Where("user_id = ?", req.UserID).
			WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.Where(openRequestFilter)
			}).
			Exists(ctx)
		if err != nil {
			return err
		}
		if open {
			return domain.ErrRequestOpen
		}
		_, err = tx.NewInsert().Model(&row).Exec(ctx)
		return err
	})
	if errors.Is(err, domain.ErrRequestOpen) {
		return domain.ReattemptRequest{}, err
	}
	if err != nil {
		return domain.ReattemptRequest{}, fmt.Errorf("create re-attempt request: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) LatestRequest(ctx context.Context, quizID, userID string) (domain.ReattemptRequest, error) {
	row := new(requestRow)
	err := s.db.NewSelect().Model(row).
		Where("quiz_id = ?", quizID).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReattemptRequest{}, domain.ErrRequestNotFound
	}
	if err != nil {
		return domain.ReattemptRequest{}, fmt.Errorf("latest re-attempt request: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) MarkRequestUsed(ctx context.Context, quizID, userID string) (bool, error) {
	var used bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(requestRow)
		err := tx.NewSelect().Model(row).
			Where("quiz_id = ?", quizID).
			Where("user_id = ?", userID).
			Where("status = ?", string(domain.RequestApproved)).
			Where("NOT used").
			Order("created_at DESC").
			Limit(1).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		res, err := tx.NewUpdate().Model((*requestRow)(nil)).
			Set("used = TRUE").
			Where("id = ?", row.ID).
			Where("NOT used").
			Exec(ctx)
		if err != nil {
			return err
		}
		used = affected(res)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mark re-attempt used: %w", err)
	}
	return used, nil
}

func (s *Store) MarkRequestNotified(ctx context.Context, requestID string) (bool, error) {
	res, err := s.db.NewUpdate().Model((*requestRow)(nil)).
		Set("user_notified = TRUE").
		Where("id = ?", requestID).
		Where("NOT user_notified").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark re-attempt notified: %w", err)
	}
	if affected(res) {
		return true, nil
	}
	exists, err := s.db.NewSelect().Model((*requestRow)(nil)).Where("id = ?", requestID).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("mark re-attempt notified: %w", err)
	}
	if !exists {
		return false, domain.ErrRequestNotFound
	}
	return false, nil
}

// DecideRequest locks the pending row, records the decision and, on approval,
// detaches the attempt reference before deleting the participant's attempts.
// Answers go with their attempts through ON DELETE CASCADE.
func (s *Store) DecideRequest(ctx context.Context, requestID string, decision domain.Decision) (domain.ReattemptRequest, error) {
	row := new(requestRow)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(row).
			Where("id = ?", requestID).
			Where("status = ?", string(domain.RequestPending)).
			For("UPDATE").
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrRequestNotFound
		}
		if err != nil {
			return err
		}

		decidedAt := decision.DecidedAt
		row.ProcessedAt = &decidedAt
		row.ProcessedBy = decision.Actor
		row.UserNotified = false
		row.Used = false
		if decision.Approve {
			row.Status = string(domain.RequestApproved)
			row.AttemptID = ""
		} else {
			row.Status = string(domain.RequestRejected)
		}
		if _, err := tx.NewUpdate().Model(row).WherePK().Exec(ctx); err != nil {
			return err
		}

		if decision.Approve {
			_, err := tx.NewDelete().Model((*attemptRow)(nil)).
				Where("quiz_id = ?", row.QuizID).
				Where("user_id = ?", row.UserID).
				Exec(ctx)
			return err
		}
		return nil
	})
	if errors.Is(err, domain.ErrRequestNotFound) {
		return domain.ReattemptRequest{}, err
	}
	if err != nil {
		return domain.ReattemptRequest{}, fmt.Errorf("decide re-attempt request: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListRequests(ctx context.Context, status domain.RequestStatus, limit int) ([]domain.ReattemptRequest, error) {
	var rows []requestRow
	q := s.db.NewSelect().Model(&rows).Where("status = ?", string(status))
	if status == domain.RequestPending {
		q = q.Order("created_at DESC")
	} else {
		q = q.OrderExpr("processed_at DESC NULLS LAST")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list re-attempt requests: %w", err)
	}
	out := make([]domain.ReattemptRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
