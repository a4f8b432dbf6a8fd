package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"timed-quiz-service/internal/domain"
)

// DraftGenerator is the external content generator.
type DraftGenerator interface {
	Generate(ctx context.Context, prompt domain.DraftPrompt) (domain.RawDraft, error)
}

// DraftService turns generated drafts into quizzes.
type DraftService struct {
	generator DraftGenerator
	quizzes   *QuizService
	log       *zap.Logger
}

func NewDraftService(generator DraftGenerator, quizzes *QuizService, log *zap.Logger) *DraftService {
	if log == nil {
		log = zap.NewNop()
	}
	return &DraftService{generator: generator, quizzes: quizzes, log: log}
}

// Generate asks the generator for a draft and validates it. Every failure is
// reported as domain.ErrGenerationFailed.
func (d *DraftService) Generate(ctx context.Context, prompt domain.DraftPrompt) (domain.Draft, error) {
	prompt = prompt.Normalized()
	raw, err := d.generator.Generate(ctx, prompt)
	if err != nil {
		d.log.Warn("draft generation failed", zap.String("topic", prompt.Topic), zap.Error(err))
		if errors.Is(err, domain.ErrGenerationFailed) {
			return domain.Draft{}, err
		}
		return domain.Draft{}, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}
	return domain.NormalizeDraft(raw, prompt)
}

// IngestRequest schedules a reviewed draft.
type IngestRequest struct {
	Draft       domain.Draft `json:"draft"`
	StartTime   time.Time    `json:"startTime"`
	EndTime     time.Time    `json:"endTime"`
	Mode        domain.Mode  `json:"mode"`
	AccessToken string       `json:"accessToken"`
}

// Ingest re-validates the draft and creates the quiz. Nothing is written unless
// the whole draft is usable.
func (d *DraftService) Ingest(ctx context.Context, req IngestRequest) (domain.Quiz, error) {
	draft, err := domain.NormalizeDraft(req.Draft.Raw(), domain.DraftPrompt{
		Title:       req.Draft.Title,
		Description: req.Draft.Description,
		Duration:    req.Draft.Duration,
	}.Normalized())
	if err != nil {
		return domain.Quiz{}, err
	}
	return d.quizzes.CreateQuiz(ctx, domain.Quiz{
		Title:        draft.Title,
		Description:  draft.Description,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Duration:     draft.Duration,
		Mode:         req.Mode,
		MaxQuestions: draft.MaxQuestions,
		AccessToken:  req.AccessToken,
	}, draft.Questions)
}
