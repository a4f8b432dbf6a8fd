package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/infra/postgres"
	"timed-quiz-service/internal/telemetry"
)

type seedQuiz struct {
	domain.Quiz `yaml:",inline"`
	Questions   []domain.Question `yaml:"questions"`
}

type seedFile struct {
	Quizzes []seedQuiz `yaml:"quizzes"`
}

// NewSeedCmd loads quizzes from a YAML file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Create quizzes from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := telemetry.NewLogger(telemetry.LogOptions{Level: cfg.Log.Level, File: cfg.Log.File})
			defer func() { _ = logger.Sync() }()

			quizzes, err := loadSeedFile(args[0])
			if err != nil {
				return err
			}
			db, err := openBunDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := runMigrations(cmd.Context(), db, logger); err != nil {
				return err
			}

			store := postgres.NewStore(db)
			service := app.NewQuizService(app.Deps{
				Quizzes:  store,
				Attempts: store,
				Requests: store,
				Logger:   logger,
			})
			return seedQuizzes(cmd.Context(), service, quizzes, logger)
		},
	}
}

func loadSeedFile(path string) ([]seedQuiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(file.Quizzes) == 0 {
		return nil, fmt.Errorf("%s: no quizzes", path)
	}
	return file.Quizzes, nil
}

func seedQuizzes(ctx context.Context, service *app.QuizService, quizzes []seedQuiz, logger *zap.Logger) error {
	for i, q := range quizzes {
		created, err := service.CreateQuiz(ctx, q.Quiz, q.Questions)
		if err != nil {
			return fmt.Errorf("quiz %d (%q): %w", i+1, q.Title, err)
		}
		logger.Info("seeded quiz", zap.String("quiz_id", created.ID), zap.String("title", created.Title))
	}
	return nil
}
