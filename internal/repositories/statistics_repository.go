package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

type StatisticsRepository interface {
	// Upsert replaces the row for each question.
	Upsert(ctx context.Context, stats []models.QuestionStatistics) error
	ListByExam(ctx context.Context, examID uint) ([]models.QuestionStatistics, error)
}

type ActivityRepository interface {
	Create(ctx context.Context, signal *models.ActivitySignal) error
	ListByAttempt(ctx context.Context, attemptID uint) ([]models.ActivitySignal, error)
}
