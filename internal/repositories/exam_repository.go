package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// ExamRepository reads authored content. The only write is the estimator's difficulty rating.
type ExamRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Exam, error)
	GetByCode(ctx context.Context, code string) (*models.Exam, error)
	GetContent(ctx context.Context, examID uint) (*models.ExamContent, error)
	GetQuestion(ctx context.Context, id uint) (*models.Question, error)

	UpdateQuestionDifficulty(ctx context.Context, questionID uint, level models.DifficultyLevel) error
}
