package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// AnswerRepository interface for answer record operations
type AnswerRepository interface {
	// SeedForAttempt creates one empty record per question, skipping existing ones.
	SeedForAttempt(ctx context.Context, attemptID uint, questions []models.Question) error
	// Upsert is last-write-wins on (attempt_id, question_id). Human grades are never touched.
	Upsert(ctx context.Context, answer *models.AnswerRecord) error

	GetByID(ctx context.Context, id uint) (*models.AnswerRecord, error)
	ListByAttempt(ctx context.Context, attemptID uint) ([]models.AnswerRecord, error)
	SetHumanScore(ctx context.Context, id uint, score float64, gradedBy string, at time.Time) error

	ListPendingByExam(ctx context.Context, examID uint, limit, offset int) ([]models.PendingGrade, error)
	// TallyByExam counts machine-gradable answers of attempts whose phase 1 finished.
	TallyByExam(ctx context.Context, examID uint) ([]models.AnswerTally, error)
}
