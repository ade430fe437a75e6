package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// AttemptRepository interface for exam attempt operations
type AttemptRepository interface {
	// Create fails with a duplicate error when the attempt number is taken.
	Create(ctx context.Context, attempt *models.Attempt) error
	GetByID(ctx context.Context, id uint) (*models.Attempt, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uint) (*models.Attempt, error)

	GetActive(ctx context.Context, examID uint, testTakerID string) (*models.Attempt, error)
	CountByTestTaker(ctx context.Context, examID uint, testTakerID string) (int, error)
	ListByExam(ctx context.Context, examID uint, filters AttemptFilters) ([]*models.Attempt, error)
	// ListOverdue returns attempts whose phase started at or before startedBefore
	// and is still open.
	ListOverdue(ctx context.Context, examID uint, phase models.Phase, startedBefore time.Time) ([]*models.Attempt, error)

	// Phase transitions are conditional updates. The bool reports whether this
	// call performed the transition.
	MarkPhaseStarted(ctx context.Context, id uint, phase models.Phase, at time.Time) (bool, error)
	MarkPhaseFinished(ctx context.Context, id uint, phase models.Phase, at time.Time) (bool, error)

	UpdateScores(ctx context.Context, id uint, scores ScoreUpdate) error
}
