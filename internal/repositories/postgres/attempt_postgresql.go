package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.Attempt) error {
	return a.db.WithContext(ctx).Omit(clause.Associations).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetForUpdate(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetActive(ctx context.Context, examID uint, testTakerID string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Where("exam_id = ? AND test_taker_id = ? AND status <> ?", examID, testTakerID, models.AttemptCompleted).
		Order("attempt_number DESC").
		First(&attempt).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountByTestTaker(ctx context.Context, examID uint, testTakerID string) (int, error) {
	var count int64
	if err := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("exam_id = ? AND test_taker_id = ?", examID, testTakerID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (a *AttemptPostgreSQL) ListByExam(ctx context.Context, examID uint, filters repositories.AttemptFilters) ([]*models.Attempt, error) {
	var attempts []*models.Attempt

	query := a.db.WithContext(ctx).Model(&models.Attempt{}).Where("exam_id = ?", examID)
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Finalized != nil {
		if *filters.Finalized {
			query = query.Where("final_score IS NOT NULL")
		} else {
			query = query.Where("final_score IS NULL")
		}
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("id ASC").Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) ListOverdue(ctx context.Context, examID uint, phase models.Phase, startedBefore time.Time) ([]*models.Attempt, error) {
	started, finished := phaseColumns(phase)

	var attempts []*models.Attempt
	if err := a.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Where(fmt.Sprintf("%s IS NOT NULL AND %s <= ? AND %s IS NULL", started, started, finished), startedBefore).
		Order(started + " ASC, id ASC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

// MarkPhaseStarted stamps the start time once. Phase 2 additionally requires phase 1 finished.
func (a *AttemptPostgreSQL) MarkPhaseStarted(ctx context.Context, id uint, phase models.Phase, at time.Time) (bool, error) {
	started, finished := phaseColumns(phase)

	query := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ?", id).
		Where(fmt.Sprintf("%s IS NULL AND %s IS NULL", started, finished))
	if phase == models.Phase2 {
		query = query.Where("phase1_finished_at IS NOT NULL")
	}

	result := query.Updates(map[string]interface{}{
		started:      at,
		"updated_at": at,
	})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkPhaseFinished is exactly-once: only the caller that flips finished_at from NULL wins.
func (a *AttemptPostgreSQL) MarkPhaseFinished(ctx context.Context, id uint, phase models.Phase, at time.Time) (bool, error) {
	started, finished := phaseColumns(phase)

	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ?", id).
		Where(fmt.Sprintf("%s IS NOT NULL AND %s IS NULL", started, finished)).
		Updates(map[string]interface{}{
			finished:     at,
			"status":     models.StatusAfterFinishing(phase),
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (a *AttemptPostgreSQL) UpdateScores(ctx context.Context, id uint, scores repositories.ScoreUpdate) error {
	return a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"phase1_score":     scores.Phase1Score,
			"phase2_score":     scores.Phase2Score,
			"final_score":      scores.FinalScore,
			"grading_complete": scores.GradingComplete,
			"certificate_tier": scores.CertificateTier,
			"finalized_at":     scores.FinalizedAt,
			"updated_at":       time.Now(),
		}).Error
}

func phaseColumns(phase models.Phase) (string, string) {
	if phase == models.Phase2 {
		return "phase2_started_at", "phase2_finished_at"
	}
	return "phase1_started_at", "phase1_finished_at"
}
