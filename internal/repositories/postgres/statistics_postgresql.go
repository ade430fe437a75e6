package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

type StatisticsPostgreSQL struct {
	db *gorm.DB
}

func NewStatisticsPostgreSQL(db *gorm.DB) repositories.StatisticsRepository {
	return &StatisticsPostgreSQL{db: db}
}

func (s *StatisticsPostgreSQL) Upsert(ctx context.Context, stats []models.QuestionStatistics) error {
	if len(stats) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"exam_id", "total_attempts", "correct_attempts", "percent_correct",
				"difficulty", "insufficient_data", "last_calculated_at", "updated_at",
			}),
		}).
		Create(&stats).Error
}

func (s *StatisticsPostgreSQL) ListByExam(ctx context.Context, examID uint) ([]models.QuestionStatistics, error) {
	var stats []models.QuestionStatistics
	if err := s.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("question_id ASC").
		Find(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

type ActivityPostgreSQL struct {
	db *gorm.DB
}

func NewActivityPostgreSQL(db *gorm.DB) repositories.ActivityRepository {
	return &ActivityPostgreSQL{db: db}
}

func (a *ActivityPostgreSQL) Create(ctx context.Context, signal *models.ActivitySignal) error {
	return a.db.WithContext(ctx).Create(signal).Error
}

func (a *ActivityPostgreSQL) ListByAttempt(ctx context.Context, attemptID uint) ([]models.ActivitySignal, error) {
	var signals []models.ActivitySignal
	if err := a.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("created_at ASC").
		Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}
