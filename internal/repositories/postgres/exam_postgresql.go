package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db *gorm.DB
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{db: db}
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := e.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByCode(ctx context.Context, code string) (*models.Exam, error) {
	var exam models.Exam
	if err := e.db.WithContext(ctx).Where("code = ?", code).First(&exam).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

// GetContent loads the exam with its questions and groups in authored order
func (e *ExamPostgreSQL) GetContent(ctx context.Context, examID uint) (*models.ExamContent, error) {
	exam, err := e.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}

	content := &models.ExamContent{Exam: *exam}
	if err := e.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("position ASC, id ASC").
		Find(&content.Questions).Error; err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	if err := e.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("position ASC, id ASC").
		Find(&content.Groups).Error; err != nil {
		return nil, fmt.Errorf("failed to load question groups: %w", err)
	}

	return content, nil
}

func (e *ExamPostgreSQL) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := e.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (e *ExamPostgreSQL) UpdateQuestionDifficulty(ctx context.Context, questionID uint, level models.DifficultyLevel) error {
	result := e.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("id = ?", questionID).
		Update("difficulty", level)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
