package models

import (
	"time"
)

type DifficultyLevel string

const (
	DifficultyVeryEasy       DifficultyLevel = "very_easy"
	DifficultyEasy           DifficultyLevel = "easy"
	DifficultyModeratelyEasy DifficultyLevel = "moderately_easy"
	DifficultySomewhatEasy   DifficultyLevel = "somewhat_easy"
	DifficultyMedium         DifficultyLevel = "medium"
	DifficultySomewhatHard   DifficultyLevel = "somewhat_hard"
	DifficultyModeratelyHard DifficultyLevel = "moderately_hard"
	DifficultyHard           DifficultyLevel = "hard"
	DifficultyVeryHard       DifficultyLevel = "very_hard"
)

// QuestionStatistics holds the latest difficulty estimation for one question.
type QuestionStatistics struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex"`
	ExamID     uint `json:"exam_id" gorm:"not null;index"`

	TotalAttempts   int     `json:"total_attempts"`
	CorrectAttempts int     `json:"correct_attempts"`
	PercentCorrect  float64 `json:"percent_correct"` // 0 - 100

	Difficulty       *DifficultyLevel `json:"difficulty" gorm:"size:32"`
	InsufficientData bool             `json:"insufficient_data" gorm:"default:false"`

	LastCalculatedAt time.Time `json:"last_calculated_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (QuestionStatistics) TableName() string {
	return "question_statistics"
}

// AnswerTally is the per-question aggregate the estimator reads.
type AnswerTally struct {
	QuestionID uint
	Total      int
	Correct    int
}
