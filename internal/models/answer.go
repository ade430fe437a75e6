package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnswerRecord is the single row per (attempt, question). Every submission overwrites it.
type AnswerRecord struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	AttemptID    uint         `json:"attempt_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`
	QuestionID   uint         `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question;index"`
	QuestionType QuestionType `json:"question_type" gorm:"not null;size:32"`

	RawAnswer        string  `json:"raw_answer" gorm:"type:text"`
	ResolvedOptionID *string `json:"resolved_option_id" gorm:"size:64"`

	// nil IsCorrect means not assessable (long responses, unanswered items)
	IsCorrect    *bool    `json:"is_correct"`
	MachineScore *float64 `json:"machine_score"`
	HumanScore   *float64 `json:"human_score"`

	GradedBy *string    `json:"graded_by" gorm:"size:255"`
	GradedAt *time.Time `json:"graded_at"`

	EvidenceRefs datatypes.JSONSlice[string] `json:"evidence_refs" gorm:"type:jsonb"`
	SubmittedAt  *time.Time                  `json:"submitted_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (AnswerRecord) TableName() string {
	return "answer_records"
}

// HumanGraded reports whether a long response has received its grade.
func (a *AnswerRecord) HumanGraded() bool {
	return a.HumanScore != nil
}

// PendingGrade is one entry of a grader's queue.
type PendingGrade struct {
	AnswerID    uint      `json:"answer_id"`
	AttemptID   uint      `json:"attempt_id"`
	QuestionID  uint      `json:"question_id"`
	TestTakerID string    `json:"test_taker_id"`
	RawAnswer   string    `json:"raw_answer"`
	Evidence    []string  `json:"evidence_refs"`
	MaxScore    float64   `json:"max_score"`
	SubmittedAt time.Time `json:"submitted_at"`
}
