package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	SingleChoice    QuestionType = "single_choice"
	GroupedMatching QuestionType = "grouped_matching"
	ShortResponse   QuestionType = "short_response"
	LongResponse    QuestionType = "long_response"
)

// QuestionTypes lists the types in the order their buckets are concatenated.
var QuestionTypes = []QuestionType{SingleChoice, GroupedMatching, ShortResponse, LongResponse}

func (t QuestionType) IsValid() bool {
	switch t {
	case SingleChoice, GroupedMatching, ShortResponse, LongResponse:
		return true
	}
	return false
}

// Phase returns the exam phase the question belongs to.
func (t QuestionType) Phase() Phase {
	if t == LongResponse {
		return Phase2
	}
	return Phase1
}

// MachineGradable is false only for long responses.
func (t QuestionType) MachineGradable() bool {
	return t != LongResponse
}

// Option is one authored choice. Letter is the original, pre-shuffle letter.
type Option struct {
	Letter string `json:"letter"`
	Text   string `json:"text"`
}

type Question struct {
	ID       uint         `json:"id" gorm:"primaryKey"`
	ExamID   uint         `json:"exam_id" gorm:"not null;index"`
	GroupID  *uint        `json:"group_id" gorm:"index"`
	Position int          `json:"position" gorm:"not null;default:0"`
	Type     QuestionType `json:"type" gorm:"not null;size:32"`
	Prompt   string       `json:"prompt" gorm:"type:text"`

	Options datatypes.JSONSlice[Option] `json:"options" gorm:"type:jsonb"`

	// CorrectAnswer holds a letter, a "position-letter" pair list or a literal, depending on Type.
	CorrectAnswer     *string `json:"-" gorm:"type:text"`
	CanonicalOptionID *string `json:"-" gorm:"size:64"`

	MaxScore float64 `json:"max_score" gorm:"not null;default:1"`

	// Difficulty is written only by the estimator.
	Difficulty *DifficultyLevel `json:"difficulty,omitempty" gorm:"size:32"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// QuestionGroup shares one option set across its sub-questions.
type QuestionGroup struct {
	ID       uint                        `json:"id" gorm:"primaryKey"`
	ExamID   uint                        `json:"exam_id" gorm:"not null;index"`
	Position int                         `json:"position" gorm:"not null;default:0"`
	Prompt   string                      `json:"prompt" gorm:"type:text"`
	Options  datatypes.JSONSlice[Option] `json:"options" gorm:"type:jsonb"`
}

func (QuestionGroup) TableName() string {
	return "question_groups"
}

// EffectiveOptions returns the options shown for q: the group's shared set for
// grouped items, the question's own set otherwise.
func EffectiveOptions(q *Question, groups map[uint]*QuestionGroup) []Option {
	if q.Type == GroupedMatching && q.GroupID != nil {
		if g, ok := groups[*q.GroupID]; ok && len(g.Options) > 0 {
			return g.Options
		}
	}
	return q.Options
}
