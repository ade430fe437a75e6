package models

import (
	"time"

	"gorm.io/gorm"
)

type ExamStatus string

const (
	StatusDraft    ExamStatus = "Draft"
	StatusActive   ExamStatus = "Active"
	StatusArchived ExamStatus = "Archived"
)

// Exam is authored elsewhere; this service only reads it.
type Exam struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	Code        string     `json:"code" gorm:"uniqueIndex;not null;size:50"`
	Title       string     `json:"title" gorm:"not null;size:200"`
	Status      ExamStatus `json:"status" gorm:"default:Draft;index"`
	MaxAttempts int        `json:"max_attempts" gorm:"default:0"` // 0 means use configured default

	// Per-phase durations in minutes, 0 means use configured default
	Phase1Minutes int `json:"phase1_minutes" gorm:"default:0"`
	Phase2Minutes int `json:"phase2_minutes" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []Question      `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
	Groups    []QuestionGroup `json:"groups,omitempty" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// ExamContent is the read-only snapshot of an exam's questions and groups.
// It is what gets cached between attempts.
type ExamContent struct {
	Exam      Exam            `json:"exam"`
	Questions []Question      `json:"questions"`
	Groups    []QuestionGroup `json:"groups"`
}

// QuestionByID indexes the snapshot's questions.
func (c *ExamContent) QuestionByID() map[uint]*Question {
	index := make(map[uint]*Question, len(c.Questions))
	for i := range c.Questions {
		index[c.Questions[i].ID] = &c.Questions[i]
	}
	return index
}

// GroupByID indexes the snapshot's groups.
func (c *ExamContent) GroupByID() map[uint]*QuestionGroup {
	index := make(map[uint]*QuestionGroup, len(c.Groups))
	for i := range c.Groups {
		index[c.Groups[i].ID] = &c.Groups[i]
	}
	return index
}

// HasLongResponse reports whether phase 2 has any content.
func (c *ExamContent) HasLongResponse() bool {
	for _, q := range c.Questions {
		if q.Type == LongResponse {
			return true
		}
	}
	return false
}
