package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress     AttemptStatus = "in_progress"
	AttemptPhase1Complete AttemptStatus = "phase1_complete"
	AttemptCompleted      AttemptStatus = "completed"
)

type Phase int

const (
	Phase1 Phase = 1
	Phase2 Phase = 2
)

func (p Phase) IsValid() bool {
	return p == Phase1 || p == Phase2
}

// OptionOrder is the display order of one question's original letters.
// Letters[i] is the original letter shown at display position i.
type OptionOrder struct {
	QuestionID uint     `json:"question_id"`
	Letters    []string `json:"letters"`
}

type Attempt struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	ExamID        uint          `json:"exam_id" gorm:"not null;index:idx_attempt_taker;uniqueIndex:idx_attempt_taker_number"`
	TestTakerID   string        `json:"test_taker_id" gorm:"not null;size:255;index:idx_attempt_taker;uniqueIndex:idx_attempt_taker_number"`
	AttemptNumber int           `json:"attempt_number" gorm:"not null;default:1;uniqueIndex:idx_attempt_taker_number"`
	Status        AttemptStatus `json:"status" gorm:"not null;size:32;default:in_progress;index"`

	Phase1StartedAt  *time.Time `json:"phase1_started_at"`
	Phase1FinishedAt *time.Time `json:"phase1_finished_at"`
	Phase2StartedAt  *time.Time `json:"phase2_started_at"`
	Phase2FinishedAt *time.Time `json:"phase2_finished_at"`

	// Randomization; immutable once written
	Seed          int64                            `json:"-" gorm:"not null"`
	QuestionOrder datatypes.JSONSlice[uint]        `json:"-" gorm:"type:jsonb"`
	OptionOrders  datatypes.JSONSlice[OptionOrder] `json:"-" gorm:"type:jsonb"`

	Phase1Score     *float64   `json:"phase1_score"`
	Phase2Score     *float64   `json:"phase2_score"`
	FinalScore      *float64   `json:"final_score"`
	GradingComplete bool       `json:"grading_complete" gorm:"default:false"`
	CertificateTier *string    `json:"certificate_tier" gorm:"size:32"`
	FinalizedAt     *time.Time `json:"finalized_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Answers []AnswerRecord `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// IsFinalized is true once a final score has been written. Finalized attempts are locked.
func (a *Attempt) IsFinalized() bool {
	return a.FinalScore != nil
}

func (a *Attempt) StartedAt(p Phase) *time.Time {
	if p == Phase2 {
		return a.Phase2StartedAt
	}
	return a.Phase1StartedAt
}

func (a *Attempt) FinishedAt(p Phase) *time.Time {
	if p == Phase2 {
		return a.Phase2FinishedAt
	}
	return a.Phase1FinishedAt
}

func (a *Attempt) SetStartedAt(p Phase, t time.Time) {
	if p == Phase2 {
		a.Phase2StartedAt = &t
		return
	}
	a.Phase1StartedAt = &t
}

func (a *Attempt) SetFinishedAt(p Phase, t time.Time) {
	if p == Phase2 {
		a.Phase2FinishedAt = &t
		return
	}
	a.Phase1FinishedAt = &t
}

// OptionOrderFor returns the stored option order for a question, nil if none.
func (a *Attempt) OptionOrderFor(questionID uint) []string {
	for _, o := range a.OptionOrders {
		if o.QuestionID == questionID {
			return o.Letters
		}
	}
	return nil
}

// StatusAfterFinishing returns the global status reached when phase p finishes.
func StatusAfterFinishing(p Phase) AttemptStatus {
	if p == Phase2 {
		return AttemptCompleted
	}
	return AttemptPhase1Complete
}
