package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID string
	Role   models.UserRole
}

// ===== SERVICE INTERFACES =====

type AttemptService interface {
	Begin(ctx context.Context, req *BeginAttemptRequest, caller Caller) (*AttemptResponse, error)
	Get(ctx context.Context, attemptID uint, caller Caller) (*AttemptResponse, error)
	GetQuestions(ctx context.Context, attemptID uint, caller Caller) (*AttemptQuestionsResponse, error)

	StartPhase(ctx context.Context, attemptID uint, phase models.Phase, caller Caller) (*PhaseClock, error)
	SubmitAnswers(ctx context.Context, attemptID uint, req *SubmitAnswersRequest, caller Caller) (*SubmitAnswersResponse, error)
	FinishPhase(ctx context.Context, attemptID uint, phase models.Phase, caller Caller) (*PhaseClock, error)

	GetResult(ctx context.Context, attemptID uint, caller Caller) (*AttemptResult, error)
	RecordActivity(ctx context.Context, attemptID uint, req *ActivityRequest, caller Caller) error

	ExpireOverdue(ctx context.Context, examID uint, caller Caller) (*ExpiryResult, error)
}

type GradingService interface {
	SubmitHumanGrade(ctx context.Context, answerID uint, req *HumanGradeRequest, caller Caller) (*HumanGradeResponse, error)
	ListPending(ctx context.Context, examID uint, limit, offset int) ([]models.PendingGrade, error)
}

type DifficultyService interface {
	RunEstimation(ctx context.Context, examID uint) (*DifficultyRunResult, error)
}

type ExportService interface {
	ExportDifficultyReport(ctx context.Context, examID uint) ([]byte, error)
	ExportAttemptResults(ctx context.Context, examID uint) ([]byte, error)
}

// ===== REQUESTS =====

type BeginAttemptRequest struct {
	ExamID   uint   `json:"exam_id"`
	ExamCode string `json:"exam_code" validate:"exam_selector,max=50"`
}

type AnswerInput struct {
	QuestionID     uint     `json:"question_id" validate:"required"`
	RawAnswer      string   `json:"raw_answer"`
	StableOptionID string   `json:"stable_option_id,omitempty" validate:"stable_option_id"`
	EvidenceRefs   []string `json:"evidence_refs,omitempty"`
}

type SubmitAnswersRequest struct {
	Answers []AnswerInput `json:"answers" validate:"required,min=1,max=200,dive"`
}

type HumanGradeRequest struct {
	Score *float64 `json:"score" validate:"required,min=0"`
}

type ActivityRequest struct {
	Type       models.ActivitySignalType `json:"type" validate:"required,activity_type"`
	Severity   int                       `json:"severity" validate:"omitempty,min=1,max=5"`
	QuestionID *uint                     `json:"question_id,omitempty"`
	TimeOffset int                       `json:"time_offset" validate:"min=0"`
	Data       map[string]interface{}    `json:"data,omitempty"`

	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// ===== RESPONSES =====

// PhaseClock is the server's view of one phase's time box.
type PhaseClock struct {
	Phase            models.Phase `json:"phase"`
	State            string       `json:"state"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	FinishedAt       *time.Time   `json:"finished_at,omitempty"`
	Deadline         *time.Time   `json:"deadline,omitempty"`
	RemainingSeconds int64        `json:"remaining_seconds"`
}

type AttemptResponse struct {
	ID            uint                 `json:"id"`
	ExamID        uint                 `json:"exam_id"`
	TestTakerID   string               `json:"test_taker_id"`
	AttemptNumber int                  `json:"attempt_number"`
	Status        models.AttemptStatus `json:"status"`
	Resumed       bool                 `json:"resumed"`
	Phases        []PhaseClock         `json:"phases"`
	CreatedAt     time.Time            `json:"created_at"`
}

type OptionView struct {
	DisplayLetter  string `json:"display_letter"`
	StableOptionID string `json:"stable_option_id"`
	Text           string `json:"text"`
}

type QuestionView struct {
	QuestionID   uint                `json:"question_id"`
	Position     int                 `json:"position"`
	Type         models.QuestionType `json:"type"`
	Phase        models.Phase        `json:"phase"`
	GroupID      *uint               `json:"group_id,omitempty"`
	GroupPrompt  string              `json:"group_prompt,omitempty"`
	Prompt       string              `json:"prompt"`
	MaxScore     float64             `json:"max_score"`
	Options      []OptionView        `json:"options,omitempty"`
	RawAnswer    string              `json:"raw_answer,omitempty"`
	EvidenceRefs []string            `json:"evidence_refs,omitempty"`
}

type AttemptQuestionsResponse struct {
	AttemptID uint           `json:"attempt_id"`
	Questions []QuestionView `json:"questions"`
}

type SubmitAnswersResponse struct {
	Accepted int          `json:"accepted"`
	Phases   []PhaseClock `json:"phases"`
}

type AttemptResult struct {
	AttemptID       uint                 `json:"attempt_id"`
	Status          models.AttemptStatus `json:"status"`
	Phase1Score     *float64             `json:"phase1_score"`
	Phase2Score     *float64             `json:"phase2_score"`
	FinalScore      *float64             `json:"final_score"`
	GradingComplete bool                 `json:"grading_complete"`
	LongTotal       int                  `json:"long_total"`
	LongGraded      int                  `json:"long_graded"`
	CertificateTier *string              `json:"certificate_tier"`
	FinalizedAt     *time.Time           `json:"finalized_at"`
}

type HumanGradeResponse struct {
	AllGraded       bool     `json:"all_graded"`
	Finalized       bool     `json:"finalized"`
	Phase2Score     *float64 `json:"phase2_score,omitempty"`
	FinalScore      *float64 `json:"final_score,omitempty"`
	CertificateTier *string  `json:"certificate_tier,omitempty"`
}

type ExpiryResult struct {
	ExamID uint `json:"exam_id"`
	Closed int  `json:"closed"`
}

type DifficultyRunResult struct {
	ExamID           uint          `json:"exam_id"`
	Processed        int           `json:"processed"`
	Skipped          int           `json:"skipped"`
	InsufficientData int           `json:"insufficient_data"`
	Duration         time.Duration `json:"duration"`
}
