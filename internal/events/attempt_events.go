package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// EventType represents the kinds of attempt lifecycle events
type EventType string

const (
	// Attempt events
	EventAttemptStarted   EventType = "attempt.started"
	EventPhaseStarted     EventType = "attempt.phase_started"
	EventPhaseFinished    EventType = "attempt.phase_finished"
	EventAttemptFinalized EventType = "attempt.finalized"
	EventActivityRecorded EventType = "attempt.activity_recorded"

	// Grading events
	EventManualGradingRequired EventType = "grading.manual_required"
	EventAnswerGraded          EventType = "grading.answer_graded"

	// Batch events
	EventDifficultyEstimated EventType = "difficulty.estimated"
)

const (
	eventSource  = "exam-attempt-service"
	eventVersion = "1.0"
)

// Event is the envelope for everything this service publishes
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Payloads

type AttemptStartedData struct {
	AttemptID     uint   `json:"attempt_id"`
	ExamID        uint   `json:"exam_id"`
	TestTakerID   string `json:"test_taker_id"`
	AttemptNumber int    `json:"attempt_number"`
	Resumed       bool   `json:"resumed"`
}

type PhaseData struct {
	AttemptID   uint         `json:"attempt_id"`
	ExamID      uint         `json:"exam_id"`
	TestTakerID string       `json:"test_taker_id"`
	Phase       models.Phase `json:"phase"`
	At          time.Time    `json:"at"`
	Expired     bool         `json:"expired"`
}

type ManualGradingData struct {
	AttemptID   uint   `json:"attempt_id"`
	ExamID      uint   `json:"exam_id"`
	AnswerIDs   []uint `json:"answer_ids"`
	PendingLong int    `json:"pending_long"`
}

type AnswerGradedData struct {
	AttemptID uint    `json:"attempt_id"`
	AnswerID  uint    `json:"answer_id"`
	Score     float64 `json:"score"`
	GradedBy  string  `json:"graded_by"`
	AllGraded bool    `json:"all_graded"`
}

type AttemptFinalizedData struct {
	AttemptID       uint     `json:"attempt_id"`
	ExamID          uint     `json:"exam_id"`
	TestTakerID     string   `json:"test_taker_id"`
	Phase1Score     float64  `json:"phase1_score"`
	Phase2Score     *float64 `json:"phase2_score,omitempty"`
	FinalScore      float64  `json:"final_score"`
	CertificateTier *string  `json:"certificate_tier,omitempty"`
}

type ActivityData struct {
	AttemptID uint                      `json:"attempt_id"`
	Type      models.ActivitySignalType `json:"type"`
	Severity  int                       `json:"severity"`
}

type DifficultyEstimatedData struct {
	ExamID           uint `json:"exam_id"`
	Processed        int  `json:"processed"`
	Skipped          int  `json:"skipped"`
	InsufficientData int  `json:"insufficient_data"`
}

// NewEvent wraps a payload in an envelope with a fresh ID
func NewEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// WithMetadata sets one metadata key and returns the event
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func GenerateEventID() string {
	return uuid.NewString()
}
