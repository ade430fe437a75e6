package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/grading"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// attemptEvents publishes lifecycle events after the state change is committed.
// Publishing is best effort; a broker outage never fails an attempt operation.
type attemptEvents struct {
	publisher events.EventPublisher
	logger    *slog.Logger
}

func newAttemptEvents(publisher events.EventPublisher, logger *slog.Logger) *attemptEvents {
	if publisher == nil {
		publisher = events.NewMockEventPublisher(logger)
	}
	return &attemptEvents{publisher: publisher, logger: logger}
}

func (e *attemptEvents) publish(ctx context.Context, event *events.Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("Failed to publish event",
			"event_type", event.Type,
			"event_id", event.ID,
			"error", err)
	}
}

func (e *attemptEvents) attemptStarted(ctx context.Context, attempt *models.Attempt, resumed bool) {
	e.publish(ctx, events.NewEvent(events.EventAttemptStarted, events.AttemptStartedData{
		AttemptID:     attempt.ID,
		ExamID:        attempt.ExamID,
		TestTakerID:   attempt.TestTakerID,
		AttemptNumber: attempt.AttemptNumber,
		Resumed:       resumed,
	}).WithMetadata("attempt_id", attempt.ID))
}

func (e *attemptEvents) phaseStarted(ctx context.Context, attempt *models.Attempt, phase models.Phase, at time.Time) {
	e.publish(ctx, events.NewEvent(events.EventPhaseStarted, events.PhaseData{
		AttemptID:   attempt.ID,
		ExamID:      attempt.ExamID,
		TestTakerID: attempt.TestTakerID,
		Phase:       phase,
		At:          at,
	}).WithMetadata("attempt_id", attempt.ID))
}

func (e *attemptEvents) phaseFinished(ctx context.Context, attempt *models.Attempt, phase models.Phase, at time.Time, expired bool) {
	e.publish(ctx, events.NewEvent(events.EventPhaseFinished, events.PhaseData{
		AttemptID:   attempt.ID,
		ExamID:      attempt.ExamID,
		TestTakerID: attempt.TestTakerID,
		Phase:       phase,
		At:          at,
		Expired:     expired,
	}).WithMetadata("attempt_id", attempt.ID))
}

func (e *attemptEvents) manualGradingRequired(ctx context.Context, attempt *models.Attempt, answerIDs []uint) {
	if len(answerIDs) == 0 {
		return
	}
	e.publish(ctx, events.NewEvent(events.EventManualGradingRequired, events.ManualGradingData{
		AttemptID:   attempt.ID,
		ExamID:      attempt.ExamID,
		AnswerIDs:   answerIDs,
		PendingLong: len(answerIDs),
	}).WithMetadata("attempt_id", attempt.ID))
}

func (e *attemptEvents) answerGraded(ctx context.Context, answer *models.AnswerRecord, score float64, graderID string, allGraded bool) {
	e.publish(ctx, events.NewEvent(events.EventAnswerGraded, events.AnswerGradedData{
		AttemptID: answer.AttemptID,
		AnswerID:  answer.ID,
		Score:     score,
		GradedBy:  graderID,
		AllGraded: allGraded,
	}).WithMetadata("attempt_id", answer.AttemptID))
}

func (e *attemptEvents) attemptFinalized(ctx context.Context, attempt *models.Attempt, scores grading.Scores) {
	if !scores.Finalized() || scores.Phase1Score == nil {
		return
	}
	e.publish(ctx, events.NewEvent(events.EventAttemptFinalized, events.AttemptFinalizedData{
		AttemptID:       attempt.ID,
		ExamID:          attempt.ExamID,
		TestTakerID:     attempt.TestTakerID,
		Phase1Score:     *scores.Phase1Score,
		Phase2Score:     scores.Phase2Score,
		FinalScore:      *scores.FinalScore,
		CertificateTier: scores.CertificateTier,
	}).WithMetadata("attempt_id", attempt.ID))
}

func (e *attemptEvents) activityRecorded(ctx context.Context, signal *models.ActivitySignal) {
	e.publish(ctx, events.NewEvent(events.EventActivityRecorded, events.ActivityData{
		AttemptID: signal.AttemptID,
		Type:      signal.Type,
		Severity:  signal.Severity,
	}).WithMetadata("attempt_id", signal.AttemptID))
}

func (e *attemptEvents) difficultyEstimated(ctx context.Context, result *DifficultyRunResult) {
	e.publish(ctx, events.NewEvent(events.EventDifficultyEstimated, events.DifficultyEstimatedData{
		ExamID:           result.ExamID,
		Processed:        result.Processed,
		Skipped:          result.Skipped,
		InsufficientData: result.InsufficientData,
	}))
}
