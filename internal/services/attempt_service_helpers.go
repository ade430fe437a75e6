package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/grading"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/timebox"
	"github.com/SAP-F-2025/exam-attempt-service/pkg/monitoring"
)

// ===== LOOKUPS =====

func (c *attemptCore) loadContent(ctx context.Context, examID uint) (*models.ExamContent, error) {
	content, err := c.content.Load(ctx, examID, func(ctx context.Context) (*models.ExamContent, error) {
		return c.repo.Exam().GetContent(ctx, examID)
	})
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to load exam content: %w", err)
	}
	return content, nil
}

func (c *attemptCore) getAttempt(ctx context.Context, attemptID uint) (*models.Attempt, error) {
	attempt, err := c.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

// ownedAttempt loads an attempt the caller may mutate. Only the test-taker may.
func (c *attemptCore) ownedAttempt(ctx context.Context, attemptID uint, caller Caller, action string) (*models.Attempt, error) {
	attempt, err := c.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.TestTakerID != caller.UserID {
		return nil, NewPermissionError(caller.UserID, attemptID, "attempt", action, "not owned by caller")
	}
	return attempt, nil
}

// readableAttempt also lets graders and admins through.
func (c *attemptCore) readableAttempt(ctx context.Context, attemptID uint, caller Caller) (*models.Attempt, error) {
	attempt, err := c.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.TestTakerID != caller.UserID && !caller.Role.CanGrade() {
		return nil, NewPermissionError(caller.UserID, attemptID, "attempt", "read", "not owned by caller")
	}
	return attempt, nil
}

// ===== PHASE CLOCK =====

func (c *attemptCore) phaseDuration(exam *models.Exam, phase models.Phase) time.Duration {
	if phase == models.Phase2 {
		if exam.Phase2Minutes > 0 {
			return time.Duration(exam.Phase2Minutes) * time.Minute
		}
		return c.cfg.Phase2Duration
	}
	if exam.Phase1Minutes > 0 {
		return time.Duration(exam.Phase1Minutes) * time.Minute
	}
	return c.cfg.Phase1Duration
}

func (c *attemptCore) window(attempt *models.Attempt, exam *models.Exam, phase models.Phase) timebox.Window {
	return timebox.Window{
		StartedAt:  attempt.StartedAt(phase),
		FinishedAt: attempt.FinishedAt(phase),
		Duration:   c.phaseDuration(exam, phase),
		Grace:      c.cfg.GracePeriod,
	}
}

func (c *attemptCore) clock(attempt *models.Attempt, exam *models.Exam, phase models.Phase, now time.Time) PhaseClock {
	w := c.window(attempt, exam, phase)
	clock := PhaseClock{
		Phase:            phase,
		State:            w.State().String(),
		StartedAt:        w.StartedAt,
		FinishedAt:       w.FinishedAt,
		RemainingSeconds: w.RemainingSeconds(now),
	}
	if w.StartedAt != nil {
		deadline := w.Deadline()
		clock.Deadline = &deadline
	}
	return clock
}

func (c *attemptCore) clocks(attempt *models.Attempt, exam *models.Exam, now time.Time) []PhaseClock {
	return []PhaseClock{
		c.clock(attempt, exam, models.Phase1, now),
		c.clock(attempt, exam, models.Phase2, now),
	}
}

// expireIfDue finishes a started phase whose time has run out. It reports whether
// the phase is now finished and refreshes attempt from storage when it is.
func (c *attemptCore) expireIfDue(ctx context.Context, attempt *models.Attempt, content *models.ExamContent, phase models.Phase, now time.Time) (bool, error) {
	w := c.window(attempt, &content.Exam, phase)
	if !w.Expired(now) {
		return w.State() == timebox.Finished, nil
	}
	if err := c.finishPhase(ctx, attempt, content, phase, now, true); err != nil {
		return false, err
	}
	return true, nil
}

// expireDue closes whichever phases of attempt have run out. Reads call it so an
// abandoned attempt still moves on once anyone looks at it.
func (c *attemptCore) expireDue(ctx context.Context, attempt *models.Attempt, content *models.ExamContent, now time.Time) error {
	for _, phase := range []models.Phase{models.Phase1, models.Phase2} {
		if _, err := c.expireIfDue(ctx, attempt, content, phase, now); err != nil {
			return err
		}
	}
	return nil
}

// expireOverdue sweeps an exam for attempts whose phase is open past its grace
// window and closes them. It returns how many phases it closed.
func (c *attemptCore) expireOverdue(ctx context.Context, content *models.ExamContent) (int, error) {
	now := c.now()
	closed := 0
	for _, phase := range []models.Phase{models.Phase1, models.Phase2} {
		cutoff := now.Add(-c.phaseDuration(&content.Exam, phase) - c.cfg.GracePeriod)
		overdue, err := c.repo.Attempt().ListOverdue(ctx, content.Exam.ID, phase, cutoff)
		if err != nil {
			return closed, fmt.Errorf("failed to list overdue attempts: %w", err)
		}
		for _, attempt := range overdue {
			if attempt.FinishedAt(phase) != nil {
				continue
			}
			if err := c.finishPhase(ctx, attempt, content, phase, now, true); err != nil {
				return closed, err
			}
			closed++
		}
	}
	if closed > 0 {
		c.logger.Info("Closed overdue phases", "exam_id", content.Exam.ID, "closed", closed)
	}
	return closed, nil
}

// finishPhase flips finished_at exactly once. The caller that wins the conditional
// update recomputes scores and publishes; everyone else just refreshes.
func (c *attemptCore) finishPhase(ctx context.Context, attempt *models.Attempt, content *models.ExamContent, phase models.Phase, at time.Time, expired bool) error {
	var won bool
	var outcome *recomputeOutcome

	err := c.repo.Transaction(ctx, func(tx repositories.Repository) error {
		var err error
		won, outcome, err = c.closePhase(ctx, tx, attempt.ID, content, phase, at)
		return err
	})
	if err != nil {
		return err
	}

	refreshed, err := c.getAttempt(ctx, attempt.ID)
	if err != nil {
		return err
	}
	*attempt = *refreshed

	if won {
		c.phaseClosed(ctx, attempt, phase, at, expired, outcome)
	}
	return nil
}

// closePhase is the part of finishPhase that runs inside tx. Callers that already
// hold the attempt lock use it directly and call phaseClosed after commit.
func (c *attemptCore) closePhase(ctx context.Context, tx repositories.Repository, attemptID uint, content *models.ExamContent, phase models.Phase, at time.Time) (bool, *recomputeOutcome, error) {
	won, err := tx.Attempt().MarkPhaseFinished(ctx, attemptID, phase, at)
	if err != nil {
		return false, nil, fmt.Errorf("failed to finish phase: %w", err)
	}
	if !won {
		return false, nil, nil
	}

	// Nothing to answer in phase 2, so the attempt completes with phase 1.
	if phase == models.Phase1 && !content.HasLongResponse() {
		if _, err := tx.Attempt().MarkPhaseStarted(ctx, attemptID, models.Phase2, at); err != nil {
			return false, nil, fmt.Errorf("failed to open empty phase 2: %w", err)
		}
		if _, err := tx.Attempt().MarkPhaseFinished(ctx, attemptID, models.Phase2, at); err != nil {
			return false, nil, fmt.Errorf("failed to close empty phase 2: %w", err)
		}
	}

	outcome, err := c.recompute(ctx, tx, attemptID)
	if err != nil {
		return false, nil, err
	}
	return true, outcome, nil
}

// phaseClosed publishes a phase transition once its transaction has committed.
func (c *attemptCore) phaseClosed(ctx context.Context, attempt *models.Attempt, phase models.Phase, at time.Time, expired bool, outcome *recomputeOutcome) {
	reason := "requested"
	if expired {
		reason = "expired"
	}
	monitoring.PhaseTransitions.WithLabelValues(strconv.Itoa(int(phase)), "finish", reason).Inc()
	c.logger.Info("Phase finished",
		"attempt_id", attempt.ID,
		"phase", phase,
		"expired", expired,
		"status", attempt.Status)

	c.events.phaseFinished(ctx, attempt, phase, at, expired)
	if attempt.Status == models.AttemptCompleted {
		c.events.manualGradingRequired(ctx, attempt, outcome.pendingLong)
	}
	c.afterRecompute(ctx, attempt, outcome)
}

// ===== RECOMPUTE =====

type recomputeOutcome struct {
	attempt        *models.Attempt
	scores         grading.Scores
	newlyFinalized bool
	pendingLong    []uint
}

// recompute is the one read-recompute-write step behind every score change. It
// locks the attempt row, derives everything from the answer records and writes the
// result whole, so running it twice with the same inputs stores the same outputs.
// Finalized attempts are never rewritten.
func (c *attemptCore) recompute(ctx context.Context, tx repositories.Repository, attemptID uint) (*recomputeOutcome, error) {
	attempt, err := tx.Attempt().GetForUpdate(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to lock attempt: %w", err)
	}

	answers, err := tx.Answer().ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}

	scores := grading.Compute(grading.ScoreInput{
		Phase1Finished: attempt.Phase1FinishedAt != nil,
		Completed:      attempt.Status == models.AttemptCompleted,
		Answers:        answers,
		Ladder:         c.cfg.Ladder,
	})

	outcome := &recomputeOutcome{attempt: attempt, scores: scores}
	for _, a := range answers {
		if a.QuestionType == models.LongResponse && a.HumanScore == nil {
			outcome.pendingLong = append(outcome.pendingLong, a.ID)
		}
	}

	if attempt.IsFinalized() {
		return outcome, nil
	}

	update := repositories.ScoreUpdate{
		Phase1Score:     scores.Phase1Score,
		Phase2Score:     scores.Phase2Score,
		FinalScore:      scores.FinalScore,
		GradingComplete: scores.GradingComplete,
		CertificateTier: scores.CertificateTier,
	}
	if scores.Finalized() {
		at := c.now()
		update.FinalizedAt = &at
		outcome.newlyFinalized = true
	}
	if err := tx.Attempt().UpdateScores(ctx, attemptID, update); err != nil {
		return nil, fmt.Errorf("failed to store scores: %w", err)
	}

	attempt.Phase1Score = update.Phase1Score
	attempt.Phase2Score = update.Phase2Score
	attempt.FinalScore = update.FinalScore
	attempt.GradingComplete = update.GradingComplete
	attempt.CertificateTier = update.CertificateTier
	attempt.FinalizedAt = update.FinalizedAt
	return outcome, nil
}

// afterRecompute runs once the recompute transaction has committed.
func (c *attemptCore) afterRecompute(ctx context.Context, attempt *models.Attempt, outcome *recomputeOutcome) {
	if outcome == nil || !outcome.newlyFinalized {
		return
	}
	tier := "none"
	if outcome.scores.CertificateTier != nil {
		tier = *outcome.scores.CertificateTier
	}
	monitoring.AttemptsFinalized.WithLabelValues(tier).Inc()
	c.logger.Info("Attempt finalized",
		"attempt_id", attempt.ID,
		"final_score", *outcome.scores.FinalScore,
		"certificate_tier", tier)
	c.events.attemptFinalized(ctx, attempt, outcome.scores)
}

func isRejection(err error) bool {
	return IsTemporal(err) || errors.Is(err, ErrAttemptFinalized)
}
