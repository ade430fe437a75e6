package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/timebox"
)

const (
	defaultPendingLimit = 50
	maxPendingLimit     = 200
)

type gradingService struct {
	*attemptCore
	ops *ServiceLogger
}

// SubmitHumanGrade records a grader's score for a long response and recomputes the
// attempt. The submission that fills in the last missing grade finalizes it.
func (s *gradingService) SubmitHumanGrade(ctx context.Context, answerID uint, req *HumanGradeRequest, caller Caller) (resp *HumanGradeResponse, err error) {
	start := s.now()
	defer func() {
		s.ops.LogOperation(ctx, "submit_human_grade", caller.UserID, answerID, "answer", s.now().Sub(start), err)
	}()

	if !caller.Role.CanGrade() {
		return nil, NewPermissionError(caller.UserID, answerID, "answer", "grade", "role cannot grade")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	answer, err := s.repo.Answer().GetByID(ctx, answerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAnswerNotFound
		}
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	if answer.QuestionType != models.LongResponse {
		return nil, ErrGradingNotAllowed
	}

	question, err := s.repo.Exam().GetQuestion(ctx, answer.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	score := *req.Score
	if score < 0 || score > question.MaxScore {
		return nil, ValidationErrors{*NewValidationError("score",
			fmt.Sprintf("must be between 0 and %g", question.MaxScore), score)}
	}

	content, err := s.loadContent(ctx, question.ExamID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var outcome *recomputeOutcome
	var expired *recomputeOutcome
	err = s.repo.Transaction(ctx, func(tx repositories.Repository) error {
		attempt, err := tx.Attempt().GetForUpdate(ctx, answer.AttemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to lock attempt: %w", err)
		}
		if attempt.IsFinalized() {
			return ErrAttemptFinalized
		}

		// An abandoned phase 2 is closed here once its grace window is over. Until
		// then late answers may still overwrite the response.
		w := s.window(attempt, &content.Exam, models.Phase2)
		switch {
		case w.State() == timebox.Started && !w.WithinGrace(now):
			won, closed, err := s.closePhase(ctx, tx, attempt.ID, content, models.Phase2, now)
			if err != nil {
				return err
			}
			if won {
				expired = closed
			}
		case w.State() != timebox.Finished || (w.ClosedByExpiry() && w.WithinGrace(now)):
			return NewBusinessRuleError("phase2_open", "long responses are graded after phase 2 is finished", map[string]interface{}{
				"attempt_id": attempt.ID,
			})
		}

		if err := tx.Answer().SetHumanScore(ctx, answerID, score, caller.UserID, now); err != nil {
			return fmt.Errorf("failed to store grade: %w", err)
		}

		outcome, err = s.recompute(ctx, tx, attempt.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if expired != nil {
		s.phaseClosed(ctx, expired.attempt, models.Phase2, now, true, expired)
	}
	s.events.answerGraded(ctx, answer, score, caller.UserID, outcome.scores.GradingComplete)
	s.afterRecompute(ctx, outcome.attempt, outcome)

	return &HumanGradeResponse{
		AllGraded:       outcome.scores.GradingComplete,
		Finalized:       outcome.scores.Finalized(),
		Phase2Score:     outcome.scores.Phase2Score,
		FinalScore:      outcome.scores.FinalScore,
		CertificateTier: outcome.scores.CertificateTier,
	}, nil
}

// ListPending is the grading queue for one exam, oldest submission first.
func (s *gradingService) ListPending(ctx context.Context, examID uint, limit, offset int) ([]models.PendingGrade, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}
	if offset < 0 {
		offset = 0
	}

	content, err := s.loadContent(ctx, examID)
	if err != nil {
		return nil, err
	}
	// Attempts abandoned mid-phase would otherwise never reach the queue.
	if _, err := s.expireOverdue(ctx, content); err != nil {
		return nil, err
	}

	pending, err := s.repo.Answer().ListPendingByExam(ctx, examID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending grades: %w", err)
	}
	return pending, nil
}
