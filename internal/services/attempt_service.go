package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/exam-attempt-service/internal/grading"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/optionid"
	"github.com/SAP-F-2025/exam-attempt-service/internal/randomizer"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/timebox"
	"github.com/SAP-F-2025/exam-attempt-service/pkg/monitoring"
)

type attemptService struct {
	*attemptCore
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Begin(ctx context.Context, req *BeginAttemptRequest, caller Caller) (*AttemptResponse, error) {
	s.logger.Info("Beginning attempt",
		"exam_id", req.ExamID,
		"exam_code", req.ExamCode,
		"test_taker_id", caller.UserID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.findExam(ctx, req)
	if err != nil {
		return nil, err
	}
	if exam.Status != models.StatusActive {
		return nil, ErrExamNotActive
	}

	content, err := s.loadContent(ctx, exam.ID)
	if err != nil {
		return nil, err
	}
	if len(content.Questions) == 0 {
		return nil, NewBusinessRuleError("exam_not_assembled", "exam has no questions", map[string]interface{}{
			"exam_id": exam.ID,
		})
	}

	randomized, err := randomizer.Randomize(content)
	if err != nil {
		return nil, err
	}

	maxAttempts := exam.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = s.cfg.DefaultMaxAttempts
	}

	attempt, resumed, err := s.createOrResume(ctx, exam, content, randomized, maxAttempts, caller)
	if err != nil {
		return nil, err
	}

	outcome := "created"
	if resumed {
		outcome = "resumed"
		s.logger.Info("Resuming existing attempt", "attempt_id", attempt.ID)
	} else {
		s.logger.Info("Attempt created",
			"attempt_id", attempt.ID,
			"attempt_number", attempt.AttemptNumber,
			"questions", len(randomized.QuestionOrder))
	}
	monitoring.AttemptsStarted.WithLabelValues(outcome).Inc()
	s.events.attemptStarted(ctx, attempt, resumed)

	resp := s.toAttemptResponse(attempt, &content.Exam)
	resp.Resumed = resumed
	return resp, nil
}

func (s *attemptService) Get(ctx context.Context, attemptID uint, caller Caller) (*AttemptResponse, error) {
	attempt, err := s.readableAttempt(ctx, attemptID, caller)
	if err != nil {
		return nil, err
	}
	content, err := s.loadContent(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if err := s.expireDue(ctx, attempt, content, s.now()); err != nil {
		return nil, err
	}
	return s.toAttemptResponse(attempt, &content.Exam), nil
}

// GetQuestions replays the persisted order. Correct answers never leave the service.
func (s *attemptService) GetQuestions(ctx context.Context, attemptID uint, caller Caller) (*AttemptQuestionsResponse, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, caller, "view_questions")
	if err != nil {
		return nil, err
	}
	content, err := s.loadContent(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if err := s.expireDue(ctx, attempt, content, s.now()); err != nil {
		return nil, err
	}
	answers, err := s.repo.Answer().ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	byQuestion := make(map[uint]models.AnswerRecord, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a
	}

	groups := content.GroupByID()
	placements := randomizer.EffectiveOrder(attempt.QuestionOrder, attempt.OptionOrders, content)

	views := make([]QuestionView, 0, len(placements))
	for i, p := range placements {
		q := p.Question
		view := QuestionView{
			QuestionID: q.ID,
			Position:   i + 1,
			Type:       q.Type,
			Phase:      q.Type.Phase(),
			GroupID:    q.GroupID,
			Prompt:     q.Prompt,
			MaxScore:   q.MaxScore,
		}
		if q.GroupID != nil {
			if g, ok := groups[*q.GroupID]; ok {
				view.GroupPrompt = g.Prompt
			}
		}

		texts := make(map[string]string)
		for _, o := range models.EffectiveOptions(q, groups) {
			texts[strings.ToUpper(o.Letter)] = o.Text
		}
		for idx, letter := range p.Letters {
			view.Options = append(view.Options, OptionView{
				DisplayLetter:  randomizer.DisplayLetter(idx),
				StableOptionID: optionid.IdentifierFor(q.ID, letter),
				Text:           texts[strings.ToUpper(letter)],
			})
		}

		if a, ok := byQuestion[q.ID]; ok && a.SubmittedAt != nil {
			view.RawAnswer = a.RawAnswer
			view.EvidenceRefs = a.EvidenceRefs
		}
		views = append(views, view)
	}

	return &AttemptQuestionsResponse{AttemptID: attemptID, Questions: views}, nil
}

// ===== PHASE STATE MACHINE =====

func (s *attemptService) StartPhase(ctx context.Context, attemptID uint, phase models.Phase, caller Caller) (*PhaseClock, error) {
	if !phase.IsValid() {
		return nil, ValidationErrors{*NewValidationError("phase", "must be 1 or 2", int(phase))}
	}
	attempt, err := s.ownedAttempt(ctx, attemptID, caller, "start_phase")
	if err != nil {
		return nil, err
	}
	content, err := s.loadContent(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if phase == models.Phase2 {
		finished, err := s.expireIfDue(ctx, attempt, content, models.Phase1, now)
		if err != nil {
			return nil, err
		}
		if !finished {
			return nil, ErrPhaseOrder
		}
	}

	w := s.window(attempt, &content.Exam, phase)
	switch w.State() {
	case timebox.Finished:
		return nil, ErrPhaseFinished
	case timebox.Started:
		if w.Expired(now) {
			if err := s.finishPhase(ctx, attempt, content, phase, now, true); err != nil {
				return nil, err
			}
			return nil, ErrPhaseExpired
		}
		clock := s.clock(attempt, &content.Exam, phase, now)
		return &clock, nil
	}

	won, err := s.repo.Attempt().MarkPhaseStarted(ctx, attemptID, phase, now)
	if err != nil {
		return nil, fmt.Errorf("failed to start phase: %w", err)
	}

	refreshed, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	attempt = refreshed

	if !won {
		// Lost a race with a concurrent start or finish; report what is stored.
		switch s.window(attempt, &content.Exam, phase).State() {
		case timebox.Finished:
			return nil, ErrPhaseFinished
		case timebox.NotStarted:
			return nil, ErrPhaseOrder
		}
		clock := s.clock(attempt, &content.Exam, phase, now)
		return &clock, nil
	}

	monitoring.PhaseTransitions.WithLabelValues(strconv.Itoa(int(phase)), "start", "requested").Inc()
	s.logger.Info("Phase started", "attempt_id", attemptID, "phase", phase)
	s.events.phaseStarted(ctx, attempt, phase, now)

	clock := s.clock(attempt, &content.Exam, phase, now)
	return &clock, nil
}

// FinishPhase is idempotent: finishing a finished phase acknowledges again.
func (s *attemptService) FinishPhase(ctx context.Context, attemptID uint, phase models.Phase, caller Caller) (*PhaseClock, error) {
	if !phase.IsValid() {
		return nil, ValidationErrors{*NewValidationError("phase", "must be 1 or 2", int(phase))}
	}
	attempt, err := s.ownedAttempt(ctx, attemptID, caller, "finish_phase")
	if err != nil {
		return nil, err
	}
	content, err := s.loadContent(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	w := s.window(attempt, &content.Exam, phase)
	switch w.State() {
	case timebox.NotStarted:
		return nil, ErrPhaseNotStarted
	case timebox.Started:
		if err := s.finishPhase(ctx, attempt, content, phase, now, w.Expired(now)); err != nil {
			return nil, err
		}
	}

	clock := s.clock(attempt, &content.Exam, phase, now)
	return &clock, nil
}

// ===== ANSWERS =====

func (s *attemptService) SubmitAnswers(ctx context.Context, attemptID uint, req *SubmitAnswersRequest, caller Caller) (*SubmitAnswersResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	attempt, err := s.ownedAttempt(ctx, attemptID, caller, "submit_answers")
	if err != nil {
		return nil, err
	}
	if attempt.IsFinalized() {
		monitoring.SubmissionsRejected.WithLabelValues("finalized").Inc()
		return nil, ErrAttemptFinalized
	}
	content, err := s.loadContent(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	questions := content.QuestionByID()
	groups := content.GroupByID()

	var verrs ValidationErrors
	phases := make(map[models.Phase]bool)
	for i, a := range req.Answers {
		field := fmt.Sprintf("answers[%d]", i)
		q, ok := questions[a.QuestionID]
		if !ok {
			verrs = append(verrs, *NewValidationError(field+".question_id", "is not part of this exam", a.QuestionID))
			continue
		}
		verrs = append(verrs, s.validator.Submission().ValidateAnswer(field, q, a.RawAnswer, a.StableOptionID, a.EvidenceRefs)...)
		phases[q.Type.Phase()] = true
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	now := s.now()
	admitted := make(map[models.Phase]admission)
	for _, phase := range []models.Phase{models.Phase1, models.Phase2} {
		if !phases[phase] {
			continue
		}
		adm, err := s.admitSubmission(ctx, attempt, content, phase, now)
		if err != nil {
			if isRejection(err) {
				monitoring.SubmissionsRejected.WithLabelValues(TemporalCode(err)).Inc()
				s.logger.Info("Submission rejected",
					"attempt_id", attemptID,
					"phase", phase,
					"reason", err.Error())
			}
			return nil, err
		}
		admitted[phase] = adm
	}

	recomputeNeeded := false
	for _, adm := range admitted {
		if adm == admitClosed {
			recomputeNeeded = true
		}
	}

	var outcome *recomputeOutcome
	err = s.repo.Transaction(ctx, func(tx repositories.Repository) error {
		locked, err := tx.Attempt().GetForUpdate(ctx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to lock attempt: %w", err)
		}
		if locked.IsFinalized() {
			return ErrAttemptFinalized
		}

		for _, a := range req.Answers {
			q := questions[a.QuestionID]
			order := randomizer.OptionOrderFor(locked.OptionOrderFor(q.ID), models.EffectiveOptions(q, groups))
			result := s.engine.Check(q, grading.Submission{RawAnswer: a.RawAnswer, StableOptionID: a.StableOptionID}, order)

			submittedAt := now
			record := &models.AnswerRecord{
				AttemptID:        attemptID,
				QuestionID:       q.ID,
				QuestionType:     q.Type,
				RawAnswer:        a.RawAnswer,
				ResolvedOptionID: result.ResolvedOptionID,
				IsCorrect:        result.IsCorrect,
				MachineScore:     result.MachineScore,
				EvidenceRefs:     datatypes.NewJSONSlice(a.EvidenceRefs),
				SubmittedAt:      &submittedAt,
			}
			if err := tx.Answer().Upsert(ctx, record); err != nil {
				return fmt.Errorf("failed to store answer: %w", err)
			}
		}

		if recomputeNeeded {
			outcome, err = s.recompute(ctx, tx, attemptID)
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAttemptFinalized) {
			monitoring.SubmissionsRejected.WithLabelValues("finalized").Inc()
		}
		return nil, err
	}

	for _, a := range req.Answers {
		monitoring.AnswersSubmitted.WithLabelValues(string(questions[a.QuestionID].Type)).Inc()
	}
	s.logger.Debug("Answers stored", "attempt_id", attemptID, "count", len(req.Answers))

	if outcome != nil {
		s.afterRecompute(ctx, attempt, outcome)
	}

	// Late answers are in; close the phases whose time ran out.
	for _, phase := range []models.Phase{models.Phase1, models.Phase2} {
		if admitted[phase] != admitGrace {
			continue
		}
		if err := s.finishPhase(ctx, attempt, content, phase, now, true); err != nil {
			return nil, err
		}
	}

	return &SubmitAnswersResponse{
		Accepted: len(req.Answers),
		Phases:   s.clocks(attempt, &content.Exam, now),
	}, nil
}

type admission int

const (
	admitOpen   admission = iota + 1 // phase running
	admitGrace                       // deadline passed, phase still open, inside grace
	admitClosed                      // phase closed by expiry, inside grace
)

// admitSubmission applies the phase clock to the part of a batch touching phase.
// Past the grace window the phase is closed on the spot and the batch rejected.
// A phase the test-taker finished early accepts nothing.
func (s *attemptService) admitSubmission(ctx context.Context, attempt *models.Attempt, content *models.ExamContent, phase models.Phase, now time.Time) (admission, error) {
	w := s.window(attempt, &content.Exam, phase)

	switch w.State() {
	case timebox.NotStarted:
		return 0, ErrPhaseNotStarted

	case timebox.Started:
		if !w.Expired(now) {
			return admitOpen, nil
		}
		if w.WithinGrace(now) {
			return admitGrace, nil
		}
		if err := s.finishPhase(ctx, attempt, content, phase, now, true); err != nil {
			return 0, err
		}
		return 0, ErrPhaseExpired

	default:
		if !w.ClosedByExpiry() {
			return 0, ErrPhaseFinished
		}
		if !w.WithinGrace(now) {
			return 0, ErrPhaseExpired
		}
		return admitClosed, nil
	}
}

// ===== RESULTS & ACTIVITY =====

func (s *attemptService) GetResult(ctx context.Context, attemptID uint, caller Caller) (*AttemptResult, error) {
	attempt, err := s.readableAttempt(ctx, attemptID, caller)
	if err != nil {
		return nil, err
	}
	content, err := s.loadContent(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if err := s.expireDue(ctx, attempt, content, s.now()); err != nil {
		return nil, err
	}
	answers, err := s.repo.Answer().ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}

	result := &AttemptResult{
		AttemptID:       attempt.ID,
		Status:          attempt.Status,
		Phase1Score:     attempt.Phase1Score,
		Phase2Score:     attempt.Phase2Score,
		FinalScore:      attempt.FinalScore,
		GradingComplete: attempt.GradingComplete,
		CertificateTier: attempt.CertificateTier,
		FinalizedAt:     attempt.FinalizedAt,
	}
	for _, a := range answers {
		if a.QuestionType == models.LongResponse {
			result.LongTotal++
			if a.HumanGraded() {
				result.LongGraded++
			}
		}
	}
	return result, nil
}

// ExpireOverdue closes every phase of the exam that is open past its grace window,
// so abandoned attempts reach grading without their test-taker coming back.
func (s *attemptService) ExpireOverdue(ctx context.Context, examID uint, caller Caller) (*ExpiryResult, error) {
	if caller.Role != models.RoleAdmin {
		return nil, NewPermissionError(caller.UserID, examID, "exam", "expire_overdue", "admin only")
	}
	content, err := s.loadContent(ctx, examID)
	if err != nil {
		return nil, err
	}
	closed, err := s.expireOverdue(ctx, content)
	if err != nil {
		return nil, err
	}
	return &ExpiryResult{ExamID: examID, Closed: closed}, nil
}

// RecordActivity stores a client signal. Signals are advisory and never change
// the phase clock.
func (s *attemptService) RecordActivity(ctx context.Context, attemptID uint, req *ActivityRequest, caller Caller) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	attempt, err := s.ownedAttempt(ctx, attemptID, caller, "record_activity")
	if err != nil {
		return err
	}

	severity := req.Severity
	if severity == 0 {
		severity = 1
	}
	signal := &models.ActivitySignal{
		AttemptID:  attemptID,
		Type:       req.Type,
		Severity:   severity,
		QuestionID: req.QuestionID,
		TimeOffset: req.TimeOffset,
		UserAgent:  req.UserAgent,
		IPAddress:  req.IPAddress,
		CreatedAt:  s.now(),
	}
	if len(req.Data) > 0 {
		data, err := json.Marshal(req.Data)
		if err != nil {
			return NewValidationError("data", "must be a JSON object", nil)
		}
		signal.Data = datatypes.JSON(data)
	}

	if req.Type == models.SignalClientElapsed {
		s.logClockDrift(ctx, attempt, req.TimeOffset)
	}

	if err := s.repo.Activity().Create(ctx, signal); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	s.events.activityRecorded(ctx, signal)
	return nil
}

func (s *attemptService) logClockDrift(ctx context.Context, attempt *models.Attempt, clientSeconds int) {
	phase := models.Phase1
	if attempt.Phase2StartedAt != nil {
		phase = models.Phase2
	}
	started := attempt.StartedAt(phase)
	if started == nil {
		return
	}
	serverSeconds := int(s.now().Sub(*started).Seconds())
	s.logger.DebugContext(ctx, "Client elapsed report",
		"attempt_id", attempt.ID,
		"phase", phase,
		"client_seconds", clientSeconds,
		"server_seconds", serverSeconds,
		"drift_seconds", clientSeconds-serverSeconds)
}

// ===== HELPERS =====

// createOrResume hands back the test-taker's active attempt or creates the next
// one. Two concurrent begins can both miss the active attempt; the unique attempt
// number lets only one insert win and the other resumes what it created.
func (s *attemptService) createOrResume(ctx context.Context, exam *models.Exam, content *models.ExamContent, randomized *randomizer.Result, maxAttempts int, caller Caller) (*models.Attempt, bool, error) {
	var attempt *models.Attempt
	resumed := false

	err := s.repo.Transaction(ctx, func(tx repositories.Repository) error {
		active, err := tx.Attempt().GetActive(ctx, exam.ID, caller.UserID)
		if err == nil {
			attempt, resumed = active, true
			return nil
		}
		if !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to look up active attempt: %w", err)
		}

		count, err := tx.Attempt().CountByTestTaker(ctx, exam.ID, caller.UserID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		if maxAttempts > 0 && count >= maxAttempts {
			return NewBusinessRuleError("max_attempts_exceeded", "no attempts left for this exam", map[string]interface{}{
				"exam_id":      exam.ID,
				"max_attempts": maxAttempts,
				"used":         count,
			})
		}

		attempt = &models.Attempt{
			ExamID:        exam.ID,
			TestTakerID:   caller.UserID,
			AttemptNumber: count + 1,
			Status:        models.AttemptInProgress,
			Seed:          randomized.Seed,
			QuestionOrder: datatypes.NewJSONSlice(randomized.QuestionOrder),
			OptionOrders:  datatypes.NewJSONSlice(randomized.OptionOrders),
		}
		if err := tx.Attempt().Create(ctx, attempt); err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}
		if err := tx.Answer().SeedForAttempt(ctx, attempt.ID, content.Questions); err != nil {
			return fmt.Errorf("failed to seed answers: %w", err)
		}
		return nil
	})
	if err == nil {
		return attempt, resumed, nil
	}
	if !repositories.IsDuplicateError(err) {
		return nil, false, err
	}

	active, lookupErr := s.repo.Attempt().GetActive(ctx, exam.ID, caller.UserID)
	if lookupErr != nil {
		if repositories.IsNotFoundError(lookupErr) {
			s.logger.Warn("Attempt number taken by a concurrent begin",
				"exam_id", exam.ID,
				"test_taker_id", caller.UserID)
			return nil, false, ErrConflict
		}
		return nil, false, fmt.Errorf("failed to look up active attempt: %w", lookupErr)
	}
	return active, true, nil
}

func (s *attemptService) findExam(ctx context.Context, req *BeginAttemptRequest) (*models.Exam, error) {
	var exam *models.Exam
	var err error
	if req.ExamID != 0 {
		exam, err = s.repo.Exam().GetByID(ctx, req.ExamID)
	} else {
		exam, err = s.repo.Exam().GetByCode(ctx, strings.TrimSpace(req.ExamCode))
	}
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

func (s *attemptService) toAttemptResponse(attempt *models.Attempt, exam *models.Exam) *AttemptResponse {
	return &AttemptResponse{
		ID:            attempt.ID,
		ExamID:        attempt.ExamID,
		TestTakerID:   attempt.TestTakerID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		Phases:        s.clocks(attempt, exam, s.now()),
		CreatedAt:     attempt.CreatedAt,
	}
}
