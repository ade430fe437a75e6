package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories/memory"
)

var testStart = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func strPtr(s string) *string    { return &s }
func f64Ptr(v float64) *float64  { return &v }
func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testExamConfig() config.ExamConfig {
	cfg := config.DefaultExamConfig()
	cfg.Phase1Duration = 10 * time.Minute
	cfg.Phase2Duration = 10 * time.Minute
	cfg.GracePeriod = 30 * time.Second
	cfg.DifficultyMinAttempts = 2
	cfg.DifficultyBatchSize = 2
	cfg.DifficultyWorkers = 2
	return cfg
}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	repo      *memory.Repository
	publisher *events.MockEventPublisher
	svc       *Services
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		repo:      memory.New(),
		publisher: events.NewMockEventPublisher(discardLogger()),
		now:       testStart,
	}
	f.svc = f.services(f.repo, f.publisher)
	return f
}

// services builds a service set over repo that shares the fixture clock.
func (f *fixture) services(repo repositories.Repository, publisher events.EventPublisher) *Services {
	return NewServices(Dependencies{
		Repo:      repo,
		Publisher: publisher,
		Logger:    discardLogger(),
		Exam:      testExamConfig(),
		Clock:     func() time.Time { return f.now },
	})
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// fullExam has three phase 1 items worth 100 in total and two long responses.
func (f *fixture) fullExam() *models.ExamContent {
	return f.repo.AddExam(models.ExamContent{
		Exam: models.Exam{Code: "FULL-1", Title: "Full exam"},
		Questions: []models.Question{
			{
				Type:   models.SingleChoice,
				Prompt: "Pick the right one",
				Options: []models.Option{
					{Letter: "A", Text: "Wrong"},
					{Letter: "B", Text: "Right"},
					{Letter: "C", Text: "Other"},
				},
				CorrectAnswer: strPtr("B"),
				MaxScore:      40,
			},
			{Type: models.ShortResponse, Prompt: "Capital of France", CorrectAnswer: strPtr("Paris"), MaxScore: 40},
			{Type: models.ShortResponse, Prompt: "Colour of the sky", CorrectAnswer: strPtr("blue"), MaxScore: 20},
			{Type: models.LongResponse, Prompt: "Essay one", MaxScore: 100},
			{Type: models.LongResponse, Prompt: "Essay two", MaxScore: 100},
		},
	})
}

// shortExam has no long responses, so it completes with phase 1.
func (f *fixture) shortExam() *models.ExamContent {
	return f.repo.AddExam(models.ExamContent{
		Exam: models.Exam{Code: "SHORT-1", Title: "Short exam"},
		Questions: []models.Question{
			{Type: models.ShortResponse, Prompt: "Capital of France", CorrectAnswer: strPtr("Paris"), MaxScore: 100},
		},
	})
}

func taker(id string) Caller {
	return Caller{UserID: id, Role: models.RoleTestTaker}
}

func grader() Caller {
	return Caller{UserID: "grader-1", Role: models.RoleGrader}
}

func (f *fixture) begin(examID uint, caller Caller) *AttemptResponse {
	f.t.Helper()
	resp, err := f.svc.Attempt.Begin(f.ctx, &BeginAttemptRequest{ExamID: examID}, caller)
	require.NoError(f.t, err)
	return resp
}

func (f *fixture) start(attemptID uint, phase models.Phase, caller Caller) *PhaseClock {
	f.t.Helper()
	clock, err := f.svc.Attempt.StartPhase(f.ctx, attemptID, phase, caller)
	require.NoError(f.t, err)
	return clock
}

func (f *fixture) finish(attemptID uint, phase models.Phase, caller Caller) *PhaseClock {
	f.t.Helper()
	clock, err := f.svc.Attempt.FinishPhase(f.ctx, attemptID, phase, caller)
	require.NoError(f.t, err)
	return clock
}

func (f *fixture) submit(attemptID uint, caller Caller, answers ...AnswerInput) error {
	_, err := f.svc.Attempt.SubmitAnswers(f.ctx, attemptID, &SubmitAnswersRequest{Answers: answers}, caller)
	return err
}

// stableOption finds the stable id of the option with the given text as shown to the caller.
func (f *fixture) stableOption(attemptID uint, caller Caller, questionID uint, text string) string {
	f.t.Helper()
	view, err := f.svc.Attempt.GetQuestions(f.ctx, attemptID, caller)
	require.NoError(f.t, err)
	for _, q := range view.Questions {
		if q.QuestionID != questionID {
			continue
		}
		for _, o := range q.Options {
			if o.Text == text {
				return o.StableOptionID
			}
		}
	}
	f.t.Fatalf("option %q not found on question %d", text, questionID)
	return ""
}

func (f *fixture) attempt(id uint) *models.Attempt {
	f.t.Helper()
	a, err := f.repo.Attempt().GetByID(f.ctx, id)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) answer(attemptID, questionID uint) models.AnswerRecord {
	f.t.Helper()
	answers, err := f.repo.Answer().ListByAttempt(f.ctx, attemptID)
	require.NoError(f.t, err)
	for _, a := range answers {
		if a.QuestionID == questionID {
			return a
		}
	}
	f.t.Fatalf("no answer record for question %d", questionID)
	return models.AnswerRecord{}
}
