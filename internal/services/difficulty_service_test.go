package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

// takeExam runs one test-taker through phase 1 with the given short answer for question 2.
func takeExam(t *testing.T, f *fixture, content *models.ExamContent, user, capital string) {
	t.Helper()
	caller := taker(user)
	q := content.Questions
	attempt := f.begin(content.Exam.ID, caller)
	f.start(attempt.ID, models.Phase1, caller)

	answers := []AnswerInput{{QuestionID: q[0].ID, StableOptionID: f.stableOption(attempt.ID, caller, q[0].ID, "Right")}}
	if capital != "" {
		answers = append(answers, AnswerInput{QuestionID: q[1].ID, RawAnswer: capital})
	}
	require.NoError(t, f.submit(attempt.ID, caller, answers...))
	f.finish(attempt.ID, models.Phase1, caller)
}

func populatedExam(t *testing.T, f *fixture) *models.ExamContent {
	t.Helper()
	content := f.fullExam()
	takeExam(t, f, content, "u1", "Paris")
	takeExam(t, f, content, "u2", "Lyon")
	takeExam(t, f, content, "u3", "")

	// an attempt still in phase 1 does not count
	f.start(f.begin(content.Exam.ID, taker("u4")).ID, models.Phase1, taker("u4"))
	return content
}

func difficultyOf(t *testing.T, f *fixture, questionID uint) *models.DifficultyLevel {
	t.Helper()
	q, err := f.repo.Exam().GetQuestion(f.ctx, questionID)
	require.NoError(t, err)
	return q.Difficulty
}

func TestRunEstimationRatesQuestions(t *testing.T) {
	f := newFixture(t)
	content := populatedExam(t, f)
	q := content.Questions

	result, err := f.svc.Difficulty.RunEstimation(f.ctx, content.Exam.ID)
	require.NoError(t, err)
	// q1, q2 rated; q3 answered by nobody but seeded, so it is rated too
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.InsufficientData)

	require.NotNil(t, difficultyOf(t, f, q[0].ID))
	assert.Equal(t, models.DifficultyVeryEasy, *difficultyOf(t, f, q[0].ID))
	assert.Equal(t, models.DifficultySomewhatHard, *difficultyOf(t, f, q[1].ID))
	assert.Equal(t, models.DifficultyVeryHard, *difficultyOf(t, f, q[2].ID))
	assert.Nil(t, difficultyOf(t, f, q[3].ID))

	stats, err := f.repo.Statistics().ListByExam(f.ctx, content.Exam.ID)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, 3, stats[1].TotalAttempts)
	assert.Equal(t, 1, stats[1].CorrectAttempts)
	assert.InDelta(t, 33.33, stats[1].PercentCorrect, 0.01)

	assert.Len(t, f.publisher.EventsOfType(events.EventDifficultyEstimated), 1)
}

func TestRunEstimationFlagsInsufficientData(t *testing.T) {
	f := newFixture(t)
	content := f.fullExam()
	takeExam(t, f, content, "u1", "Paris")

	added := f.repo.AddQuestion(models.Question{
		ExamID:        content.Exam.ID,
		Type:          models.ShortResponse,
		CorrectAnswer: strPtr("late"),
		MaxScore:      1,
	})

	result, err := f.svc.Difficulty.RunEstimation(f.ctx, content.Exam.ID)
	require.NoError(t, err)
	// one attempt is below the minimum of two; the added question has none
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 4, result.InsufficientData)
	assert.Nil(t, difficultyOf(t, f, content.Questions[0].ID))
	assert.Nil(t, difficultyOf(t, f, added.ID))

	stats, err := f.repo.Statistics().ListByExam(f.ctx, content.Exam.ID)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	for _, st := range stats {
		assert.True(t, st.InsufficientData)
		assert.Nil(t, st.Difficulty)
	}
}

// failingRepo fails difficulty writes for one question, inside and outside transactions.
type failingRepo struct {
	repositories.Repository
	failQuestion uint
}

func (r *failingRepo) Exam() repositories.ExamRepository {
	return failingExamRepo{ExamRepository: r.Repository.Exam(), failQuestion: r.failQuestion}
}

func (r *failingRepo) Transaction(ctx context.Context, fn func(tx repositories.Repository) error) error {
	return r.Repository.Transaction(ctx, func(tx repositories.Repository) error {
		return fn(&failingRepo{Repository: tx, failQuestion: r.failQuestion})
	})
}

type failingExamRepo struct {
	repositories.ExamRepository
	failQuestion uint
}

func (e failingExamRepo) UpdateQuestionDifficulty(ctx context.Context, questionID uint, level models.DifficultyLevel) error {
	if questionID == e.failQuestion {
		return errors.New("constraint violation")
	}
	return e.ExamRepository.UpdateQuestionDifficulty(ctx, questionID, level)
}

func TestRunEstimationFallsBackPerQuestion(t *testing.T) {
	f := newFixture(t)
	content := populatedExam(t, f)
	q := content.Questions

	svc := f.services(&failingRepo{Repository: f.repo, failQuestion: q[1].ID}, f.publisher)
	result, err := svc.Difficulty.RunEstimation(f.ctx, content.Exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Skipped)

	// q1 shared the failing chunk and was written on retry
	require.NotNil(t, difficultyOf(t, f, q[0].ID))
	assert.Equal(t, models.DifficultyVeryEasy, *difficultyOf(t, f, q[0].ID))
	assert.Nil(t, difficultyOf(t, f, q[1].ID))
	require.NotNil(t, difficultyOf(t, f, q[2].ID))

	stats, err := f.repo.Statistics().ListByExam(f.ctx, content.Exam.ID)
	require.NoError(t, err)
	assert.Len(t, stats, 2)
}

func TestRunEstimationUnknownExam(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Difficulty.RunEstimation(f.ctx, 404)
	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestExports(t *testing.T) {
	f := newFixture(t)
	content := populatedExam(t, f)
	_, err := f.svc.Difficulty.RunEstimation(f.ctx, content.Exam.ID)
	require.NoError(t, err)

	report, err := f.svc.Export.ExportDifficultyReport(f.ctx, content.Exam.ID)
	require.NoError(t, err)
	book, err := excelize.OpenReader(bytes.NewReader(report))
	require.NoError(t, err)
	rows, err := book.GetRows("Difficulty")
	require.NoError(t, err)
	assert.Len(t, rows, 4) // header + three machine-gradable questions
	assert.Equal(t, "Question ID", rows[0][0])
	assert.Equal(t, string(models.DifficultyVeryEasy), rows[1][6])

	results, err := f.svc.Export.ExportAttemptResults(f.ctx, content.Exam.ID)
	require.NoError(t, err)
	book, err = excelize.OpenReader(bytes.NewReader(results))
	require.NoError(t, err)
	rows, err = book.GetRows("Results")
	require.NoError(t, err)
	assert.Len(t, rows, 5) // header + four attempts
	assert.Equal(t, "u1", rows[1][1])

	_, err = f.svc.Export.ExportAttemptResults(f.ctx, 999)
	assert.ErrorIs(t, err, ErrExamNotFound)
}
