package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

func f64(v float64) *float64 { return &v }

func machineAnswer(score float64) models.AnswerRecord {
	return models.AnswerRecord{QuestionType: models.SingleChoice, MachineScore: f64(score)}
}

func longAnswer(human *float64) models.AnswerRecord {
	return models.AnswerRecord{QuestionType: models.LongResponse, HumanScore: human, MachineScore: human}
}

func testLadder(t *testing.T) Ladder {
	l, err := ParseLadder("70:A+,46:C")
	require.NoError(t, err)
	return l
}

func TestComputeFinalScoreAndTier(t *testing.T) {
	in := ScoreInput{
		Phase1Finished: true,
		Completed:      true,
		Answers: []models.AnswerRecord{
			machineAnswer(50),
			machineAnswer(30),
			longAnswer(f64(70)),
			longAnswer(f64(90)),
		},
		Ladder: testLadder(t),
	}

	out := Compute(in)
	require.NotNil(t, out.Phase1Score)
	assert.Equal(t, 80.0, *out.Phase1Score)
	require.NotNil(t, out.Phase2Score)
	assert.Equal(t, 80.0, *out.Phase2Score)
	require.NotNil(t, out.FinalScore)
	assert.Equal(t, 80.0, *out.FinalScore)
	require.NotNil(t, out.CertificateTier)
	assert.Equal(t, "A+", *out.CertificateTier)
	assert.True(t, out.GradingComplete)

	again := Compute(in)
	assert.Equal(t, out, again)
}

func TestComputePartialGradingKeepsFinalNull(t *testing.T) {
	out := Compute(ScoreInput{
		Phase1Finished: true,
		Completed:      true,
		Answers:        []models.AnswerRecord{machineAnswer(60), longAnswer(f64(40)), longAnswer(nil)},
		Ladder:         testLadder(t),
	})

	assert.False(t, out.GradingComplete)
	assert.Equal(t, 40.0, *out.Phase2Score, "running mean of graded items")
	assert.Nil(t, out.FinalScore)
	assert.Nil(t, out.CertificateTier)
	assert.Equal(t, 2, out.LongTotal)
	assert.Equal(t, 1, out.LongGraded)
}

func TestComputeRequiresPhase1AndCompletion(t *testing.T) {
	answers := []models.AnswerRecord{machineAnswer(60), longAnswer(f64(60))}

	out := Compute(ScoreInput{Phase1Finished: false, Completed: true, Answers: answers, Ladder: testLadder(t)})
	assert.Nil(t, out.Phase1Score)
	assert.Nil(t, out.FinalScore)

	out = Compute(ScoreInput{Phase1Finished: true, Completed: false, Answers: answers, Ladder: testLadder(t)})
	assert.NotNil(t, out.Phase1Score)
	assert.Nil(t, out.FinalScore)
}

func TestComputeWithoutLongResponses(t *testing.T) {
	out := Compute(ScoreInput{
		Phase1Finished: true,
		Completed:      true,
		Answers:        []models.AnswerRecord{machineAnswer(20), machineAnswer(25.556)},
		Ladder:         testLadder(t),
	})

	assert.True(t, out.GradingComplete)
	assert.Nil(t, out.Phase2Score)
	require.NotNil(t, out.FinalScore)
	assert.Equal(t, 45.56, *out.FinalScore)
	assert.Nil(t, out.CertificateTier, "below the lowest rung")
}

func TestComputeIgnoresUnansweredMachineItems(t *testing.T) {
	out := Compute(ScoreInput{
		Phase1Finished: true,
		Answers:        []models.AnswerRecord{machineAnswer(10), {QuestionType: models.ShortResponse}},
	})
	assert.Equal(t, 10.0, *out.Phase1Score)
}

func TestLadder(t *testing.T) {
	l, err := ParseLadder(" 46:C , 70:A+ ,60:B")
	require.NoError(t, err)
	assert.Equal(t, "70:A+,60:B,46:C", l.String())

	cases := []struct {
		score float64
		tier  string
		ok    bool
	}{
		{100, "A+", true},
		{70, "A+", true},
		{69.99, "B", true},
		{46, "C", true},
		{45.99, "", false},
	}
	for _, tc := range cases {
		tier, ok := l.TierFor(tc.score)
		assert.Equal(t, tc.ok, ok, tc.score)
		assert.Equal(t, tc.tier, tier, tc.score)
	}

	empty, err := ParseLadder("")
	require.NoError(t, err)
	_, ok := empty.TierFor(100)
	assert.False(t, ok)

	_, err = ParseLadder("70")
	assert.Error(t, err)
	_, err = ParseLadder("x:A")
	assert.Error(t, err)
}
