package grading

import (
	"math"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// ScoreInput is everything the recompute step reads.
type ScoreInput struct {
	Phase1Finished bool
	Completed      bool
	Answers        []models.AnswerRecord
	Ladder         Ladder
}

// Scores is everything the recompute step writes.
type Scores struct {
	Phase1Score     *float64
	Phase2Score     *float64
	FinalScore      *float64
	GradingComplete bool
	CertificateTier *string
	LongTotal       int
	LongGraded      int
}

// Finalized reports whether a final score was produced.
func (s Scores) Finalized() bool {
	return s.FinalScore != nil
}

// Compute derives phase scores, final score and tier. It is a pure function of
// its input so repeated runs store identical results.
func Compute(in ScoreInput) Scores {
	var out Scores

	if in.Phase1Finished {
		sum := 0.0
		for _, a := range in.Answers {
			if a.QuestionType.MachineGradable() && a.MachineScore != nil {
				sum += *a.MachineScore
			}
		}
		out.Phase1Score = &sum
	}

	var humanSum float64
	for _, a := range in.Answers {
		if a.QuestionType != models.LongResponse {
			continue
		}
		out.LongTotal++
		if a.HumanScore != nil {
			out.LongGraded++
			humanSum += *a.HumanScore
		}
	}
	if out.LongGraded > 0 {
		mean := humanSum / float64(out.LongGraded)
		out.Phase2Score = &mean
	}
	out.GradingComplete = out.LongGraded == out.LongTotal

	if !out.GradingComplete || out.Phase1Score == nil || !in.Completed {
		return out
	}

	final := *out.Phase1Score
	if out.LongTotal > 0 {
		final = (*out.Phase1Score + *out.Phase2Score) / 2
	}
	final = Round2(final)
	out.FinalScore = &final
	if tier, ok := in.Ladder.TierFor(final); ok {
		out.CertificateTier = &tier
	}
	return out
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
