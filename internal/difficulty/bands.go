// Package difficulty maps percent-correct figures onto the nine difficulty bands.
package difficulty

import (
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

type band struct {
	min   float64
	level models.DifficultyLevel
}

// bands are checked top down; each entry applies from min (inclusive) upward.
var bands = []band{
	{90, models.DifficultyVeryEasy},
	{80, models.DifficultyEasy},
	{70, models.DifficultyModeratelyEasy},
	{60, models.DifficultySomewhatEasy},
	{40, models.DifficultyMedium},
	{30, models.DifficultySomewhatHard},
	{20, models.DifficultyModeratelyHard},
	{10, models.DifficultyHard},
	{0, models.DifficultyVeryHard},
}

// Levels lists every level from easiest to hardest.
func Levels() []models.DifficultyLevel {
	out := make([]models.DifficultyLevel, len(bands))
	for i, b := range bands {
		out[i] = b.level
	}
	return out
}

// ForPercent returns the band for a percent-correct value in [0, 100].
// Out-of-range input is clamped.
func ForPercent(percent float64) models.DifficultyLevel {
	for _, b := range bands {
		if percent >= b.min {
			return b.level
		}
	}
	return models.DifficultyVeryHard
}

// Rank is 1 for very easy through 9 for very hard, 0 for unknown levels.
func Rank(level models.DifficultyLevel) int {
	for i, b := range bands {
		if b.level == level {
			return i + 1
		}
	}
	return 0
}

// PercentCorrect returns 0 when total is 0.
func PercentCorrect(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) * 100 / float64(total)
}
