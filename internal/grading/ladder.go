package grading

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Rung is one certificate threshold.
type Rung struct {
	MinScore float64 `json:"min_score"`
	Tier     string  `json:"tier"`
}

// Ladder is kept sorted by MinScore, highest first.
type Ladder []Rung

func NewLadder(rungs ...Rung) Ladder {
	l := make(Ladder, len(rungs))
	copy(l, rungs)
	sort.SliceStable(l, func(i, j int) bool { return l[i].MinScore > l[j].MinScore })
	return l
}

// ParseLadder reads "70:A+,46:C". An empty string is an empty ladder.
func ParseLadder(s string) (Ladder, error) {
	var rungs []Rung
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		min, tier, ok := strings.Cut(part, ":")
		tier = strings.TrimSpace(tier)
		if !ok || tier == "" {
			return nil, fmt.Errorf("invalid ladder rung %q: expected min:tier", part)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(min), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ladder threshold %q: %w", min, err)
		}
		rungs = append(rungs, Rung{MinScore: v, Tier: tier})
	}
	return NewLadder(rungs...), nil
}

// TierFor returns the highest tier whose minimum the score meets.
func (l Ladder) TierFor(score float64) (string, bool) {
	for _, r := range l {
		if score >= r.MinScore {
			return r.Tier, true
		}
	}
	return "", false
}

func (l Ladder) String() string {
	parts := make([]string, len(l))
	for i, r := range l {
		parts[i] = strconv.FormatFloat(r.MinScore, 'f', -1, 64) + ":" + r.Tier
	}
	return strings.Join(parts, ",")
}
