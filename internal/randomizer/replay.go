package randomizer

import (
	"strings"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// Placement is one question as a test-taker sees it.
type Placement struct {
	Question *models.Question
	// Letters[i] is the original letter shown at display position i.
	Letters []string
}

// EffectiveOrder replays a persisted order against current content. Questions
// removed since the attempt began are skipped; questions added since are appended
// in authored order with their options unshuffled.
func EffectiveOrder(order []uint, optionOrders []models.OptionOrder, content *models.ExamContent) []Placement {
	questions := content.QuestionByID()
	groups := content.GroupByID()

	stored := make(map[uint][]string, len(optionOrders))
	for _, o := range optionOrders {
		stored[o.QuestionID] = o.Letters
	}

	placements := make([]Placement, 0, len(content.Questions))
	seen := make(map[uint]bool, len(order))
	for _, id := range order {
		q, ok := questions[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		placements = append(placements, Placement{
			Question: q,
			Letters:  OptionOrderFor(stored[id], models.EffectiveOptions(q, groups)),
		})
	}

	var added []*models.Question
	for i := range content.Questions {
		if !seen[content.Questions[i].ID] {
			added = append(added, &content.Questions[i])
		}
	}
	sortAuthored(added)
	for _, q := range added {
		placements = append(placements, Placement{
			Question: q,
			Letters:  OptionOrderFor(nil, models.EffectiveOptions(q, groups)),
		})
	}

	return placements
}

// OptionOrderFor returns the stored order when it is a permutation of the current
// options, and the identity order otherwise.
func OptionOrderFor(stored []string, options []models.Option) []string {
	identity := originalLetters(options)
	if len(stored) != len(identity) {
		return identity
	}
	remaining := make(map[string]int, len(identity))
	for _, l := range identity {
		remaining[strings.ToUpper(l)]++
	}
	for _, l := range stored {
		key := strings.ToUpper(l)
		if remaining[key] == 0 {
			return identity
		}
		remaining[key]--
	}
	out := make([]string, len(stored))
	copy(out, stored)
	return out
}

// DisplayLetter is the label of display position i: A..Z, then AA, AB and so on.
func DisplayLetter(i int) string {
	var b []byte
	for i >= 0 {
		b = append([]byte{byte('A' + i%26)}, b...)
		i = i/26 - 1
	}
	return string(b)
}

// DisplayIndex is the inverse of DisplayLetter. ok is false for anything that is
// not a letter sequence.
func DisplayIndex(letter string) (int, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return 0, false
	}
	n := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, false
		}
		n = n*26 + int(r-'A') + 1
	}
	return n - 1, true
}
