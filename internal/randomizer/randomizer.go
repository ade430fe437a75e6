// Package randomizer produces and replays the per-attempt question and option order.
package randomizer

import (
	"sort"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// Result is everything an attempt persists about its randomization.
type Result struct {
	Seed          int64
	QuestionOrder []uint
	OptionOrders  []models.OptionOrder
}

// Randomize draws a fresh seed and randomizes the content with it.
func Randomize(content *models.ExamContent) (*Result, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return RandomizeWithSeed(seed, content.Questions, content.Groups), nil
}

// RandomizeWithSeed is deterministic in (seed, questions, groups). Input slice
// order does not matter; everything is first put into authored order.
func RandomizeWithSeed(seed int64, questions []models.Question, groups []models.QuestionGroup) *Result {
	src := NewSource(seed)

	buckets := make(map[models.QuestionType][]*models.Question, len(models.QuestionTypes))
	for i := range questions {
		q := &questions[i]
		buckets[q.Type] = append(buckets[q.Type], q)
	}
	for _, b := range buckets {
		sortAuthored(b)
	}

	singles := buckets[models.SingleChoice]
	src.Shuffle(len(singles), func(i, j int) { singles[i], singles[j] = singles[j], singles[i] })

	units := groupUnits(buckets[models.GroupedMatching], groups)
	src.Shuffle(len(units), func(i, j int) { units[i], units[j] = units[j], units[i] })

	shorts := buckets[models.ShortResponse]
	src.Shuffle(len(shorts), func(i, j int) { shorts[i], shorts[j] = shorts[j], shorts[i] })

	ordered := make([]*models.Question, 0, len(questions))
	ordered = append(ordered, singles...)
	for _, u := range units {
		ordered = append(ordered, u...)
	}
	ordered = append(ordered, shorts...)
	ordered = append(ordered, buckets[models.LongResponse]...)

	groupIndex := indexGroups(groups)
	result := &Result{
		Seed:          seed,
		QuestionOrder: make([]uint, 0, len(ordered)),
	}
	for _, q := range ordered {
		result.QuestionOrder = append(result.QuestionOrder, q.ID)

		letters := originalLetters(models.EffectiveOptions(q, groupIndex))
		if len(letters) == 0 {
			continue
		}
		if len(letters) >= 2 {
			src.Shuffle(len(letters), func(i, j int) { letters[i], letters[j] = letters[j], letters[i] })
		}
		result.OptionOrders = append(result.OptionOrders, models.OptionOrder{
			QuestionID: q.ID,
			Letters:    letters,
		})
	}

	return result
}

// groupUnits returns the grouped items as shuffle units. Known groups come first
// in group order; sub-questions without a known group each form their own unit.
func groupUnits(grouped []*models.Question, groups []models.QuestionGroup) [][]*models.Question {
	sortedGroups := make([]models.QuestionGroup, len(groups))
	copy(sortedGroups, groups)
	sort.SliceStable(sortedGroups, func(i, j int) bool {
		if sortedGroups[i].Position != sortedGroups[j].Position {
			return sortedGroups[i].Position < sortedGroups[j].Position
		}
		return sortedGroups[i].ID < sortedGroups[j].ID
	})

	members := make(map[uint][]*models.Question)
	var orphans []*models.Question
	known := indexGroups(groups)
	for _, q := range grouped {
		if q.GroupID == nil {
			orphans = append(orphans, q)
			continue
		}
		if _, ok := known[*q.GroupID]; !ok {
			orphans = append(orphans, q)
			continue
		}
		members[*q.GroupID] = append(members[*q.GroupID], q)
	}

	units := make([][]*models.Question, 0, len(sortedGroups)+len(orphans))
	for _, g := range sortedGroups {
		if m := members[g.ID]; len(m) > 0 {
			units = append(units, m)
		}
	}
	for _, q := range orphans {
		units = append(units, []*models.Question{q})
	}
	return units
}

func sortAuthored(qs []*models.Question) {
	sort.SliceStable(qs, func(i, j int) bool {
		if qs[i].Position != qs[j].Position {
			return qs[i].Position < qs[j].Position
		}
		return qs[i].ID < qs[j].ID
	})
}

func indexGroups(groups []models.QuestionGroup) map[uint]*models.QuestionGroup {
	index := make(map[uint]*models.QuestionGroup, len(groups))
	for i := range groups {
		index[groups[i].ID] = &groups[i]
	}
	return index
}

func originalLetters(options []models.Option) []string {
	letters := make([]string, 0, len(options))
	for _, o := range options {
		letters = append(letters, o.Letter)
	}
	return letters
}
