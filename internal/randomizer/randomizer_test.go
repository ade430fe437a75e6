package randomizer

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

func uintPtr(v uint) *uint { return &v }

func abcd() []models.Option {
	return []models.Option{{Letter: "A", Text: "a"}, {Letter: "B", Text: "b"}, {Letter: "C", Text: "c"}, {Letter: "D", Text: "d"}}
}

// sampleExam is 3 single-choice, one group of 2, 2 short responses and 1 long response.
func sampleExam() ([]models.Question, []models.QuestionGroup) {
	groups := []models.QuestionGroup{{ID: 100, ExamID: 1, Position: 1, Options: abcd()}}
	questions := []models.Question{
		{ID: 1, ExamID: 1, Position: 1, Type: models.SingleChoice, Options: abcd()},
		{ID: 2, ExamID: 1, Position: 2, Type: models.SingleChoice, Options: abcd()},
		{ID: 3, ExamID: 1, Position: 3, Type: models.SingleChoice, Options: abcd()},
		{ID: 4, ExamID: 1, GroupID: uintPtr(100), Position: 1, Type: models.GroupedMatching},
		{ID: 5, ExamID: 1, GroupID: uintPtr(100), Position: 2, Type: models.GroupedMatching},
		{ID: 6, ExamID: 1, Position: 4, Type: models.ShortResponse},
		{ID: 7, ExamID: 1, Position: 5, Type: models.ShortResponse},
		{ID: 8, ExamID: 1, Position: 6, Type: models.LongResponse},
	}
	return questions, groups
}

// multiGroupExam has two singles, three groups of 3, 1 and 2 sub-questions and a
// short response. Sub-question IDs do not follow their authored positions.
func multiGroupExam() ([]models.Question, []models.QuestionGroup) {
	groups := []models.QuestionGroup{
		{ID: 200, ExamID: 1, Position: 1, Options: abcd()},
		{ID: 300, ExamID: 1, Position: 2, Options: abcd()},
		{ID: 400, ExamID: 1, Position: 3, Options: abcd()},
	}
	questions := []models.Question{
		{ID: 1, ExamID: 1, Position: 1, Type: models.SingleChoice, Options: abcd()},
		{ID: 2, ExamID: 1, Position: 2, Type: models.SingleChoice, Options: abcd()},
		{ID: 12, ExamID: 1, GroupID: uintPtr(200), Position: 2, Type: models.GroupedMatching},
		{ID: 11, ExamID: 1, GroupID: uintPtr(200), Position: 3, Type: models.GroupedMatching},
		{ID: 10, ExamID: 1, GroupID: uintPtr(200), Position: 1, Type: models.GroupedMatching},
		{ID: 20, ExamID: 1, GroupID: uintPtr(300), Position: 1, Type: models.GroupedMatching},
		{ID: 31, ExamID: 1, GroupID: uintPtr(400), Position: 1, Type: models.GroupedMatching},
		{ID: 30, ExamID: 1, GroupID: uintPtr(400), Position: 2, Type: models.GroupedMatching},
		{ID: 40, ExamID: 1, Position: 3, Type: models.ShortResponse},
	}
	return questions, groups
}

func TestSourceIsDeterministic(t *testing.T) {
	a, b := NewSource(12345), NewSource(12345)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Uint32(), b.Uint32())
	}
}

func TestIntnRange(t *testing.T) {
	src := NewSource(7)
	for n := 1; n < 50; n++ {
		for i := 0; i < 20; i++ {
			v := src.Intn(n)
			assert.GreaterOrEqual(t, v, 0)
			assert.Less(t, v, n)
		}
	}
}

func TestNewSeedFitsIn32Bits(t *testing.T) {
	seed, err := NewSeed()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, seed, int64(0))
	assert.LessOrEqual(t, seed, int64(^uint32(0)))
}

func TestRandomizeWithSeedReproducible(t *testing.T) {
	questions, groups := sampleExam()
	first := RandomizeWithSeed(987654, questions, groups)

	// input order must not matter
	reversed := make([]models.Question, len(questions))
	for i := range questions {
		reversed[len(questions)-1-i] = questions[i]
	}
	second := RandomizeWithSeed(987654, reversed, groups)

	assert.Equal(t, first.QuestionOrder, second.QuestionOrder)
	assert.Equal(t, first.OptionOrders, second.OptionOrders)
	assert.Equal(t, int64(987654), first.Seed)
}

func TestRandomizeBucketLayout(t *testing.T) {
	questions, groups := sampleExam()

	for seed := int64(0); seed < 200; seed++ {
		res := RandomizeWithSeed(seed, questions, groups)
		require.Len(t, res.QuestionOrder, 8)

		singles := append([]uint(nil), res.QuestionOrder[0:3]...)
		sort.Slice(singles, func(i, j int) bool { return singles[i] < singles[j] })
		assert.Equal(t, []uint{1, 2, 3}, singles)

		// sub-questions stay contiguous and in position order
		assert.Equal(t, []uint{4, 5}, res.QuestionOrder[3:5])

		shorts := append([]uint(nil), res.QuestionOrder[5:7]...)
		sort.Slice(shorts, func(i, j int) bool { return shorts[i] < shorts[j] })
		assert.Equal(t, []uint{6, 7}, shorts)

		assert.Equal(t, uint(8), res.QuestionOrder[7])
	}
}

func TestRandomizeShufflesAcrossSeeds(t *testing.T) {
	questions, groups := sampleExam()
	seen := map[[3]uint]bool{}
	for seed := int64(0); seed < 200; seed++ {
		res := RandomizeWithSeed(seed, questions, groups)
		seen[[3]uint{res.QuestionOrder[0], res.QuestionOrder[1], res.QuestionOrder[2]}] = true
	}
	assert.Len(t, seen, 6, "every permutation of three single-choice items should appear")
}

func TestGroupsStayContiguousWhileGroupOrderVaries(t *testing.T) {
	questions, groups := multiGroupExam()
	members := map[uint][]uint{
		200: {10, 12, 11},
		300: {20},
		400: {31, 30},
	}
	groupOf := map[uint]uint{}
	for g, ids := range members {
		for _, id := range ids {
			groupOf[id] = g
		}
	}

	orders := map[[3]uint]bool{}
	for seed := int64(0); seed < 300; seed++ {
		res := RandomizeWithSeed(seed, questions, groups)
		require.Len(t, res.QuestionOrder, 9)
		assert.Equal(t, uint(40), res.QuestionOrder[8])

		block := res.QuestionOrder[2:8]
		var seq []uint
		for i := 0; i < len(block); {
			g, ok := groupOf[block[i]]
			require.True(t, ok, "seed %d: %d is not a grouped item", seed, block[i])
			want := members[g]
			require.LessOrEqual(t, i+len(want), len(block), "seed %d", seed)
			assert.Equal(t, want, block[i:i+len(want)], "seed %d: group %d", seed, g)
			seq = append(seq, g)
			i += len(want)
		}
		require.Len(t, seq, 3, "seed %d", seed)
		orders[[3]uint{seq[0], seq[1], seq[2]}] = true
	}
	assert.Len(t, orders, 6, "every order of the three groups should appear")
}

func TestOptionOrdersArePermutations(t *testing.T) {
	questions, groups := sampleExam()
	res := RandomizeWithSeed(42, questions, groups)

	// 3 single-choice + 2 grouped items carry options
	require.Len(t, res.OptionOrders, 5)
	for _, o := range res.OptionOrders {
		letters := append([]string(nil), o.Letters...)
		sort.Strings(letters)
		assert.Equal(t, []string{"A", "B", "C", "D"}, letters, "question %d", o.QuestionID)
	}
}

func TestSingleOptionKeepsIdentityOrder(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Type: models.SingleChoice, Options: []models.Option{{Letter: "A", Text: "only"}}},
	}
	res := RandomizeWithSeed(1, questions, nil)
	require.Len(t, res.OptionOrders, 1)
	assert.Equal(t, []string{"A"}, res.OptionOrders[0].Letters)
}

func TestOrphanedGroupItemsBecomeSingletons(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Type: models.GroupedMatching, GroupID: uintPtr(999), Position: 1, Options: abcd()},
		{ID: 2, Type: models.GroupedMatching, Position: 2, Options: abcd()},
		{ID: 3, Type: models.GroupedMatching, GroupID: uintPtr(10), Position: 1},
		{ID: 4, Type: models.GroupedMatching, GroupID: uintPtr(10), Position: 2},
	}
	groups := []models.QuestionGroup{{ID: 10, Options: abcd()}}

	for seed := int64(0); seed < 50; seed++ {
		res := RandomizeWithSeed(seed, questions, groups)
		require.Len(t, res.QuestionOrder, 4)
		idx := indexOf(res.QuestionOrder, 3)
		require.GreaterOrEqual(t, idx, 0)
		assert.Equal(t, uint(4), res.QuestionOrder[idx+1])
	}
}

func TestEffectiveOrderReplaysPersistedOrder(t *testing.T) {
	questions, groups := sampleExam()
	res := RandomizeWithSeed(2024, questions, groups)
	content := &models.ExamContent{Questions: questions, Groups: groups}

	placements := EffectiveOrder(res.QuestionOrder, res.OptionOrders, content)
	require.Len(t, placements, len(questions))
	for i, p := range placements {
		assert.Equal(t, res.QuestionOrder[i], p.Question.ID)
	}
	for _, o := range res.OptionOrders {
		p := placements[indexOf(res.QuestionOrder, o.QuestionID)]
		assert.Equal(t, o.Letters, p.Letters)
	}
}

func TestEffectiveOrderHandlesContentDrift(t *testing.T) {
	questions, groups := sampleExam()
	res := RandomizeWithSeed(11, questions, groups)

	// question 2 removed, questions 9 and 10 added afterwards
	var drifted []models.Question
	for _, q := range questions {
		if q.ID != 2 {
			drifted = append(drifted, q)
		}
	}
	drifted = append(drifted,
		models.Question{ID: 10, Position: 8, Type: models.SingleChoice, Options: abcd()},
		models.Question{ID: 9, Position: 7, Type: models.ShortResponse},
	)
	content := &models.ExamContent{Questions: drifted, Groups: groups}

	placements := EffectiveOrder(res.QuestionOrder, res.OptionOrders, content)
	require.Len(t, placements, 9)

	var ids []uint
	for _, p := range placements {
		ids = append(ids, p.Question.ID)
	}
	assert.NotContains(t, ids, uint(2))
	assert.Equal(t, []uint{9, 10}, ids[7:])
	assert.Equal(t, []string{"A", "B", "C", "D"}, placements[8].Letters)
}

func TestOptionOrderForFallsBackToIdentity(t *testing.T) {
	opts := abcd()
	assert.Equal(t, []string{"A", "B", "C", "D"}, OptionOrderFor(nil, opts))
	assert.Equal(t, []string{"A", "B", "C", "D"}, OptionOrderFor([]string{"A", "B"}, opts))
	assert.Equal(t, []string{"A", "B", "C", "D"}, OptionOrderFor([]string{"A", "B", "C", "E"}, opts))
	assert.Equal(t, []string{"D", "C", "B", "A"}, OptionOrderFor([]string{"D", "C", "B", "A"}, opts))
}

func TestDisplayLetters(t *testing.T) {
	assert.Equal(t, "A", DisplayLetter(0))
	assert.Equal(t, "Z", DisplayLetter(25))
	assert.Equal(t, "AA", DisplayLetter(26))
	assert.Equal(t, "AB", DisplayLetter(27))

	for i := 0; i < 100; i++ {
		idx, ok := DisplayIndex(DisplayLetter(i))
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}

	_, ok := DisplayIndex("")
	assert.False(t, ok)
	_, ok = DisplayIndex("1")
	assert.False(t, ok)

	idx, ok := DisplayIndex(" c ")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
}

func indexOf(ids []uint, id uint) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
