package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

type beginRequest struct {
	ExamID   uint   `json:"exam_id"`
	ExamCode string `json:"exam_code" validate:"exam_selector"`
}

type answerRequest struct {
	QuestionID     uint   `json:"question_id" validate:"required"`
	Pairs          string `json:"pairs" validate:"matching_pairs"`
	StableOptionID string `json:"stable_option_id" validate:"stable_option_id"`
	Phase          int    `json:"phase" validate:"phase"`
	Signal         string `json:"signal" validate:"omitempty,activity_type"`
}

func TestExamSelector(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(beginRequest{ExamID: 3}))
	assert.NoError(t, v.Validate(beginRequest{ExamCode: "CERT-01"}))

	err := v.Validate(beginRequest{})
	require.Error(t, err)
	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, "exam_code", verrs[0].Field)
	assert.Equal(t, "exam_selector", verrs[0].Rule)
}

func TestCustomTags(t *testing.T) {
	v := New()

	valid := answerRequest{QuestionID: 1, Pairs: "1-B, 2-d", StableOptionID: "opt_1_C", Phase: 2, Signal: "tab_switch"}
	assert.NoError(t, v.Validate(valid))

	invalid := answerRequest{QuestionID: 1, Pairs: "1B", StableOptionID: "C", Phase: 3, Signal: "sneeze"}
	err := v.Validate(invalid)
	require.Error(t, err)

	rules := map[string]string{}
	for _, e := range err.(ValidationErrors) {
		rules[e.Field] = e.Rule
	}
	assert.Equal(t, map[string]string{
		"pairs":            "matching_pairs",
		"stable_option_id": "stable_option_id",
		"phase":            "phase",
		"signal":           "activity_type",
	}, rules)
}

func TestValidPairs(t *testing.T) {
	assert.True(t, ValidPairs("1-A"))
	assert.True(t, ValidPairs("1-A, 2-B,"))
	assert.False(t, ValidPairs(","))
	assert.False(t, ValidPairs("A-1"))
	assert.False(t, ValidPairs("1-"))
	assert.False(t, ValidPairs("1-B2"))
}

func TestValidateAnswerShapes(t *testing.T) {
	sv := NewSubmissionValidator()
	single := &models.Question{ID: 4, Type: models.SingleChoice}
	matching := &models.Question{ID: 5, Type: models.GroupedMatching}
	long := &models.Question{ID: 6, Type: models.LongResponse}

	assert.Empty(t, sv.ValidateAnswer("answers[0]", single, "b", "", nil))
	assert.Empty(t, sv.ValidateAnswer("answers[0]", single, "", "opt_4_B", nil))
	assert.Empty(t, sv.ValidateAnswer("answers[0]", single, "", "", nil))

	errs := sv.ValidateAnswer("answers[0]", single, "", "opt_9_B", nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "answers[0].stable_option_id", errs[0].Field)

	assert.Len(t, sv.ValidateAnswer("answers[1]", single, "B!", "", nil), 1)
	assert.Len(t, sv.ValidateAnswer("answers[1]", matching, "1:B", "", nil), 1)
	assert.Len(t, sv.ValidateAnswer("answers[1]", matching, "", "", []string{"file.pdf"}), 1)

	assert.Empty(t, sv.ValidateAnswer("answers[2]", long, "essay", "", []string{"s3://bucket/report.pdf"}))
	tooMany := make([]string, MaxEvidenceRefs+1)
	for i := range tooMany {
		tooMany[i] = "ref"
	}
	assert.Len(t, sv.ValidateAnswer("answers[2]", long, "essay", "", tooMany), 1)
}
