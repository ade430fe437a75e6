package validator

import (
	"strings"
	"unicode/utf8"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/optionid"
	"github.com/SAP-F-2025/exam-attempt-service/internal/randomizer"
)

const (
	MaxShortResponseLength = 500
	MaxLongResponseLength  = 20000
	MaxEvidenceRefs        = 10
)

// SubmissionValidator checks the shape of an answer against its question type.
// Shape errors are rejected up front; a well formed but wrong answer is graded as incorrect.
type SubmissionValidator struct{}

func NewSubmissionValidator() *SubmissionValidator {
	return &SubmissionValidator{}
}

// ValidateAnswer checks one answer. field prefixes error field names, e.g. "answers[3]".
func (v *SubmissionValidator) ValidateAnswer(field string, q *models.Question, raw, stableOptionID string, evidence []string) ValidationErrors {
	var errs ValidationErrors
	add := func(name, message string, value interface{}) {
		errs = append(errs, ValidationError{Field: field + "." + name, Message: message, Value: value})
	}

	if stableOptionID != "" && q.Type != models.SingleChoice {
		add("stable_option_id", "is only accepted for single choice questions", stableOptionID)
	}
	if len(evidence) > 0 && q.Type != models.LongResponse {
		add("evidence_refs", "are only accepted for long response questions", len(evidence))
	}

	switch q.Type {
	case models.SingleChoice:
		v.validateSingleChoice(q, raw, stableOptionID, add)
	case models.GroupedMatching:
		if strings.TrimSpace(raw) != "" && !ValidPairs(raw) {
			add("raw_answer", "must be comma separated position-letter pairs", raw)
		}
	case models.ShortResponse:
		if utf8.RuneCountInString(raw) > MaxShortResponseLength {
			add("raw_answer", "is too long", utf8.RuneCountInString(raw))
		}
	case models.LongResponse:
		if utf8.RuneCountInString(raw) > MaxLongResponseLength {
			add("raw_answer", "is too long", utf8.RuneCountInString(raw))
		}
		if len(evidence) > MaxEvidenceRefs {
			add("evidence_refs", "has too many entries", len(evidence))
		}
		for _, ref := range evidence {
			if strings.TrimSpace(ref) == "" {
				add("evidence_refs", "must not contain empty references", ref)
				break
			}
		}
	default:
		add("question_id", "has an unsupported question type", q.Type)
	}
	return errs
}

func (v *SubmissionValidator) validateSingleChoice(q *models.Question, raw, stableOptionID string, add func(string, string, interface{})) {
	if stableOptionID != "" {
		if qid, ok := optionid.QuestionFor(stableOptionID); !ok || qid != q.ID {
			add("stable_option_id", "does not belong to this question", stableOptionID)
		}
		return
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || optionid.Valid(raw) {
		return
	}
	if _, ok := randomizer.DisplayIndex(raw); !ok {
		add("raw_answer", "must be an option letter", raw)
	}
}
