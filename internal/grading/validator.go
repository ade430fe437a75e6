// Package grading checks submitted answers and derives attempt scores from them.
package grading

import (
	"strings"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/optionid"
	"github.com/SAP-F-2025/exam-attempt-service/internal/randomizer"
)

// Submission is one answer as received from the client.
type Submission struct {
	RawAnswer      string
	StableOptionID string
}

// Outcome is what gets written onto the answer record.
// A nil IsCorrect means the answer cannot be assessed by machine.
type Outcome struct {
	IsCorrect        *bool
	MachineScore     *float64
	ResolvedOptionID *string
}

// Strategy checks one question type. optionOrder is the attempt's display order
// of original letters; nil means identity order.
type Strategy interface {
	Check(q *models.Question, sub Submission, optionOrder []string) Outcome
}

// Engine routes by question type.
type Engine struct {
	strategies map[models.QuestionType]Strategy
}

func NewEngine() *Engine {
	return &Engine{
		strategies: map[models.QuestionType]Strategy{
			models.SingleChoice:    singleChoiceStrategy{},
			models.GroupedMatching: matchingStrategy{},
			models.ShortResponse:   shortResponseStrategy{},
			models.LongResponse:    longResponseStrategy{},
		},
	}
}

// Check never fails. Unknown types and unresolvable answers come back as not correct.
func (e *Engine) Check(q *models.Question, sub Submission, optionOrder []string) Outcome {
	s, ok := e.strategies[q.Type]
	if !ok {
		return verdict(q, false, nil)
	}
	return s.Check(q, sub, optionOrder)
}

// --- Strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Check(q *models.Question, sub Submission, optionOrder []string) Outcome {
	canonical, ok := CanonicalOptionID(q)

	submittedID := strings.TrimSpace(sub.StableOptionID)
	if submittedID == "" && optionid.Valid(sub.RawAnswer) {
		submittedID = strings.TrimSpace(sub.RawAnswer)
	}

	if submittedID != "" {
		qid, qok := optionid.QuestionFor(submittedID)
		letter, lok := optionid.LetterFor(submittedID)
		if !qok || !lok || qid != q.ID {
			return verdict(q, false, nil)
		}
		resolved := optionid.IdentifierFor(qid, letter)
		return verdict(q, ok && resolved == canonical, &resolved)
	}

	original, found := originalLetter(sub.RawAnswer, optionOrder, q)
	if !found {
		return verdict(q, false, nil)
	}
	resolved := optionid.IdentifierFor(q.ID, original)
	return verdict(q, ok && resolved == canonical, &resolved)
}

type matchingStrategy struct{}

func (matchingStrategy) Check(q *models.Question, sub Submission, optionOrder []string) Outcome {
	if q.CorrectAnswer == nil {
		return verdict(q, false, nil)
	}
	canonical := normalizePairs(*q.CorrectAnswer)
	if canonical == "" {
		return verdict(q, false, nil)
	}
	return verdict(q, strings.EqualFold(remapPairs(sub.RawAnswer, optionOrder, q), canonical), nil)
}

type shortResponseStrategy struct{}

func (shortResponseStrategy) Check(q *models.Question, sub Submission, _ []string) Outcome {
	if q.CorrectAnswer == nil {
		return verdict(q, false, nil)
	}
	answer := strings.TrimSpace(sub.RawAnswer)
	return verdict(q, answer != "" && strings.EqualFold(answer, strings.TrimSpace(*q.CorrectAnswer)), nil)
}

type longResponseStrategy struct{}

func (longResponseStrategy) Check(*models.Question, Submission, []string) Outcome {
	return Outcome{}
}

// --- Helpers ---

// CanonicalOptionID returns the correct option's stable identifier, preferring a
// pre-assigned one and falling back to the canonical letter.
func CanonicalOptionID(q *models.Question) (string, bool) {
	if q.CanonicalOptionID != nil {
		if letter, ok := optionid.LetterFor(*q.CanonicalOptionID); ok {
			if qid, _ := optionid.QuestionFor(*q.CanonicalOptionID); qid == q.ID {
				return optionid.IdentifierFor(q.ID, letter), true
			}
		}
	}
	if q.CorrectAnswer != nil && strings.TrimSpace(*q.CorrectAnswer) != "" {
		return optionid.IdentifierFor(q.ID, *q.CorrectAnswer), true
	}
	return "", false
}

func verdict(q *models.Question, correct bool, resolved *string) Outcome {
	score := 0.0
	if correct {
		score = q.MaxScore
	}
	return Outcome{IsCorrect: &correct, MachineScore: &score, ResolvedOptionID: resolved}
}

// originalLetter maps a display letter through the option order.
func originalLetter(display string, optionOrder []string, q *models.Question) (string, bool) {
	idx, ok := randomizer.DisplayIndex(display)
	if !ok {
		return "", false
	}
	order := optionOrder
	if order == nil {
		order = identityOrder(q)
	}
	if idx >= len(order) {
		return "", false
	}
	return strings.ToUpper(order[idx]), true
}

// identityOrder is used when an attempt has no stored order for a question.
// Grouped items carry their options on the group, so fall back to plain A, B, C.
func identityOrder(q *models.Question) []string {
	if len(q.Options) > 0 {
		letters := make([]string, len(q.Options))
		for i, o := range q.Options {
			letters[i] = o.Letter
		}
		return letters
	}
	letters := make([]string, 26)
	for i := range letters {
		letters[i] = randomizer.DisplayLetter(i)
	}
	return letters
}

// remapPairs rewrites "1-B, 2-D" from display letters to original letters.
// Tokens that cannot be resolved keep a marker so the comparison fails.
func remapPairs(raw string, optionOrder []string, q *models.Question) string {
	tokens := strings.Split(raw, ",")
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		pos, letter, ok := splitPair(tok)
		if !ok {
			out = append(out, "?")
			continue
		}
		original, found := originalLetter(letter, optionOrder, q)
		if !found {
			out = append(out, pos+"-?")
			continue
		}
		out = append(out, pos+"-"+original)
	}
	return strings.Join(out, ",")
}

func normalizePairs(canonical string) string {
	tokens := strings.Split(canonical, ",")
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		pos, letter, ok := splitPair(tok)
		if !ok {
			out = append(out, tok)
			continue
		}
		out = append(out, pos+"-"+strings.ToUpper(letter))
	}
	return strings.Join(out, ",")
}

func splitPair(tok string) (string, string, bool) {
	pos, letter, found := strings.Cut(tok, "-")
	pos, letter = strings.TrimSpace(pos), strings.TrimSpace(letter)
	if !found || pos == "" || letter == "" {
		return "", "", false
	}
	return pos, letter, true
}
