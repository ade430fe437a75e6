package optionid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifierRoundTrip(t *testing.T) {
	id := IdentifierFor(42, "c")
	assert.Equal(t, "opt_42_C", id)

	letter, ok := LetterFor(id)
	assert.True(t, ok)
	assert.Equal(t, "C", letter)

	qid, ok := QuestionFor(id)
	assert.True(t, ok)
	assert.Equal(t, uint(42), qid)
}

func TestMalformedIdentifiers(t *testing.T) {
	cases := []string{
		"",
		"C",
		"opt_",
		"opt_42",
		"opt_42_",
		"opt__C",
		"opt_x_C",
		"opt_42_3",
		"option_42_C",
		"opt_-1_C",
	}

	for _, tc := range cases {
		t.Run(tc, func(t *testing.T) {
			_, ok := LetterFor(tc)
			assert.False(t, ok)
			_, ok = QuestionFor(tc)
			assert.False(t, ok)
			assert.False(t, Valid(tc))
		})
	}
}

func TestLowercaseLetterNormalized(t *testing.T) {
	letter, ok := LetterFor("opt_7_b")
	assert.True(t, ok)
	assert.Equal(t, "B", letter)
}
