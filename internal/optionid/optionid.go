// Package optionid maps between original option letters and stable option
// identifiers. Identifiers never change when display order is shuffled.
package optionid

import (
	"fmt"
	"strconv"
	"strings"
)

const prefix = "opt_"

// IdentifierFor returns the stable identifier of an original option letter.
func IdentifierFor(questionID uint, letter string) string {
	return fmt.Sprintf("%s%d_%s", prefix, questionID, strings.ToUpper(strings.TrimSpace(letter)))
}

// LetterFor recovers the original letter. ok is false for malformed identifiers.
func LetterFor(id string) (string, bool) {
	_, letter, ok := parse(id)
	return letter, ok
}

// QuestionFor recovers the owning question. ok is false for malformed identifiers.
func QuestionFor(id string) (uint, bool) {
	qid, _, ok := parse(id)
	return qid, ok
}

// Valid reports whether id has the identifier shape.
func Valid(id string) bool {
	_, _, ok := parse(id)
	return ok
}

func parse(id string) (uint, string, bool) {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, prefix) {
		return 0, "", false
	}
	rest := id[len(prefix):]
	sep := strings.LastIndexByte(rest, '_')
	if sep <= 0 || sep == len(rest)-1 {
		return 0, "", false
	}
	qid, err := strconv.ParseUint(rest[:sep], 10, 64)
	if err != nil {
		return 0, "", false
	}
	letter := strings.ToUpper(rest[sep+1:])
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, "", false
		}
	}
	return uint(qid), letter, true
}
