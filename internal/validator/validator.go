package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/optionid"
)

// Validator combines struct tag validation with per-question answer checks
type Validator struct {
	structValidator     *validator.Validate
	submissionValidator *SubmissionValidator
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:     structValidator,
		submissionValidator: NewSubmissionValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate runs struct validation and converts failures to ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if converted := ToValidationErrors(err); len(converted) > 0 {
			return converted
		}
		return err
	}
	return nil
}

func (v *Validator) Submission() *SubmissionValidator {
	return v.submissionValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)
	validate.RegisterValidation("phase", validatePhase)
	validate.RegisterValidation("attempt_status", validateAttemptStatus)
	validate.RegisterValidation("activity_type", validateActivityType)
	validate.RegisterValidation("matching_pairs", validateMatchingPairs)
	validate.RegisterValidation("stable_option_id", validateStableOptionID)
	validate.RegisterValidation("exam_selector", validateExamSelector)

	// Report json names in field errors
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return models.QuestionType(fl.Field().String()).IsValid()
}

func validatePhase(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return models.Phase(fl.Field().Int()).IsValid()
	case reflect.String:
		return fl.Field().String() == "1" || fl.Field().String() == "2"
	}
	return false
}

func validateAttemptStatus(fl validator.FieldLevel) bool {
	switch models.AttemptStatus(fl.Field().String()) {
	case models.AttemptInProgress, models.AttemptPhase1Complete, models.AttemptCompleted:
		return true
	}
	return false
}

func validateActivityType(fl validator.FieldLevel) bool {
	return models.ActivitySignalType(fl.Field().String()).IsValid()
}

// validateMatchingPairs accepts "1-B, 2-D". Empty is left to required/omitempty.
func validateMatchingPairs(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if raw == "" {
		return true
	}
	return ValidPairs(raw)
}

func validateStableOptionID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || optionid.Valid(value)
}

// validateExamSelector sits on the exam code field and requires either it or a
// non-zero ExamID sibling.
func validateExamSelector(fl validator.FieldLevel) bool {
	if strings.TrimSpace(fl.Field().String()) != "" {
		return true
	}
	parent := fl.Parent()
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	id := parent.FieldByName("ExamID")
	if !id.IsValid() {
		return false
	}
	switch id.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return id.Uint() != 0
	}
	return false
}

// ValidPairs reports whether raw is a comma separated list of position-letter pairs.
func ValidPairs(raw string) bool {
	seen := 0
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		pos, letter, found := strings.Cut(tok, "-")
		pos, letter = strings.TrimSpace(pos), strings.TrimSpace(letter)
		if !found || pos == "" || letter == "" {
			return false
		}
		for _, r := range pos {
			if r < '0' || r > '9' {
				return false
			}
		}
		for _, r := range strings.ToUpper(letter) {
			if r < 'A' || r > 'Z' {
				return false
			}
		}
		seen++
	}
	return seen > 0
}
