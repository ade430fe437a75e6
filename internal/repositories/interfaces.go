package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// ErrNotFound is returned by non-gorm implementations. IsNotFoundError accepts both.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate reports a unique constraint violation. gorm reports it as
// gorm.ErrDuplicatedKey when the connection is opened with TranslateError.
var ErrDuplicate = errors.New("duplicate record")

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// Repository is the unit of work handed to services. Inside Transaction the
// callback receives a Repository bound to the transaction.
type Repository interface {
	Exam() ExamRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository
	Statistics() StatisticsRepository
	Activity() ActivityRepository

	Transaction(ctx context.Context, fn func(tx Repository) error) error
}

// ===== SHARED HELPER STRUCTS =====

// ScoreUpdate is written as a whole; nil fields clear the column.
type ScoreUpdate struct {
	Phase1Score     *float64
	Phase2Score     *float64
	FinalScore      *float64
	GradingComplete bool
	CertificateTier *string
	FinalizedAt     *time.Time
}

type AttemptFilters struct {
	Status    models.AttemptStatus `json:"status"`
	Finalized *bool                `json:"finalized"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
}
