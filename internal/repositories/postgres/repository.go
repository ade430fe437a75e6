package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

// Repository bundles the PostgreSQL repositories over one *gorm.DB, which is
// either the pool or an open transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{db: db}
}

func (r *Repository) Exam() repositories.ExamRepository {
	return NewExamPostgreSQL(r.db)
}

func (r *Repository) Attempt() repositories.AttemptRepository {
	return NewAttemptPostgreSQL(r.db)
}

func (r *Repository) Answer() repositories.AnswerRepository {
	return NewAnswerPostgreSQL(r.db)
}

func (r *Repository) Statistics() repositories.StatisticsRepository {
	return NewStatisticsPostgreSQL(r.db)
}

func (r *Repository) Activity() repositories.ActivityRepository {
	return NewActivityPostgreSQL(r.db)
}

// Transaction nests as a savepoint when r is already bound to a transaction.
func (r *Repository) Transaction(ctx context.Context, fn func(tx repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}
