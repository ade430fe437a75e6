package postgres

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

var answerConflictColumns = []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}}

func (a *AnswerPostgreSQL) SeedForAttempt(ctx context.Context, attemptID uint, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	records := make([]models.AnswerRecord, 0, len(questions))
	for _, q := range questions {
		records = append(records, models.AnswerRecord{
			AttemptID:    attemptID,
			QuestionID:   q.ID,
			QuestionType: q.Type,
		})
	}

	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: answerConflictColumns, DoNothing: true}).
		CreateInBatches(records, 100).Error
}

// Upsert overwrites the submission in place. Long responses keep their grade.
func (a *AnswerPostgreSQL) Upsert(ctx context.Context, answer *models.AnswerRecord) error {
	columns := []string{"raw_answer", "resolved_option_id", "evidence_refs", "submitted_at", "updated_at"}
	if answer.QuestionType.MachineGradable() {
		columns = append(columns, "is_correct", "machine_score")
	}

	return a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   answerConflictColumns,
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(answer).Error
}

func (a *AnswerPostgreSQL) GetByID(ctx context.Context, id uint) (*models.AnswerRecord, error) {
	var answer models.AnswerRecord
	if err := a.db.WithContext(ctx).First(&answer, id).Error; err != nil {
		return nil, err
	}
	return &answer, nil
}

func (a *AnswerPostgreSQL) ListByAttempt(ctx context.Context, attemptID uint) ([]models.AnswerRecord, error) {
	var answers []models.AnswerRecord
	if err := a.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

// SetHumanScore records a grade. The machine score mirrors it for long responses.
func (a *AnswerPostgreSQL) SetHumanScore(ctx context.Context, id uint, score float64, gradedBy string, at time.Time) error {
	result := a.db.WithContext(ctx).
		Model(&models.AnswerRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"human_score":   score,
			"machine_score": score,
			"graded_by":     gradedBy,
			"graded_at":     at,
			"updated_at":    at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

type pendingRow struct {
	AnswerID     uint
	AttemptID    uint
	QuestionID   uint
	TestTakerID  string
	RawAnswer    string
	EvidenceRefs datatypes.JSONSlice[string]
	MaxScore     float64
	SubmittedAt  *time.Time
	FinishedAt   time.Time
}

// ListPendingByExam returns ungraded long responses of attempts that closed phase 2, oldest first
func (a *AnswerPostgreSQL) ListPendingByExam(ctx context.Context, examID uint, limit, offset int) ([]models.PendingGrade, error) {
	var rows []pendingRow

	query := a.db.WithContext(ctx).
		Table("answer_records AS ar").
		Select(`ar.id AS answer_id, ar.attempt_id, ar.question_id, att.test_taker_id, ar.raw_answer,
			ar.evidence_refs, q.max_score, ar.submitted_at, att.phase2_finished_at AS finished_at`).
		Joins("JOIN attempts AS att ON att.id = ar.attempt_id").
		Joins("JOIN questions AS q ON q.id = ar.question_id").
		Where("att.exam_id = ?", examID).
		Where("ar.question_type = ?", models.LongResponse).
		Where("ar.human_score IS NULL").
		Where("att.phase2_finished_at IS NOT NULL").
		Order("att.phase2_finished_at ASC, ar.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	pending := make([]models.PendingGrade, 0, len(rows))
	for _, r := range rows {
		submitted := r.FinishedAt
		if r.SubmittedAt != nil {
			submitted = *r.SubmittedAt
		}
		pending = append(pending, models.PendingGrade{
			AnswerID:    r.AnswerID,
			AttemptID:   r.AttemptID,
			QuestionID:  r.QuestionID,
			TestTakerID: r.TestTakerID,
			RawAnswer:   r.RawAnswer,
			Evidence:    r.EvidenceRefs,
			MaxScore:    r.MaxScore,
			SubmittedAt: submitted,
		})
	}
	return pending, nil
}

func (a *AnswerPostgreSQL) TallyByExam(ctx context.Context, examID uint) ([]models.AnswerTally, error) {
	var tallies []models.AnswerTally
	if err := a.db.WithContext(ctx).
		Table("answer_records AS ar").
		Select(`ar.question_id AS question_id, COUNT(*) AS total,
			SUM(CASE WHEN ar.is_correct THEN 1 ELSE 0 END) AS correct`).
		Joins("JOIN attempts AS att ON att.id = ar.attempt_id").
		Where("att.exam_id = ?", examID).
		Where("att.phase1_finished_at IS NOT NULL").
		Where("ar.question_type <> ?", models.LongResponse).
		Group("ar.question_id").
		Order("ar.question_id ASC").
		Scan(&tallies).Error; err != nil {
		return nil, err
	}
	return tallies, nil
}
