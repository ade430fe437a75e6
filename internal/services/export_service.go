package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

const exportTimeLayout = "2006-01-02 15:04:05"

type exportService struct {
	*attemptCore
}

// ExportDifficultyReport writes one row per machine-gradable question with the
// latest estimator figures. Questions never estimated get empty figures.
func (s *exportService) ExportDifficultyReport(ctx context.Context, examID uint) ([]byte, error) {
	content, err := s.repo.Exam().GetContent(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam content: %w", err)
	}

	stats, err := s.repo.Statistics().ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}
	byQuestion := make(map[uint]models.QuestionStatistics, len(stats))
	for _, st := range stats {
		byQuestion[st.QuestionID] = st
	}

	headers := []string{
		"Question ID", "Type", "Prompt", "Total Attempts", "Correct Attempts",
		"Percent Correct", "Difficulty", "Insufficient Data", "Last Calculated At",
	}

	var rows [][]interface{}
	for _, q := range content.Questions {
		if !q.Type.MachineGradable() {
			continue
		}
		row := []interface{}{q.ID, string(q.Type), q.Prompt}
		st, ok := byQuestion[q.ID]
		if !ok {
			row = append(row, "", "", "", "", "", "")
			rows = append(rows, row)
			continue
		}
		level := ""
		if st.Difficulty != nil {
			level = string(*st.Difficulty)
		}
		row = append(row,
			st.TotalAttempts,
			st.CorrectAttempts,
			st.PercentCorrect,
			level,
			st.InsufficientData,
			st.LastCalculatedAt.Format(exportTimeLayout))
		rows = append(rows, row)
	}

	return writeSheet("Difficulty", headers, rows)
}

// ExportAttemptResults writes one row per attempt of the exam.
func (s *exportService) ExportAttemptResults(ctx context.Context, examID uint) ([]byte, error) {
	if _, err := s.repo.Exam().GetByID(ctx, examID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	attempts, err := s.repo.Attempt().ListByExam(ctx, examID, repositories.AttemptFilters{})
	if err != nil {
		return nil, fmt.Errorf("failed to get exam attempts: %w", err)
	}

	headers := []string{
		"Attempt ID", "Test Taker", "Attempt", "Status", "Phase 1 Started", "Phase 2 Finished",
		"Phase 1 Score", "Phase 2 Score", "Final Score", "Certificate", "Finalized At",
	}

	rows := make([][]interface{}, 0, len(attempts))
	for _, a := range attempts {
		tier := ""
		if a.CertificateTier != nil {
			tier = *a.CertificateTier
		}
		rows = append(rows, []interface{}{
			a.ID,
			a.TestTakerID,
			a.AttemptNumber,
			string(a.Status),
			formatTime(a.Phase1StartedAt),
			formatTime(a.Phase2FinishedAt),
			scoreCell(a.Phase1Score),
			scoreCell(a.Phase2Score),
			scoreCell(a.FinalScore),
			tier,
			formatTime(a.FinalizedAt),
		})
	}

	return writeSheet("Results", headers, rows)
}

func writeSheet(sheetName string, headers []string, rows [][]interface{}) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for r, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func scoreCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportTimeLayout)
}
