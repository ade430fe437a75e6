package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/SAP-F-2025/exam-attempt-service/internal/difficulty"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/pkg/monitoring"
)

type difficultyService struct {
	*attemptCore
	ops *ServiceLogger
}

// estimate is the computed outcome for one question before it is written.
type estimate struct {
	stats models.QuestionStatistics
	level *models.DifficultyLevel
}

type runCounts struct {
	mu           sync.Mutex
	processed    int
	skipped      int
	insufficient int
}

func (c *runCounts) add(items []estimate, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		switch {
		case failed:
			c.skipped++
		case it.level == nil:
			c.insufficient++
		default:
			c.processed++
		}
	}
}

// RunEstimation rates every machine-gradable question of an exam from the answers
// of attempts whose phase 1 has finished. Writes go out in chunks; a chunk that
// fails is retried item by item so one bad question only skips itself.
func (s *difficultyService) RunEstimation(ctx context.Context, examID uint) (result *DifficultyRunResult, err error) {
	start := s.now()
	defer func() {
		s.ops.LogOperation(ctx, "run_difficulty_estimation", "", examID, "exam", s.now().Sub(start), err)
	}()

	content, err := s.repo.Exam().GetContent(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam content: %w", err)
	}
	if _, err := s.expireOverdue(ctx, content); err != nil {
		return nil, err
	}

	tallies, err := s.repo.Answer().TallyByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to tally answers: %w", err)
	}
	byQuestion := make(map[uint]models.AnswerTally, len(tallies))
	for _, t := range tallies {
		byQuestion[t.QuestionID] = t
	}

	items := s.estimates(content, byQuestion)

	batchSize := s.cfg.DifficultyBatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	workers := s.cfg.DifficultyWorkers
	if workers <= 0 {
		workers = 1
	}

	counts := &runCounts{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(items); lo += batchSize {
		hi := lo + batchSize
		if hi > len(items) {
			hi = len(items)
		}
		chunk := items[lo:hi]
		g.Go(func() error {
			s.writeChunk(gctx, chunk, counts)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.content.Invalidate(ctx, examID)

	result = &DifficultyRunResult{
		ExamID:           examID,
		Processed:        counts.processed,
		Skipped:          counts.skipped,
		InsufficientData: counts.insufficient,
		Duration:         s.now().Sub(start),
	}
	monitoring.DifficultyRunDuration.Observe(result.Duration.Seconds())
	s.logger.Info("Difficulty estimation finished",
		"exam_id", examID,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"insufficient_data", result.InsufficientData)
	s.events.difficultyEstimated(ctx, result)
	return result, nil
}

func (s *difficultyService) estimates(content *models.ExamContent, tallies map[uint]models.AnswerTally) []estimate {
	now := s.now()
	items := make([]estimate, 0, len(content.Questions))
	for _, q := range content.Questions {
		if !q.Type.MachineGradable() {
			continue
		}
		t := tallies[q.ID]
		it := estimate{stats: models.QuestionStatistics{
			QuestionID:       q.ID,
			ExamID:           content.Exam.ID,
			TotalAttempts:    t.Total,
			CorrectAttempts:  t.Correct,
			PercentCorrect:   difficulty.PercentCorrect(t.Correct, t.Total),
			LastCalculatedAt: now,
		}}
		if t.Total == 0 || t.Total < s.cfg.DifficultyMinAttempts {
			it.stats.InsufficientData = true
		} else {
			level := difficulty.ForPercent(it.stats.PercentCorrect)
			it.level = &level
			it.stats.Difficulty = &level
		}
		items = append(items, it)
	}
	return items
}

func (s *difficultyService) writeChunk(ctx context.Context, chunk []estimate, counts *runCounts) {
	err := s.repo.Transaction(ctx, func(tx repositories.Repository) error {
		return writeEstimates(ctx, tx, chunk)
	})
	if err == nil {
		counts.add(chunk, false)
		return
	}
	s.logger.Warn("Difficulty chunk failed, retrying per question",
		"size", len(chunk),
		"error", err)

	for i := range chunk {
		item := chunk[i : i+1]
		err := s.repo.Transaction(ctx, func(tx repositories.Repository) error {
			return writeEstimates(ctx, tx, item)
		})
		if err != nil {
			s.logger.Error("Skipping question in difficulty run",
				"question_id", item[0].stats.QuestionID,
				"error", err)
		}
		counts.add(item, err != nil)
	}
}

func writeEstimates(ctx context.Context, tx repositories.Repository, items []estimate) error {
	stats := make([]models.QuestionStatistics, len(items))
	for i, it := range items {
		stats[i] = it.stats
	}
	if err := tx.Statistics().Upsert(ctx, stats); err != nil {
		return fmt.Errorf("failed to store statistics: %w", err)
	}
	for _, it := range items {
		if it.level == nil {
			continue
		}
		if err := tx.Exam().UpdateQuestionDifficulty(ctx, it.stats.QuestionID, *it.level); err != nil {
			return fmt.Errorf("failed to update difficulty of question %d: %w", it.stats.QuestionID, err)
		}
	}
	return nil
}
