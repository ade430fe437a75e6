package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// ContentCache keeps authored exam content (questions, groups) keyed by exam.
// Content is read on every attempt start and question render but changes rarely.
type ContentCache struct {
	backend CacheService
	ttl     time.Duration
	logger  *slog.Logger
}

func NewContentCache(backend CacheService, ttl time.Duration, logger *slog.Logger) *ContentCache {
	if backend == nil {
		backend = NewNoopCache()
	}
	return &ContentCache{backend: backend, ttl: ttl, logger: logger}
}

// answer keys are hidden from JSON on the model, so the cached form carries them separately
type cachedContent struct {
	Content models.ExamContent    `json:"content"`
	Keys    map[uint]cachedAnswer `json:"keys"`
}

type cachedAnswer struct {
	CorrectAnswer     *string `json:"correct_answer,omitempty"`
	CanonicalOptionID *string `json:"canonical_option_id,omitempty"`
}

func wrap(content *models.ExamContent) cachedContent {
	keys := make(map[uint]cachedAnswer, len(content.Questions))
	for _, q := range content.Questions {
		keys[q.ID] = cachedAnswer{CorrectAnswer: q.CorrectAnswer, CanonicalOptionID: q.CanonicalOptionID}
	}
	return cachedContent{Content: *content, Keys: keys}
}

func (c cachedContent) unwrap() *models.ExamContent {
	content := c.Content
	for i := range content.Questions {
		if key, ok := c.Keys[content.Questions[i].ID]; ok {
			content.Questions[i].CorrectAnswer = key.CorrectAnswer
			content.Questions[i].CanonicalOptionID = key.CanonicalOptionID
		}
	}
	return &content
}

func contentKey(examID uint) string {
	return fmt.Sprintf("exam:%d:content", examID)
}

// Load returns cached content, or calls fetch and stores the result.
// Cache failures are logged and fall through to fetch.
func (c *ContentCache) Load(ctx context.Context, examID uint, fetch func(ctx context.Context) (*models.ExamContent, error)) (*models.ExamContent, error) {
	var cached cachedContent
	err := c.backend.Get(ctx, contentKey(examID), &cached)
	if err == nil {
		return cached.unwrap(), nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("Exam content cache unavailable", "exam_id", examID, "error", err)
	}

	fresh, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.backend.Set(ctx, contentKey(examID), wrap(fresh), c.ttl); err != nil {
		c.logger.Warn("Failed to cache exam content", "exam_id", examID, "error", err)
	}
	return fresh, nil
}

func (c *ContentCache) Invalidate(ctx context.Context, examID uint) {
	if err := c.backend.Delete(ctx, contentKey(examID)); err != nil {
		c.logger.Warn("Failed to invalidate exam content", "exam_id", examID, "error", err)
	}
}

func (c *ContentCache) InvalidateAll(ctx context.Context) error {
	return c.backend.DeletePattern(ctx, "exam:*:content")
}
