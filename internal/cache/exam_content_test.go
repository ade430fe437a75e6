package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
)

// mapCache stores JSON like the redis backend does, so hidden fields are dropped the same way.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	failGet bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = payload
	return nil
}

func (m *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return errors.New("connection refused")
	}
	payload, ok := m.entries[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (m *mapCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *mapCache) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleContent() *models.ExamContent {
	answer := "B"
	canonical := "opt_1_b"
	return &models.ExamContent{
		Exam: models.Exam{ID: 1, Code: "C-1"},
		Questions: []models.Question{
			{ID: 1, ExamID: 1, Type: models.SingleChoice, CorrectAnswer: &answer, CanonicalOptionID: &canonical, MaxScore: 2},
		},
	}
}

func TestContentCacheKeepsAnswerKeys(t *testing.T) {
	ctx := context.Background()
	backend := newMapCache()
	c := NewContentCache(backend, time.Minute, testLogger())

	calls := 0
	fetch := func(context.Context) (*models.ExamContent, error) {
		calls++
		return sampleContent(), nil
	}

	first, err := c.Load(ctx, 1, fetch)
	require.NoError(t, err)
	second, err := c.Load(ctx, 1, fetch)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	require.NotNil(t, second.Questions[0].CorrectAnswer)
	assert.Equal(t, *first.Questions[0].CorrectAnswer, *second.Questions[0].CorrectAnswer)
	assert.Equal(t, "opt_1_b", *second.Questions[0].CanonicalOptionID)
}

func TestContentCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	backend := newMapCache()
	c := NewContentCache(backend, time.Minute, testLogger())

	calls := 0
	fetch := func(context.Context) (*models.ExamContent, error) {
		calls++
		return sampleContent(), nil
	}

	_, _ = c.Load(ctx, 1, fetch)
	c.Invalidate(ctx, 1)
	_, _ = c.Load(ctx, 1, fetch)
	assert.Equal(t, 2, calls)

	require.NoError(t, c.InvalidateAll(ctx))
	assert.Empty(t, backend.entries)
}

func TestContentCacheFallsThroughOnBackendError(t *testing.T) {
	ctx := context.Background()
	backend := newMapCache()
	backend.failGet = true
	c := NewContentCache(backend, time.Minute, testLogger())

	content, err := c.Load(ctx, 1, func(context.Context) (*models.ExamContent, error) {
		return sampleContent(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "C-1", content.Exam.Code)
}

func TestContentCacheWithoutBackend(t *testing.T) {
	c := NewContentCache(nil, time.Minute, testLogger())
	boom := errors.New("db down")
	_, err := c.Load(context.Background(), 1, func(context.Context) (*models.ExamContent, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
