package services

import (
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/cache"
	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/grading"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/exam-attempt-service/internal/validator"
)

// Dependencies are shared by every service.
type Dependencies struct {
	Repo      repositories.Repository
	Content   *cache.ContentCache
	Publisher events.EventPublisher
	Logger    *slog.Logger
	Validator *validator.Validator
	Exam      config.ExamConfig

	// Clock defaults to time.Now; tests pin it.
	Clock func() time.Time
}

type Services struct {
	Attempt    AttemptService
	Grading    GradingService
	Difficulty DifficultyService
	Export     ExportService
}

func NewServices(deps Dependencies) *Services {
	core := newAttemptCore(deps)
	return &Services{
		Attempt:    &attemptService{attemptCore: core},
		Grading:    &gradingService{attemptCore: core, ops: NewServiceLogger(core.logger, "grading")},
		Difficulty: &difficultyService{attemptCore: core, ops: NewServiceLogger(core.logger, "difficulty")},
		Export:     &exportService{attemptCore: core},
	}
}

// attemptCore holds what the attempt, grading and difficulty paths share,
// most importantly the single recompute step.
type attemptCore struct {
	repo      repositories.Repository
	content   *cache.ContentCache
	events    *attemptEvents
	logger    *slog.Logger
	validator *validator.Validator
	cfg       config.ExamConfig
	engine    *grading.Engine
	now       func() time.Time
}

func newAttemptCore(deps Dependencies) *attemptCore {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	content := deps.Content
	if content == nil {
		content = cache.NewContentCache(nil, 0, logger)
	}
	v := deps.Validator
	if v == nil {
		v = validator.New()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &attemptCore{
		repo:      deps.Repo,
		content:   content,
		events:    newAttemptEvents(deps.Publisher, logger),
		logger:    logger,
		validator: v,
		cfg:       deps.Exam,
		engine:    grading.NewEngine(),
		now:       func() time.Time { return clock().UTC() },
	}
}
