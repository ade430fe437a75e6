// Package memory is an in-process Repository for local runs and tests.
// Transactions are serialized and roll back by restoring a snapshot, so
// GetForUpdate needs no extra locking.
//
// The snapshot covers the whole store. A write made outside any transaction
// while another transaction is running, such as a phase start or an activity
// signal, is lost if that transaction rolls back. Use the postgres package
// when concurrent writers matter.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories"
)

type answerKey struct {
	attemptID  uint
	questionID uint
}

type store struct {
	exams     map[uint]models.Exam
	questions map[uint]models.Question
	groups    map[uint]models.QuestionGroup
	attempts  map[uint]models.Attempt
	answers   map[uint]models.AnswerRecord
	answerIdx map[answerKey]uint
	stats     map[uint]models.QuestionStatistics
	signals   []models.ActivitySignal
	seq       map[string]uint
}

func newStore() *store {
	return &store{
		exams:     make(map[uint]models.Exam),
		questions: make(map[uint]models.Question),
		groups:    make(map[uint]models.QuestionGroup),
		attempts:  make(map[uint]models.Attempt),
		answers:   make(map[uint]models.AnswerRecord),
		answerIdx: make(map[answerKey]uint),
		stats:     make(map[uint]models.QuestionStatistics),
		seq:       make(map[string]uint),
	}
}

func (s *store) clone() *store {
	c := newStore()
	for k, v := range s.exams {
		c.exams[k] = v
	}
	for k, v := range s.questions {
		c.questions[k] = v
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	for k, v := range s.answers {
		c.answers[k] = v
	}
	for k, v := range s.answerIdx {
		c.answerIdx[k] = v
	}
	for k, v := range s.stats {
		c.stats[k] = v
	}
	c.signals = append(c.signals, s.signals...)
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

func (s *store) next(table string) uint {
	s.seq[table]++
	return s.seq[table]
}

type state struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data *store
}

// Repository implements repositories.Repository in memory.
type Repository struct {
	st   *state
	inTx bool
}

func New() *Repository {
	return &Repository{st: &state{data: newStore()}}
}

func (r *Repository) Exam() repositories.ExamRepository             { return examRepo{r.st} }
func (r *Repository) Attempt() repositories.AttemptRepository       { return attemptRepo{r.st} }
func (r *Repository) Answer() repositories.AnswerRepository         { return answerRepo{r.st} }
func (r *Repository) Statistics() repositories.StatisticsRepository { return statisticsRepo{r.st} }
func (r *Repository) Activity() repositories.ActivityRepository     { return activityRepo{r.st} }

func (r *Repository) Transaction(ctx context.Context, fn func(tx repositories.Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.st.txMu.Lock()
	defer r.st.txMu.Unlock()

	r.st.mu.Lock()
	snapshot := r.st.data.clone()
	r.st.mu.Unlock()

	if err := fn(&Repository{st: r.st, inTx: true}); err != nil {
		r.st.mu.Lock()
		r.st.data = snapshot
		r.st.mu.Unlock()
		return err
	}
	return nil
}

// AddExam stores authored content. IDs left at zero are assigned.
func (r *Repository) AddExam(content models.ExamContent) *models.ExamContent {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	s := r.st.data

	exam := content.Exam
	if exam.ID == 0 {
		exam.ID = s.next("exams")
	} else if exam.ID > s.seq["exams"] {
		s.seq["exams"] = exam.ID
	}
	if exam.Status == "" {
		exam.Status = models.StatusActive
	}
	s.exams[exam.ID] = exam

	out := &models.ExamContent{Exam: exam}
	for _, g := range content.Groups {
		g.ExamID = exam.ID
		if g.ID == 0 {
			g.ID = s.next("groups")
		} else if g.ID > s.seq["groups"] {
			s.seq["groups"] = g.ID
		}
		s.groups[g.ID] = g
		out.Groups = append(out.Groups, g)
	}
	for _, q := range content.Questions {
		q.ExamID = exam.ID
		if q.ID == 0 {
			q.ID = s.next("questions")
		} else if q.ID > s.seq["questions"] {
			s.seq["questions"] = q.ID
		}
		s.questions[q.ID] = q
		out.Questions = append(out.Questions, q)
	}
	return out
}

// AddQuestion appends a question to an existing exam.
func (r *Repository) AddQuestion(q models.Question) models.Question {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if q.ID == 0 {
		q.ID = r.st.data.next("questions")
	}
	r.st.data.questions[q.ID] = q
	return q
}

// RemoveQuestion deletes a question from content; existing answer records are kept.
func (r *Repository) RemoveQuestion(id uint) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	delete(r.st.data.questions, id)
}

// fixtureQuestion exposes the answer key, which the model keeps out of JSON.
type fixtureQuestion struct {
	models.Question
	CorrectAnswer     *string `json:"correct_answer"`
	CanonicalOptionID *string `json:"canonical_option_id"`
}

type fixtureExam struct {
	Exam      models.Exam            `json:"exam"`
	Groups    []models.QuestionGroup `json:"groups"`
	Questions []fixtureQuestion      `json:"questions"`
}

// LoadFixtures reads a JSON array of exam documents, answer keys included.
func (r *Repository) LoadFixtures(reader io.Reader) (int, error) {
	var fixtures []fixtureExam
	if err := json.NewDecoder(reader).Decode(&fixtures); err != nil {
		return 0, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	for _, fx := range fixtures {
		content := models.ExamContent{Exam: fx.Exam, Groups: fx.Groups}
		for _, fq := range fx.Questions {
			q := fq.Question
			q.CorrectAnswer = fq.CorrectAnswer
			q.CanonicalOptionID = fq.CanonicalOptionID
			content.Questions = append(content.Questions, q)
		}
		r.AddExam(content)
	}
	return len(fixtures), nil
}

// ===== EXAMS =====

type examRepo struct{ st *state }

func (e examRepo) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	exam, ok := e.st.data.exams[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &exam, nil
}

func (e examRepo) GetByCode(ctx context.Context, code string) (*models.Exam, error) {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	for _, exam := range e.st.data.exams {
		if exam.Code == code {
			found := exam
			return &found, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (e examRepo) GetContent(ctx context.Context, examID uint) (*models.ExamContent, error) {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	s := e.st.data

	exam, ok := s.exams[examID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	content := &models.ExamContent{Exam: exam}
	for _, q := range s.questions {
		if q.ExamID == examID {
			content.Questions = append(content.Questions, q)
		}
	}
	for _, g := range s.groups {
		if g.ExamID == examID {
			content.Groups = append(content.Groups, g)
		}
	}
	sort.Slice(content.Questions, func(i, j int) bool {
		a, b := content.Questions[i], content.Questions[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
	sort.Slice(content.Groups, func(i, j int) bool {
		a, b := content.Groups[i], content.Groups[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
	return content, nil
}

func (e examRepo) GetQuestion(ctx context.Context, id uint) (*models.Question, error) {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	q, ok := e.st.data.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &q, nil
}

func (e examRepo) UpdateQuestionDifficulty(ctx context.Context, questionID uint, level models.DifficultyLevel) error {
	e.st.mu.Lock()
	defer e.st.mu.Unlock()
	q, ok := e.st.data.questions[questionID]
	if !ok {
		return repositories.ErrNotFound
	}
	q.Difficulty = &level
	e.st.data.questions[questionID] = q
	return nil
}

// ===== ATTEMPTS =====

type attemptRepo struct{ st *state }

func (a attemptRepo) Create(ctx context.Context, attempt *models.Attempt) error {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	for _, existing := range a.st.data.attempts {
		if existing.ExamID == attempt.ExamID &&
			existing.TestTakerID == attempt.TestTakerID &&
			existing.AttemptNumber == attempt.AttemptNumber {
			return repositories.ErrDuplicate
		}
	}
	attempt.ID = a.st.data.next("attempts")
	now := time.Now()
	attempt.CreatedAt, attempt.UpdatedAt = now, now
	stored := *attempt
	stored.Answers = nil
	a.st.data.attempts[attempt.ID] = stored
	return nil
}

func (a attemptRepo) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	attempt, ok := a.st.data.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &attempt, nil
}

func (a attemptRepo) GetForUpdate(ctx context.Context, id uint) (*models.Attempt, error) {
	return a.GetByID(ctx, id)
}

func (a attemptRepo) GetActive(ctx context.Context, examID uint, testTakerID string) (*models.Attempt, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	var found *models.Attempt
	for _, attempt := range a.st.data.attempts {
		if attempt.ExamID != examID || attempt.TestTakerID != testTakerID || attempt.Status == models.AttemptCompleted {
			continue
		}
		if found == nil || attempt.AttemptNumber > found.AttemptNumber {
			candidate := attempt
			found = &candidate
		}
	}
	if found == nil {
		return nil, repositories.ErrNotFound
	}
	return found, nil
}

func (a attemptRepo) CountByTestTaker(ctx context.Context, examID uint, testTakerID string) (int, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	count := 0
	for _, attempt := range a.st.data.attempts {
		if attempt.ExamID == examID && attempt.TestTakerID == testTakerID {
			count++
		}
	}
	return count, nil
}

func (a attemptRepo) ListByExam(ctx context.Context, examID uint, filters repositories.AttemptFilters) ([]*models.Attempt, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	var out []*models.Attempt
	for _, attempt := range a.st.data.attempts {
		if attempt.ExamID != examID {
			continue
		}
		if filters.Status != "" && attempt.Status != filters.Status {
			continue
		}
		if filters.Finalized != nil && attempt.IsFinalized() != *filters.Finalized {
			continue
		}
		candidate := attempt
		out = append(out, &candidate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, filters.Limit, filters.Offset), nil
}

func (a attemptRepo) ListOverdue(ctx context.Context, examID uint, phase models.Phase, startedBefore time.Time) ([]*models.Attempt, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	var out []*models.Attempt
	for _, attempt := range a.st.data.attempts {
		started := attempt.StartedAt(phase)
		if attempt.ExamID != examID || started == nil || started.After(startedBefore) || attempt.FinishedAt(phase) != nil {
			continue
		}
		candidate := attempt
		out = append(out, &candidate)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := *out[i].StartedAt(phase), *out[j].StartedAt(phase)
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (a attemptRepo) MarkPhaseStarted(ctx context.Context, id uint, phase models.Phase, at time.Time) (bool, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	attempt, ok := a.st.data.attempts[id]
	if !ok {
		return false, nil
	}
	if attempt.StartedAt(phase) != nil || attempt.FinishedAt(phase) != nil {
		return false, nil
	}
	if phase == models.Phase2 && attempt.Phase1FinishedAt == nil {
		return false, nil
	}
	attempt.SetStartedAt(phase, at)
	attempt.UpdatedAt = at
	a.st.data.attempts[id] = attempt
	return true, nil
}

func (a attemptRepo) MarkPhaseFinished(ctx context.Context, id uint, phase models.Phase, at time.Time) (bool, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	attempt, ok := a.st.data.attempts[id]
	if !ok {
		return false, nil
	}
	if attempt.StartedAt(phase) == nil || attempt.FinishedAt(phase) != nil {
		return false, nil
	}
	attempt.SetFinishedAt(phase, at)
	attempt.Status = models.StatusAfterFinishing(phase)
	attempt.UpdatedAt = at
	a.st.data.attempts[id] = attempt
	return true, nil
}

func (a attemptRepo) UpdateScores(ctx context.Context, id uint, scores repositories.ScoreUpdate) error {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	attempt, ok := a.st.data.attempts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	attempt.Phase1Score = scores.Phase1Score
	attempt.Phase2Score = scores.Phase2Score
	attempt.FinalScore = scores.FinalScore
	attempt.GradingComplete = scores.GradingComplete
	attempt.CertificateTier = scores.CertificateTier
	attempt.FinalizedAt = scores.FinalizedAt
	attempt.UpdatedAt = time.Now()
	a.st.data.attempts[id] = attempt
	return nil
}

// ===== ANSWERS =====

type answerRepo struct{ st *state }

func (a answerRepo) SeedForAttempt(ctx context.Context, attemptID uint, questions []models.Question) error {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	s := a.st.data
	now := time.Now()
	for _, q := range questions {
		key := answerKey{attemptID, q.ID}
		if _, exists := s.answerIdx[key]; exists {
			continue
		}
		record := models.AnswerRecord{
			ID:           s.next("answers"),
			AttemptID:    attemptID,
			QuestionID:   q.ID,
			QuestionType: q.Type,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.answers[record.ID] = record
		s.answerIdx[key] = record.ID
	}
	return nil
}

func (a answerRepo) Upsert(ctx context.Context, answer *models.AnswerRecord) error {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	s := a.st.data
	now := time.Now()

	key := answerKey{answer.AttemptID, answer.QuestionID}
	id, exists := s.answerIdx[key]
	if !exists {
		answer.ID = s.next("answers")
		answer.CreatedAt, answer.UpdatedAt = now, now
		s.answers[answer.ID] = *answer
		s.answerIdx[key] = answer.ID
		return nil
	}

	existing := s.answers[id]
	existing.RawAnswer = answer.RawAnswer
	existing.ResolvedOptionID = answer.ResolvedOptionID
	existing.EvidenceRefs = answer.EvidenceRefs
	existing.SubmittedAt = answer.SubmittedAt
	if existing.QuestionType.MachineGradable() {
		existing.IsCorrect = answer.IsCorrect
		existing.MachineScore = answer.MachineScore
	}
	existing.UpdatedAt = now
	s.answers[id] = existing
	*answer = existing
	return nil
}

func (a answerRepo) GetByID(ctx context.Context, id uint) (*models.AnswerRecord, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	answer, ok := a.st.data.answers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &answer, nil
}

func (a answerRepo) ListByAttempt(ctx context.Context, attemptID uint) ([]models.AnswerRecord, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	var out []models.AnswerRecord
	for _, answer := range a.st.data.answers {
		if answer.AttemptID == attemptID {
			out = append(out, answer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (a answerRepo) SetHumanScore(ctx context.Context, id uint, score float64, gradedBy string, at time.Time) error {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	answer, ok := a.st.data.answers[id]
	if !ok {
		return repositories.ErrNotFound
	}
	answer.HumanScore = &score
	machine := score
	answer.MachineScore = &machine
	answer.GradedBy = &gradedBy
	answer.GradedAt = &at
	answer.UpdatedAt = at
	a.st.data.answers[id] = answer
	return nil
}

func (a answerRepo) ListPendingByExam(ctx context.Context, examID uint, limit, offset int) ([]models.PendingGrade, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	s := a.st.data

	type pendingItem struct {
		grade      models.PendingGrade
		finishedAt time.Time
	}
	var items []pendingItem
	for _, answer := range s.answers {
		if answer.QuestionType != models.LongResponse || answer.HumanScore != nil {
			continue
		}
		attempt, ok := s.attempts[answer.AttemptID]
		if !ok || attempt.ExamID != examID || attempt.Phase2FinishedAt == nil {
			continue
		}
		submitted := *attempt.Phase2FinishedAt
		if answer.SubmittedAt != nil {
			submitted = *answer.SubmittedAt
		}
		items = append(items, pendingItem{
			grade: models.PendingGrade{
				AnswerID:    answer.ID,
				AttemptID:   answer.AttemptID,
				QuestionID:  answer.QuestionID,
				TestTakerID: attempt.TestTakerID,
				RawAnswer:   answer.RawAnswer,
				Evidence:    answer.EvidenceRefs,
				MaxScore:    s.questions[answer.QuestionID].MaxScore,
				SubmittedAt: submitted,
			},
			finishedAt: *attempt.Phase2FinishedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].finishedAt.Equal(items[j].finishedAt) {
			return items[i].finishedAt.Before(items[j].finishedAt)
		}
		return items[i].grade.AnswerID < items[j].grade.AnswerID
	})

	out := make([]models.PendingGrade, 0, len(items))
	for _, it := range items {
		out = append(out, it.grade)
	}
	return paginate(out, limit, offset), nil
}

func (a answerRepo) TallyByExam(ctx context.Context, examID uint) ([]models.AnswerTally, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	s := a.st.data

	tallies := make(map[uint]*models.AnswerTally)
	for _, answer := range s.answers {
		if !answer.QuestionType.MachineGradable() {
			continue
		}
		attempt, ok := s.attempts[answer.AttemptID]
		if !ok || attempt.ExamID != examID || attempt.Phase1FinishedAt == nil {
			continue
		}
		t, ok := tallies[answer.QuestionID]
		if !ok {
			t = &models.AnswerTally{QuestionID: answer.QuestionID}
			tallies[answer.QuestionID] = t
		}
		t.Total++
		if answer.IsCorrect != nil && *answer.IsCorrect {
			t.Correct++
		}
	}

	out := make([]models.AnswerTally, 0, len(tallies))
	for _, t := range tallies {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

// ===== STATISTICS & ACTIVITY =====

type statisticsRepo struct{ st *state }

func (s statisticsRepo) Upsert(ctx context.Context, stats []models.QuestionStatistics) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	now := time.Now()
	for _, st := range stats {
		if existing, ok := s.st.data.stats[st.QuestionID]; ok {
			st.ID = existing.ID
			st.CreatedAt = existing.CreatedAt
		} else {
			st.ID = s.st.data.next("stats")
			st.CreatedAt = now
		}
		st.UpdatedAt = now
		s.st.data.stats[st.QuestionID] = st
	}
	return nil
}

func (s statisticsRepo) ListByExam(ctx context.Context, examID uint) ([]models.QuestionStatistics, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var out []models.QuestionStatistics
	for _, st := range s.st.data.stats {
		if st.ExamID == examID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

type activityRepo struct{ st *state }

func (a activityRepo) Create(ctx context.Context, signal *models.ActivitySignal) error {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	signal.ID = a.st.data.next("signals")
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = time.Now()
	}
	a.st.data.signals = append(a.st.data.signals, *signal)
	return nil
}

func (a activityRepo) ListByAttempt(ctx context.Context, attemptID uint) ([]models.ActivitySignal, error) {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	var out []models.ActivitySignal
	for _, sig := range a.st.data.signals {
		if sig.AttemptID == attemptID {
			out = append(out, sig)
		}
	}
	return out, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
