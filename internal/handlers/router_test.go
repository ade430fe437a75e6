package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-attempt-service/internal/cache"
	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/events"
	"github.com/SAP-F-2025/exam-attempt-service/internal/middleware"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	content *models.ExamContent
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.New()
	paris := "Paris"
	content := repo.AddExam(models.ExamContent{
		Exam: models.Exam{Code: "H-1", Title: "Geography"},
		Questions: []models.Question{
			{Type: models.ShortResponse, Prompt: "Capital of France?", CorrectAnswer: &paris, MaxScore: 50},
			{Type: models.LongResponse, Prompt: "Describe the Seine.", MaxScore: 100},
		},
	})

	contentCache := cache.NewContentCache(nil, 0, quiet)
	svc := services.NewServices(services.Dependencies{
		Repo:      repo,
		Content:   contentCache,
		Publisher: events.NewMockEventPublisher(quiet),
		Logger:    quiet,
		Exam:      config.DefaultExamConfig(),
	})

	router := gin.New()
	NewHandlerManager(svc, contentCache, middleware.HeaderAuthenticator{},
		middleware.NewRateLimiter(600, 100), utils.NewSlogLogger(quiet)).SetupRoutes(router)

	return &testServer{t: t, router: router, content: content}
}

func (s *testServer) do(method, path, user, role string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("X-User-Role", role)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) answer(path string, questionID uint, raw string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, path, "alice", "test_taker", services.SubmitAnswersRequest{
		Answers: []services.AnswerInput{{QuestionID: questionID, RawAnswer: raw}},
	})
}

func TestAttemptLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	q := s.content.Questions

	w := s.do(http.MethodPost, "/api/v1/attempts", "alice", "test_taker", gin.H{"exam_code": "H-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	begun := decode[struct {
		Data services.AttemptResponse `json:"data"`
	}](t, w)
	base := "/api/v1/attempts/" + jsonID(begun.Data.ID)

	w = s.answer(base+"/answers", q[0].ID, "paris")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "phase_not_started", decode[ErrorResponse](t, w).Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/phases/1/start", "alice", "test_taker", nil).Code)

	w = s.do(http.MethodPost, base+"/phases/2/start", "alice", "test_taker", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "phase_order", decode[ErrorResponse](t, w).Code)

	w = s.answer(base+"/answers", q[0].ID, "paris")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[services.SubmitAnswersResponse](t, w).Accepted)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/phases/1/finish", "alice", "test_taker", nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/phases/2/start", "alice", "test_taker", nil).Code)
	require.Equal(t, http.StatusOK, s.answer(base+"/answers", q[1].ID, "It flows through Paris.").Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, base+"/phases/2/finish", "alice", "test_taker", nil).Code)

	pendingPath := "/api/v1/grading/exams/" + jsonID(s.content.Exam.ID) + "/pending"
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, pendingPath, "alice", "test_taker", nil).Code)

	w = s.do(http.MethodGet, pendingPath, "gina", "grader", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[struct {
		Items []models.PendingGrade `json:"items"`
	}](t, w)
	require.Len(t, pending.Items, 1)

	w = s.do(http.MethodPost, "/api/v1/grading/answers/"+jsonID(pending.Items[0].AnswerID), "gina", "grader", gin.H{"score": 80})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	graded := decode[struct {
		Data services.HumanGradeResponse `json:"data"`
	}](t, w)
	assert.True(t, graded.Data.Finalized)

	w = s.do(http.MethodGet, base+"/result", "alice", "test_taker", nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[services.AttemptResult](t, w)
	require.NotNil(t, result.FinalScore)
	assert.Equal(t, 65.0, *result.FinalScore)
	require.NotNil(t, result.CertificateTier)
	assert.Equal(t, "C", *result.CertificateTier)

	w = s.do(http.MethodPost, "/api/v1/grading/answers/"+jsonID(pending.Items[0].AnswerID), "gina", "grader", gin.H{"score": 10})
	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestRequestValidationOverHTTP(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/attempts/1", "", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/v1/attempts/abc", "alice", "test_taker", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/attempts/42", "alice", "test_taker", nil).Code)

	w := s.do(http.MethodPost, "/api/v1/attempts", "alice", "test_taker", gin.H{"exam_code": "NOPE"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/v1/attempts", "alice", "test_taker", gin.H{"exam_code": "H-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	begun := decode[struct {
		Data services.AttemptResponse `json:"data"`
	}](t, w)

	w = s.do(http.MethodPost, "/api/v1/attempts/"+jsonID(begun.Data.ID)+"/phases/3/start", "alice", "test_taker", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/attempts/"+jsonID(begun.Data.ID), "mallory", "test_taker", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	examPath := "/api/v1/admin/exams/" + jsonID(s.content.Exam.ID)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, examPath+"/difficulty", "gina", "grader", nil).Code)

	w := s.do(http.MethodPost, examPath+"/difficulty", "root", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	run := decode[struct {
		Data services.DifficultyRunResult `json:"data"`
	}](t, w)
	assert.Equal(t, 1, run.Data.InsufficientData)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, examPath+"/expire", "gina", "grader", nil).Code)
	w = s.do(http.MethodPost, examPath+"/expire", "root", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	expiry := decode[struct {
		Data services.ExpiryResult `json:"data"`
	}](t, w)
	assert.Equal(t, s.content.Exam.ID, expiry.Data.ExamID)
	assert.Zero(t, expiry.Data.Closed)

	w = s.do(http.MethodGet, examPath+"/difficulty/export", "root", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "difficulty.xlsx")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/admin/exams/999/results/export", "root", "admin", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/v1/admin/cache", "root", "admin", nil).Code)
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(utils.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(utils.RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(utils.RequestIDHeader))
}

func jsonID(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
