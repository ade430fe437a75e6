package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// BeginAttempt creates a new attempt or resumes the caller's open one
// @Summary Begin attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.BeginAttemptRequest true "Exam selector"
// @Success 201 {object} SuccessResponse{data=services.AttemptResponse}
// @Success 200 {object} SuccessResponse{data=services.AttemptResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /attempts [post]
func (h *AttemptHandler) BeginAttempt(c *gin.Context) {
	var req services.BeginAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Beginning attempt", "exam_id", req.ExamID, "exam_code", req.ExamCode)

	attempt, err := h.attemptService.Begin(c.Request.Context(), &req, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	h.RespondWithSuccess(c, status, "Attempt ready", attempt, "attempt_id", attempt.ID)
}

// GetAttempt returns the attempt and its phase clocks
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	attempt, err := h.attemptService.Get(c.Request.Context(), id, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetQuestions returns the attempt's questions in its shuffled order
// @Summary Get attempt questions
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptQuestionsResponse
// @Router /attempts/{id}/questions [get]
func (h *AttemptHandler) GetQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	questions, err := h.attemptService.GetQuestions(c.Request.Context(), id, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// StartPhase opens a phase's time box
// @Summary Start phase
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param phase path int true "Phase (1 or 2)"
// @Success 200 {object} services.PhaseClock
// @Failure 409 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Router /attempts/{id}/phases/{phase}/start [post]
func (h *AttemptHandler) StartPhase(c *gin.Context) {
	id, phase, ok := h.parsePhaseParams(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting phase", "attempt_id", id, "phase", phase)

	clock, err := h.attemptService.StartPhase(c.Request.Context(), id, phase, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, clock)
}

// FinishPhase closes a phase early
// @Summary Finish phase
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param phase path int true "Phase (1 or 2)"
// @Success 200 {object} services.PhaseClock
// @Router /attempts/{id}/phases/{phase}/finish [post]
func (h *AttemptHandler) FinishPhase(c *gin.Context) {
	id, phase, ok := h.parsePhaseParams(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Finishing phase", "attempt_id", id, "phase", phase)

	clock, err := h.attemptService.FinishPhase(c.Request.Context(), id, phase, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, clock)
}

// SubmitAnswers stores a batch of answers for the running phase
// @Summary Submit answers
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answers body services.SubmitAnswersRequest true "Answers"
// @Success 200 {object} services.SubmitAnswersResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /attempts/{id}/answers [post]
func (h *AttemptHandler) SubmitAnswers(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SubmitAnswersRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.attemptService.SubmitAnswers(c.Request.Context(), id, &req, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RecordActivity stores a proctoring signal
// @Summary Record activity
// @Tags attempts
// @Accept json
// @Param id path uint true "Attempt ID"
// @Param activity body services.ActivityRequest true "Signal"
// @Success 202
// @Router /attempts/{id}/activity [post]
func (h *AttemptHandler) RecordActivity(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.ActivityRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.UserAgent = c.Request.UserAgent()
	req.IPAddress = c.ClientIP()

	if err := h.attemptService.RecordActivity(c.Request.Context(), id, &req, caller(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}

// GetResult returns phase scores, the final score and the certificate tier
// @Summary Get attempt result
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResult
// @Router /attempts/{id}/result [get]
func (h *AttemptHandler) GetResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), id, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AttemptHandler) parsePhaseParams(c *gin.Context) (uint, models.Phase, bool) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return 0, 0, false
	}
	n, err := strconv.Atoi(c.Param("phase"))
	phase := models.Phase(n)
	if err != nil || !phase.IsValid() {
		h.respondWithCode(c, http.StatusBadRequest, "Phase must be 1 or 2", "invalid_param", err)
		return 0, 0, false
	}
	return id, phase, true
}
