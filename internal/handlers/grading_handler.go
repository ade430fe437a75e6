package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
}

func NewGradingHandler(gradingService services.GradingService, logger utils.Logger) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
	}
}

// GradeAnswer records a human grade for a long response answer
// @Summary Grade answer
// @Description Records a score between 0 and the question's maximum and recomputes the attempt
// @Tags grading
// @Accept json
// @Produce json
// @Param answer_id path uint true "Answer ID"
// @Param grade body services.HumanGradeRequest true "Grading data"
// @Success 200 {object} SuccessResponse{data=services.HumanGradeResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Router /grading/answers/{answer_id} [post]
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	answerID := h.parseIDParam(c, "answer_id")
	if answerID == 0 {
		return
	}

	var req services.HumanGradeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Grading answer", "answer_id", answerID)

	resp, err := h.gradingService.SubmitHumanGrade(c.Request.Context(), answerID, &req, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Answer graded", resp,
		"answer_id", answerID,
		"finalized", resp.Finalized)
}

// ListPending lists long response answers waiting for a grade
// @Summary List pending grades
// @Tags grading
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.PendingGrade
// @Router /grading/exams/{exam_id}/pending [get]
func (h *GradingHandler) ListPending(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	limit := h.parseIntQuery(c, "limit", 50)
	offset := h.parseIntQuery(c, "offset", 0)

	pending, err := h.gradingService.ListPending(c.Request.Context(), examID, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":  pending,
		"limit":  limit,
		"offset": offset,
	})
}
