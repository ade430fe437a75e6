package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/cache"
	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AdminHandler struct {
	BaseHandler
	attemptService    services.AttemptService
	difficultyService services.DifficultyService
	exportService     services.ExportService
	content           *cache.ContentCache
}

func NewAdminHandler(
	attemptService services.AttemptService,
	difficultyService services.DifficultyService,
	exportService services.ExportService,
	content *cache.ContentCache,
	logger utils.Logger,
) *AdminHandler {
	return &AdminHandler{
		BaseHandler:       NewBaseHandler(logger),
		attemptService:    attemptService,
		difficultyService: difficultyService,
		exportService:     exportService,
		content:           content,
	}
}

// RunDifficulty recomputes question difficulty for an exam
// @Summary Run difficulty estimation
// @Tags admin
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse{data=services.DifficultyRunResult}
// @Failure 404 {object} ErrorResponse
// @Router /admin/exams/{exam_id}/difficulty [post]
func (h *AdminHandler) RunDifficulty(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Running difficulty estimation", "exam_id", examID)

	result, err := h.difficultyService.RunEstimation(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Difficulty estimation finished", result,
		"exam_id", examID,
		"processed", result.Processed)
}

// ExpireOverdue closes phases left open past their grace window
// @Summary Close overdue phases
// @Tags admin
// @Produce json
// @Param exam_id path uint true "Exam ID"
// @Success 200 {object} SuccessResponse{data=services.ExpiryResult}
// @Failure 404 {object} ErrorResponse
// @Router /admin/exams/{exam_id}/expire [post]
func (h *AdminHandler) ExpireOverdue(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	result, err := h.attemptService.ExpireOverdue(c.Request.Context(), examID, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Overdue phases closed", result,
		"exam_id", examID,
		"closed", result.Closed)
}

// ExportDifficulty downloads the difficulty report as a spreadsheet
// @Summary Export difficulty report
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param exam_id path uint true "Exam ID"
// @Router /admin/exams/{exam_id}/difficulty/export [get]
func (h *AdminHandler) ExportDifficulty(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	report, err := h.exportService.ExportDifficultyReport(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.sendWorkbook(c, fmt.Sprintf("exam-%d-difficulty.xlsx", examID), report)
}

// ExportResults downloads every attempt's scores as a spreadsheet
// @Summary Export attempt results
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param exam_id path uint true "Exam ID"
// @Router /admin/exams/{exam_id}/results/export [get]
func (h *AdminHandler) ExportResults(c *gin.Context) {
	examID := h.parseIDParam(c, "exam_id")
	if examID == 0 {
		return
	}

	report, err := h.exportService.ExportAttemptResults(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.sendWorkbook(c, fmt.Sprintf("exam-%d-results.xlsx", examID), report)
}

// FlushContentCache drops every cached exam so edits made outside the service show up
// @Summary Flush exam content cache
// @Tags admin
// @Router /admin/cache [delete]
func (h *AdminHandler) FlushContentCache(c *gin.Context) {
	if err := h.content.InvalidateAll(c.Request.Context()); err != nil {
		h.RespondWithError(c, http.StatusBadGateway, "Failed to flush cache", err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Exam content cache flushed", nil)
}

func (h *AdminHandler) sendWorkbook(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}
