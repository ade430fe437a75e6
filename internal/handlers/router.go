package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/exam-attempt-service/internal/cache"
	"github.com/SAP-F-2025/exam-attempt-service/internal/middleware"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/services"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
	"github.com/SAP-F-2025/exam-attempt-service/pkg/monitoring"
)

type HandlerManager struct {
	attemptHandler *AttemptHandler
	gradingHandler *GradingHandler
	adminHandler   *AdminHandler

	authenticator middleware.Authenticator
	submitLimiter *middleware.RateLimiter
	logger        utils.Logger
}

func NewHandlerManager(
	svc *services.Services,
	content *cache.ContentCache,
	authenticator middleware.Authenticator,
	submitLimiter *middleware.RateLimiter,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler: NewAttemptHandler(svc.Attempt, logger),
		gradingHandler: NewGradingHandler(svc.Grading, logger),
		adminHandler:   NewAdminHandler(svc.Attempt, svc.Difficulty, svc.Export, content, logger),
		authenticator:  authenticator,
		submitLimiter:  submitLimiter,
		logger:         logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.Use(
		gin.Recovery(),
		utils.RequestID(hm.logger),
		utils.AccessLog(hm.logger),
		monitoring.MetricsMiddleware(),
	)

	router.GET("/health", HealthCheck)
	router.GET("/metrics", monitoring.PrometheusHandler())

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(hm.authenticator, hm.logger))
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("", hm.attemptHandler.BeginAttempt)
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/questions", hm.attemptHandler.GetQuestions)
			attempts.POST("/:id/phases/:phase/start", hm.attemptHandler.StartPhase)
			attempts.POST("/:id/phases/:phase/finish", hm.attemptHandler.FinishPhase)
			attempts.POST("/:id/answers", hm.submitLimiter.Middleware(), hm.attemptHandler.SubmitAnswers)
			attempts.POST("/:id/activity", hm.attemptHandler.RecordActivity)
			attempts.GET("/:id/result", hm.attemptHandler.GetResult)
		}

		grading := v1.Group("/grading")
		grading.Use(middleware.RequireRole(models.RoleGrader, models.RoleAdmin))
		{
			grading.POST("/answers/:answer_id", hm.gradingHandler.GradeAnswer)
			grading.GET("/exams/:exam_id/pending", hm.gradingHandler.ListPending)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/exams/:exam_id/difficulty", hm.adminHandler.RunDifficulty)
			admin.POST("/exams/:exam_id/expire", hm.adminHandler.ExpireOverdue)
			admin.GET("/exams/:exam_id/difficulty/export", hm.adminHandler.ExportDifficulty)
			admin.GET("/exams/:exam_id/results/export", hm.adminHandler.ExportResults)
			admin.DELETE("/cache", hm.adminHandler.FlushContentCache)
		}
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
