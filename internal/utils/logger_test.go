package utils

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestRequestScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	base := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	r := gin.New()
	r.Use(RequestID(base))
	r.GET("/ping", func(c *gin.Context) {
		LoggerFrom(c, nil).WithAttempt(7).Info("pong")
		c.String(http.StatusOK, RequestIDFrom(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc", w.Body.String())
	assert.Contains(t, buf.String(), "request_id=abc")
	assert.Contains(t, buf.String(), "attempt_id=7")
	assert.Contains(t, buf.String(), "path=/ping")
}

func TestLoggerFromFallsBackOutsideRequest(t *testing.T) {
	fallback := NewDevelopmentLogger()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Same(t, fallback, LoggerFrom(c, fallback))
}
