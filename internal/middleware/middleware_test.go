package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/SAP-F-2025/exam-attempt-service/internal/config"
	"github.com/SAP-F-2025/exam-attempt-service/internal/models"
	"github.com/SAP-F-2025/exam-attempt-service/internal/utils"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c), "role": Role(c)})
	})...)
	return r
}

func TestHeaderAuth(t *testing.T) {
	r := newRouter(Auth(HeaderAuthenticator{}, utils.NewDevelopmentLogger()), RequireRole(models.RoleGrader, models.RoleAdmin))

	tests := []struct {
		name   string
		userID string
		role   string
		want   int
	}{
		{"missing user", "", "", http.StatusUnauthorized},
		{"unknown role", "u1", "wizard", http.StatusUnauthorized},
		{"default role is test taker", "u1", "", http.StatusForbidden},
		{"grader allowed", "g1", "grader", http.StatusOK},
		{"admin allowed", "a1", "admin", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.userID != "" {
				req.Header.Set("X-User-ID", tt.userID)
			}
			if tt.role != "" {
				req.Header.Set("X-User-Role", tt.role)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestNewAuthenticator(t *testing.T) {
	_, err := NewAuthenticator(config.AuthConfig{Mode: "casdoor"})
	assert.Error(t, err)

	_, err = NewAuthenticator(config.AuthConfig{Mode: "kerberos"})
	assert.Error(t, err)

	a, err := NewAuthenticator(config.AuthConfig{Mode: "header"})
	assert.NoError(t, err)
	assert.IsType(t, HeaderAuthenticator{}, a)
}

func TestRateLimiterPerKey(t *testing.T) {
	l := NewRateLimiter(60, 2)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("alice"))
	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))
	assert.True(t, l.Allow("bob"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("alice"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	l := NewRateLimiter(1, 1)
	r := newRouter(l.Middleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
