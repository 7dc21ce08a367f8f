package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerCallerBudget(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	alice, bob := uuid.New(), uuid.New()
	current := alice
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(UserIDKey, current)
		c.Next()
	})
	r.Use(rl.Middleware())
	r.POST("/quotes", func(c *gin.Context) { c.Status(http.StatusCreated) })

	hit := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/quotes", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, hit())
	assert.Equal(t, http.StatusCreated, hit())
	assert.Equal(t, http.StatusTooManyRequests, hit())

	current = bob
	assert.Equal(t, http.StatusCreated, hit())

	current = alice
	now = now.Add(time.Second)
	assert.Equal(t, http.StatusCreated, hit())
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, rl.allow("b"))
	assert.Len(t, rl.visitors, 1)
}
