package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLimiterAllowsBurstThenRejects(t *testing.T) {
	l := New(1, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("u1")
	assert.True(t, ok)
	ok, _ = l.Allow("u1")
	assert.True(t, ok)
	ok, wait := l.Allow("u1")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = l.Allow("u2")
	assert.True(t, ok, "buckets are per caller")

	now = now.Add(time.Second)
	ok, _ = l.Allow("u1")
	assert.True(t, ok)
}

func TestLimiterSweep(t *testing.T) {
	l := New(1, 1)
	now := time.Now()
	l.now = func() time.Time { return now }
	l.Allow("a")
	now = now.Add(time.Hour)
	l.Allow("b")

	assert.Equal(t, 1, l.Sweep(10*time.Minute))
}

func TestMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := New(0.001, 1)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", "student-1")
		c.Next()
	}, l.Middleware())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
