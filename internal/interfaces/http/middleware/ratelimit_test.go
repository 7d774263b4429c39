package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRateLimitedRouter(limit int, window time.Duration) (*gin.Engine, *RateLimiter) {
	limiter := NewRateLimiter(limit, window)
	r := gin.New()
	r.POST("/analyze", RateLimit(limiter), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, limiter
}

func doRequest(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	req.RemoteAddr = ip + ":1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsUpToLimit(t *testing.T) {
	r, limiter := newRateLimitedRouter(3, time.Minute)
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		w := doRequest(r, "10.0.0.1")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_BreachBodyIsExact(t *testing.T) {
	r, limiter := newRateLimitedRouter(1, time.Minute)
	defer limiter.Stop()

	doRequest(r, "10.0.0.2")
	w := doRequest(r, "10.0.0.2")

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	// The frontend string-matches this payload
	assert.JSONEq(t, `{"error": "Too many requests, please try again later."}`, w.Body.String())
}

func TestRateLimit_KeysAreIndependentPerClient(t *testing.T) {
	r, limiter := newRateLimitedRouter(1, time.Minute)
	defer limiter.Stop()

	require.Equal(t, http.StatusOK, doRequest(r, "10.0.0.3").Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(r, "10.0.0.3").Code)

	// A different client still has budget
	assert.Equal(t, http.StatusOK, doRequest(r, "10.0.0.4").Code)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	limiter := NewRateLimiter(1, 20*time.Millisecond)
	defer limiter.Stop()

	require.True(t, limiter.Allow("client"))
	require.False(t, limiter.Allow("client"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, limiter.Allow("client"))
}
