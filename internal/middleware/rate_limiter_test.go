package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedEngine(limit int) *gin.Engine {
	r := gin.New()
	r.Use(RateLimiter(nil, "test", limit, time.Hour))
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func hit(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_LocalWindow(t *testing.T) {
	r := limitedEngine(3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, hit(r, "10.0.0.1").Code)
	}
	w := hit(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"code":"RateLimited"`)

	// Other clients have their own window.
	assert.Equal(t, http.StatusNoContent, hit(r, "10.0.0.2").Code)
}

func TestLocalWindows_ResetsOnNewBucket(t *testing.T) {
	w := newLocalWindows()
	b1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(1), w.incr("k", b1, time.Minute))
	assert.Equal(t, int64(2), w.incr("k", b1, time.Minute))
	assert.Equal(t, int64(1), w.incr("k", b1.Add(time.Minute), time.Minute))
	assert.Equal(t, int64(1), w.incr("other", b1.Add(time.Minute), time.Minute))
}
