package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(limiter Limiter, opts *GinMiddlewareOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(limiter, opts))
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func newTestLimiter(t *testing.T) Limiter {
	t.Helper()
	limiter, err := New(&Config{Driver: DriverStandalone})
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter
}

func doGet(r http.Handler) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	return w
}

func TestGinMiddleware(t *testing.T) {
	t.Run("超限返回 429", func(t *testing.T) {
		r := setupTestRouter(newTestLimiter(t), &GinMiddlewareOptions{
			KeyFunc:   func(*gin.Context) string { return "client" },
			LimitFunc: func(*gin.Context) Limit { return Limit{Rate: 1, Burst: 2} },
		})

		assert.Equal(t, http.StatusOK, doGet(r).Code)
		assert.Equal(t, http.StatusOK, doGet(r).Code)

		w := doGet(r)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Contains(t, w.Body.String(), "rate limit exceeded")
	})

	t.Run("写入限流响应头", func(t *testing.T) {
		r := setupTestRouter(newTestLimiter(t), &GinMiddlewareOptions{
			LimitFunc:   func(*gin.Context) Limit { return Limit{Rate: 1, Burst: 1} },
			WithHeaders: true,
		})

		w := doGet(r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "rate=1.00, burst=1", w.Header().Get("X-RateLimit-Limit"))

		w = doGet(r)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("空 key 放行", func(t *testing.T) {
		r := setupTestRouter(newTestLimiter(t), &GinMiddlewareOptions{
			KeyFunc:   func(*gin.Context) string { return "" },
			LimitFunc: func(*gin.Context) Limit { return Limit{Rate: 1, Burst: 1} },
		})
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, doGet(r).Code)
		}
	})

	t.Run("无效规则放行", func(t *testing.T) {
		r := setupTestRouter(newTestLimiter(t), &GinMiddlewareOptions{
			LimitFunc: func(*gin.Context) Limit { return Limit{} },
		})
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, doGet(r).Code)
		}
	})

	t.Run("未配置限流器放行", func(t *testing.T) {
		r := setupTestRouter(nil, nil)
		assert.Equal(t, http.StatusOK, doGet(r).Code)
	})
}
