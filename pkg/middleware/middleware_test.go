package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/creditpool/pkg/metrics"
	"github.com/wyfcoding/creditpool/pkg/ratelimit"
)

type recordingCollector struct {
	metrics.NopCollector
	routes   []string
	statuses []int
}

func (r *recordingCollector) RecordHTTPRequest(_, route string, statusCode int, _ float64) {
	r.routes = append(r.routes, route)
	r.statuses = append(r.statuses, statusCode)
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestGinLoggingAndRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinLoggingMiddleware(), GinRecoveryMiddleware())
	r.GET("/ok", func(c *gin.Context) {
		_, ok := c.Get(TraceIDKey)
		assert.True(t, ok)
		c.Status(http.StatusOK)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/ok")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(r, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "request_id")
}

func TestGinCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinCORSMiddleware())
	r.GET("/runs", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodOptions, "/runs")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGinMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &recordingCollector{}
	r := gin.New()
	r.Use(GinMetricsMiddleware(rec))
	r.GET("/runs/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	serve(r, http.MethodGet, "/runs/abc")
	serve(r, http.MethodGet, "/nowhere")

	assert.Equal(t, []string{"/runs/:id", "unmatched"}, rec.routes)
	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound}, rec.statuses)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(ratelimit.NewLocalRateLimiter(), ratelimit.Limit{Rate: 1, Period: time.Minute, Burst: 2}))
	r.POST("/runs", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := serve(r, http.MethodPost, "/runs")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}
	w := serve(r, http.MethodPost, "/runs")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
