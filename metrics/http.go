package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/snowflake/xerrors"
)

const (
	MetricHTTPRequests        = "http_server_requests_total"
	MetricHTTPDurationSeconds = "http_server_request_duration_seconds"
	MetricHTTPInFlight        = "http_server_requests_in_flight"
)

// ID 接口通常在亚毫秒级返回，桶从 100µs 开始
var httpDurationBuckets = []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.25, 1}

// HTTPMetrics HTTP 服务端的请求数、耗时与并发中请求数
type HTTPMetrics struct {
	service  string
	requests Counter
	duration Histogram
	inFlight Gauge
}

// NewHTTPMetrics 在 meter 上注册 HTTP 服务端指标
func NewHTTPMetrics(m Meter, service string) (*HTTPMetrics, error) {
	if m == nil {
		return nil, xerrors.WithCode(xerrors.ErrInvalidInput, "meter_nil")
	}
	if service = strings.TrimSpace(service); service == "" {
		service = "unknown"
	}

	requests, err := m.Counter(MetricHTTPRequests, "Total number of HTTP requests.")
	if err != nil {
		return nil, err
	}
	duration, err := m.Histogram(MetricHTTPDurationSeconds, "HTTP request duration in seconds.",
		WithUnit("s"), WithBuckets(httpDurationBuckets))
	if err != nil {
		return nil, err
	}
	inFlight, err := m.Gauge(MetricHTTPInFlight, "HTTP requests currently being served.")
	if err != nil {
		return nil, err
	}
	return &HTTPMetrics{service: service, requests: requests, duration: duration, inFlight: inFlight}, nil
}

// Middleware 返回记录请求指标的 Gin 中间件，m 为 nil 时直接放行
//
// route 标签取路由模板（如 /v1/ids/:id），未命中路由的请求统一记为 unknown。
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		service := L(LabelService, m.service)
		m.inFlight.Inc(ctx, service)
		start := time.Now()

		c.Next()

		m.inFlight.Dec(ctx, service)
		m.Observe(ctx, c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// Observe 记录一次已完成的 HTTP 请求
func (m *HTTPMetrics) Observe(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if method = strings.ToUpper(strings.TrimSpace(method)); method == "" {
		method = http.MethodGet
	}
	if route = strings.TrimSpace(route); route == "" {
		route = UnknownRoute
	}

	labels := []Label{
		L(LabelService, m.service),
		L(LabelMethod, method),
		L(LabelRoute, route),
		L(LabelStatusClass, HTTPStatusClass(status)),
		L(LabelOutcome, HTTPOutcome(status)),
	}
	m.requests.Inc(ctx, labels...)
	m.duration.Record(ctx, elapsed.Seconds(), labels...)
}
