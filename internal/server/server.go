// Package server 提供 snowflake ID 的 HTTP 接口。
//
//	GET /healthz            健康检查
//	GET /v1/ids?count=n     生成 n 个 ID（默认 1，最多 idgen.MaxBatchSize），format=number 时返回数字
//	GET /v1/ids/:id         解析 ID
//	GET /metrics            Prometheus 指标
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/idgen"
	"github.com/ceyewan/snowflake/metrics"
	"github.com/ceyewan/snowflake/ratelimit"
	"github.com/ceyewan/snowflake/xerrors"
)

// Generator 服务依赖的生成器能力，*idgen.Snowflake 满足该接口
type Generator interface {
	NextBatch(n int) ([]idgen.ID, error)
	Decode(id idgen.ID) idgen.Parts
	Time(id idgen.ID) time.Time
	NodeID() int64
	Identity() string
}

// Server HTTP 服务
type Server struct {
	cfg         *Config
	gen         Generator
	logger      clog.Logger
	meter       metrics.Meter
	limiter     ratelimit.Limiter
	ownsLimiter bool
	engine      *gin.Engine
}

// New 创建 HTTP 服务
func New(cfg *Config, gen Generator, opts ...Option) (*Server, error) {
	if gen == nil {
		return nil, xerrors.WithCode(xerrors.ErrInvalidInput, "generator_nil")
	}
	c := NewDefaultConfig()
	if cfg != nil {
		c = cfg
		c.setDefaults()
	}

	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Server{
		cfg:     c,
		gen:     gen,
		logger:  o.logger.With(clog.Component("server")),
		meter:   o.meter,
		limiter: o.limiter,
	}

	if c.RateLimit.Enabled && s.limiter == nil {
		limiter, err := ratelimit.New(&c.RateLimit.Config,
			ratelimit.WithLogger(o.logger), ratelimit.WithMeter(o.meter))
		if err != nil {
			return nil, xerrors.Wrap(err, "create rate limiter")
		}
		s.limiter = limiter
		s.ownsLimiter = true
	}

	httpMetrics, err := metrics.NewHTTPMetrics(o.meter, "snowflake")
	if err != nil {
		return nil, xerrors.Wrap(err, "create http metrics")
	}
	s.engine = s.routes(httpMetrics)
	return s, nil
}

func (s *Server) routes(httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.accessLog(), httpMetrics.Middleware())

	engine.GET("/healthz", s.handleHealth)
	if s.cfg.MetricsPath != "" {
		engine.GET(s.cfg.MetricsPath, gin.WrapH(s.meter.Handler()))
	}

	v1 := engine.Group("/v1")
	if s.cfg.RateLimit.Enabled && s.limiter != nil {
		limit := s.cfg.RateLimit.Limit
		v1.Use(ratelimit.GinMiddleware(s.limiter, &ratelimit.GinMiddlewareOptions{
			LimitFunc:   func(*gin.Context) ratelimit.Limit { return limit },
			WithHeaders: true,
		}))
	}
	v1.GET("/ids", s.handleNext)
	v1.GET("/ids/:id", s.handleDecode)

	return engine
}

// RequestIDHeader 请求 ID 头，缺失时由服务端生成并回写
const RequestIDHeader = "X-Request-ID"

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)
		c.Request = c.Request.WithContext(clog.WithRequestID(c.Request.Context(), reqID))

		c.Next()
		s.logger.DebugContext(c.Request.Context(), "http request",
			clog.String("method", c.Request.Method),
			clog.String("path", c.Request.URL.Path),
			clog.Int("status", c.Writer.Status()),
			clog.Duration("latency", time.Since(start)),
			clog.String("client_ip", c.ClientIP()),
		)
	}
}

// Handler 返回 HTTP Handler，便于测试或嵌入其他服务
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听 cfg.Addr 并阻塞到 ctx 取消，随后在 ShutdownTimeout 内优雅关闭
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return xerrors.Wrapf(err, "listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定 listener 上提供服务，语义同 Run
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:        s.engine,
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	defer s.closeLimiter()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("http server started",
		clog.String("addr", ln.Addr().String()),
		clog.NodeID(s.gen.NodeID()),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.logger.Error("http server serve failed", clog.Error(err))
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http server shutdown failed", clog.Error(err))
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) closeLimiter() {
	if s.ownsLimiter {
		_ = s.limiter.Close()
	}
}
