package server

import (
	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/metrics"
	"github.com/ceyewan/snowflake/ratelimit"
)

// Option 服务初始化选项
type Option func(*options)

type options struct {
	logger  clog.Logger
	meter   metrics.Meter
	limiter ratelimit.Limiter
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeter 设置 Meter，同时决定 /metrics 的输出
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithLimiter 使用外部限流器（如分布式限流），忽略 RateLimit.Driver
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(o *options) {
		o.limiter = limiter
	}
}
