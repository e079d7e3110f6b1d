package server

import (
	"strings"
	"time"

	"github.com/ceyewan/snowflake/ratelimit"
)

// Config HTTP 服务配置
type Config struct {
	Addr            string        `mapstructure:"addr"`             // 监听地址 (默认: ":8080")
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`     // 默认 10s
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`    // 默认 10s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // 默认 5s
	MetricsPath     string        `mapstructure:"metrics_path"`     // 默认 "/metrics"，为空则不挂载

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig /v1 接口的限流配置，按客户端 IP 计数
type RateLimitConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Limit   ratelimit.Limit `mapstructure:"limit"` // 默认 Rate=100, Burst=200

	ratelimit.Config `mapstructure:",squash"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		c.MetricsPath = "/" + c.MetricsPath
	}
	if c.RateLimit.Limit.Rate <= 0 {
		c.RateLimit.Limit.Rate = 100
	}
	if c.RateLimit.Limit.Burst <= 0 {
		c.RateLimit.Limit.Burst = 200
	}
}

// NewDefaultConfig 返回默认配置
func NewDefaultConfig() *Config {
	c := &Config{MetricsPath: "/metrics"}
	c.setDefaults()
	return c
}
