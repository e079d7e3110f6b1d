// Package ratelimit 提供令牌桶限流，支持单机和分布式两种模式。
//
//   - 单机模式：基于 golang.org/x/time/rate 的内存限流，每个 key 一个令牌桶
//   - 分布式模式：基于 Redis + Lua 的令牌桶，多个实例共享配额
//
// 基本使用：
//
//	limiter, _ := ratelimit.New(&ratelimit.Config{Driver: ratelimit.DriverStandalone},
//	    ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	allowed, _ := limiter.Allow(ctx, "client:10.0.0.1", ratelimit.Limit{Rate: 10, Burst: 20})
//
// Gin 中间件：
//
//	r.Use(ratelimit.GinMiddleware(limiter, &ratelimit.GinMiddlewareOptions{
//	    LimitFunc: func(*gin.Context) ratelimit.Limit { return ratelimit.Limit{Rate: 100, Burst: 200} },
//	}))
package ratelimit

import (
	"context"
	"time"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/xerrors"
)

var (
	ErrConfigNil    = xerrors.New("ratelimit: config is nil")
	ErrConnectorNil = xerrors.New("ratelimit: redis connector is nil")
	ErrKeyEmpty     = xerrors.New("ratelimit: key is empty")
	ErrInvalidLimit = xerrors.New("ratelimit: invalid limit")
)

// Limit 限流规则（令牌桶）
type Limit struct {
	Rate  float64 `mapstructure:"rate" json:"rate" yaml:"rate"`    // 每秒生成的令牌数
	Burst int     `mapstructure:"burst" json:"burst" yaml:"burst"` // 桶容量
}

// Limiter 限流器
type Limiter interface {
	// Allow 尝试获取 1 个令牌（非阻塞）
	//
	// 返回的 error 表示系统错误，是否放行看 allowed。
	Allow(ctx context.Context, key string, limit Limit) (bool, error)

	// AllowN 尝试获取 n 个令牌（非阻塞）
	AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error)

	// Close 释放资源
	Close() error
}

// 限流器类型
const (
	DriverStandalone  = "standalone"
	DriverDistributed = "distributed"
)

// Config 限流组件配置
type Config struct {
	// Driver 限流器类型，默认 "standalone"
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`

	Standalone  *StandaloneConfig  `mapstructure:"standalone" json:"standalone" yaml:"standalone"`
	Distributed *DistributedConfig `mapstructure:"distributed" json:"distributed" yaml:"distributed"`
}

// StandaloneConfig 单机限流配置
type StandaloneConfig struct {
	// CleanupInterval 清理空闲令牌桶的间隔（默认：1 分钟）
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" json:"cleanup_interval" yaml:"cleanup_interval"`

	// IdleTimeout 令牌桶空闲超时时间（默认：5 分钟）
	IdleTimeout time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" yaml:"idle_timeout"`
}

func (c *StandaloneConfig) setDefaults() {
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

// DistributedConfig 分布式限流配置
type DistributedConfig struct {
	// Prefix Redis Key 前缀（默认："snowflake:ratelimit:"）
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
}

func (c *DistributedConfig) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = "snowflake:ratelimit:"
	}
}

// New 根据 cfg.Driver 创建限流器，distributed 需要 WithRedisConnector
func New(cfg *Config, opts ...Option) (Limiter, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	o := applyOptions(opts)

	driver := cfg.Driver
	if driver == "" {
		driver = DriverStandalone
	}

	switch driver {
	case DriverStandalone:
		sc := StandaloneConfig{}
		if cfg.Standalone != nil {
			sc = *cfg.Standalone
		}
		return newStandalone(&sc, o)

	case DriverDistributed:
		if o.redisConn == nil {
			return nil, xerrors.WithCode(ErrConnectorNil, "redis_connector_required")
		}
		dc := DistributedConfig{}
		if cfg.Distributed != nil {
			dc = *cfg.Distributed
		}
		return newDistributed(&dc, o)

	default:
		o.logger.Error("unsupported rate limit driver", clog.String("driver", driver))
		return nil, xerrors.WithCode(xerrors.ErrInvalidInput, "unsupported_driver")
	}
}

func validateRequest(key string, limit Limit, n int) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if limit.Rate <= 0 || limit.Burst <= 0 {
		return ErrInvalidLimit
	}
	if n <= 0 {
		return xerrors.Wrapf(ErrInvalidLimit, "n must be positive, got %d", n)
	}
	return nil
}
