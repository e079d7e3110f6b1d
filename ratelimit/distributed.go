package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/xerrors"
)

// tokenBucketScript 基于"下一次可放行时间戳"的令牌桶
//
// KEYS[1]: 限流键
// ARGV[1]: rate  ARGV[2]: burst  ARGV[3]: now（秒，浮点）  ARGV[4]: 本次消耗的令牌数
var tokenBucketScript = redis.NewScript(`
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local interval_per_token = 1 / rate
local fill_time = capacity * interval_per_token

local last_refreshed = tonumber(redis.call("GET", KEYS[1]))
if last_refreshed == nil then
  last_refreshed = now
end

local next_available_time = math.max(last_refreshed, now)
local new_refreshed = next_available_time + requested * interval_per_token
local allow_at_most = now + fill_time

if new_refreshed <= allow_at_most then
  redis.call("SET", KEYS[1], new_refreshed, "EX", math.ceil(fill_time * 2))
  return {1, math.floor((allow_at_most - new_refreshed) / interval_per_token)}
end
return {0, math.floor((allow_at_most - next_available_time) / interval_per_token)}
`)

// distributedLimiter 分布式限流器，连接由 Connector 管理
type distributedLimiter struct {
	client  *redis.Client
	prefix  string
	logger  clog.Logger
	metrics *limiterMetrics
}

// NewDistributed 创建分布式限流器
func NewDistributed(cfg *DistributedConfig, opts ...Option) (Limiter, error) {
	o := applyOptions(opts)
	if o.redisConn == nil {
		return nil, xerrors.WithCode(ErrConnectorNil, "redis_connector_required")
	}
	c := DistributedConfig{}
	if cfg != nil {
		c = *cfg
	}
	return newDistributed(&c, o)
}

func newDistributed(cfg *DistributedConfig, o *options) (*distributedLimiter, error) {
	cfg.setDefaults()

	m, err := newLimiterMetrics(o.meter, DriverDistributed)
	if err != nil {
		return nil, err
	}

	o.logger.Info("distributed rate limiter created", clog.String("prefix", cfg.Prefix))
	return &distributedLimiter{
		client:  o.redisConn.GetClient(),
		prefix:  cfg.Prefix,
		logger:  o.logger,
		metrics: m,
	}, nil
}

// Allow 尝试获取 1 个令牌
func (l *distributedLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return l.AllowN(ctx, key, limit, 1)
}

// AllowN 尝试获取 N 个令牌
func (l *distributedLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	if err := validateRequest(key, limit, n); err != nil {
		return false, err
	}

	now := float64(time.Now().UnixNano()) / 1e9
	res, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + key},
		limit.Rate, limit.Burst, now, n).Int64Slice()
	if err != nil {
		l.logger.Error("execute token bucket script failed", clog.String("key", key), clog.Error(err))
		return false, xerrors.Wrap(err, "execute token bucket script")
	}
	if len(res) != 2 {
		return false, fmt.Errorf("unexpected token bucket result %v", res)
	}

	allowed := res[0] == 1
	l.metrics.record(ctx, allowed)
	if !allowed {
		l.logger.Debug("rate limit exceeded",
			clog.String("key", key),
			clog.Int64("remaining", res[1]),
			clog.Float64("rate", limit.Rate),
			clog.Int("burst", limit.Burst),
			clog.Int("requested", n))
	}
	return allowed, nil
}

// Close 分布式限流器不持有连接
func (l *distributedLimiter) Close() error {
	return nil
}
