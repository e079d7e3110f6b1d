package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/xerrors"
)

type redisConnector struct {
	*base
	client *redis.Client
}

// NewRedis 创建 Redis 连接器，不会立即建立连接
func NewRedis(cfg *RedisConfig, opts ...Option) (RedisConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "redis config is nil")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	b, err := newBase("redis", cfg.Name, clog.String("addr", cfg.Addr), opts)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		// 单机部署没有维护通知，关闭以免握手时多发一次 CLIENT 命令
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	b.probe = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	b.closeFn = client.Close
	return &redisConnector{base: b, client: client}, nil
}

func (c *redisConnector) GetClient() *redis.Client {
	return c.client
}
