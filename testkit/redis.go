package testkit

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ceyewan/snowflake/connector"
)

// RedisAddrEnv 设置后直接连接该地址，不再启动容器
const RedisAddrEnv = "SNOWFLAKE_TEST_REDIS_ADDR"

// NewRedisConfig 返回 Redis 测试配置
//
// 优先使用 SNOWFLAKE_TEST_REDIS_ADDR；否则通过 testcontainers 启动 redis:7-alpine，
// Docker 不可用时跳过测试。容器生命周期由 t.Cleanup 管理。
func NewRedisConfig(t *testing.T) *connector.RedisConfig {
	t.Helper()
	SkipIfShort(t)

	if addr := os.Getenv(RedisAddrEnv); addr != "" {
		return &connector.RedisConfig{Name: "test-redis", Addr: addr, DB: 1}
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return &connector.RedisConfig{
		Name: "test-redis",
		Addr: host + ":" + mappedPort.Port(),
	}
}

// NewRedisConnector 创建并连接 Redis 连接器
func NewRedisConnector(t *testing.T) connector.RedisConnector {
	t.Helper()
	cfg := NewRedisConfig(t)

	conn, err := connector.NewRedis(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create redis connector")

	if err := conn.Connect(context.Background()); err != nil {
		t.Skipf("redis unavailable at %s: %v", cfg.Addr, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// NewRedisClient 返回原生 Redis 客户端
func NewRedisClient(t *testing.T) *redis.Client {
	return NewRedisConnector(t).GetClient()
}
