package testkit

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"

	"github.com/ceyewan/snowflake/connector"
)

// EtcdEndpointsEnv 逗号分隔的地址，设置后直接连接，不再启动容器
const EtcdEndpointsEnv = "SNOWFLAKE_TEST_ETCD_ENDPOINTS"

// NewEtcdConfig 返回 Etcd 测试配置，规则同 NewRedisConfig
func NewEtcdConfig(t *testing.T) *connector.EtcdConfig {
	t.Helper()
	SkipIfShort(t)

	if eps := os.Getenv(EtcdEndpointsEnv); eps != "" {
		return &connector.EtcdConfig{
			Name:        "test-etcd",
			Endpoints:   strings.Split(eps, ","),
			DialTimeout: 5 * time.Second,
		}
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := tcetcd.Run(ctx, "quay.io/coreos/etcd:v3.5.9")
	require.NoError(t, err, "failed to start etcd container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)

	return &connector.EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   []string{host + ":" + mappedPort.Port()},
		DialTimeout: 5 * time.Second,
	}
}

// NewEtcdConnector 创建并连接 Etcd 连接器
func NewEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	cfg := NewEtcdConfig(t)

	conn, err := connector.NewEtcd(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create etcd connector")

	if err := conn.Connect(context.Background()); err != nil {
		t.Skipf("etcd unavailable at %v: %v", cfg.Endpoints, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
