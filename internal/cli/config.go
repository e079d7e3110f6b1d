package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ceyewan/snowflake/clog"
	"github.com/ceyewan/snowflake/config"
	"github.com/ceyewan/snowflake/connector"
	"github.com/ceyewan/snowflake/idgen"
	"github.com/ceyewan/snowflake/internal/server"
	"github.com/ceyewan/snowflake/metrics"
	"github.com/ceyewan/snowflake/xerrors"
)

// AppConfig 命令行与服务的完整配置
//
//	log:       { level: info, format: console, output: stderr }
//	metrics:   { enabled: true, path: /metrics }
//	snowflake: { method: mac, clock_backward: reset }
//	allocator: { enabled: false, driver: redis }
//	redis:     { addr: 127.0.0.1:6379 }
//	etcd:      { endpoints: [127.0.0.1:2379] }
//	server:    { addr: ":8080", rate_limit: { enabled: false } }
type AppConfig struct {
	Log       clog.Config           `mapstructure:"log"`
	Metrics   metrics.Config        `mapstructure:"metrics"`
	Snowflake idgen.SnowflakeConfig `mapstructure:"snowflake"`
	Allocator AllocatorConfig       `mapstructure:"allocator"`
	Redis     connector.RedisConfig `mapstructure:"redis"`
	Etcd      connector.EtcdConfig  `mapstructure:"etcd"`
	Server    server.Config         `mapstructure:"server"`
}

// AllocatorConfig 启用后节点号由 Redis/Etcd 租约分配，忽略 snowflake.method
type AllocatorConfig struct {
	Enabled bool `mapstructure:"enabled"`

	idgen.AllocatorConfig `mapstructure:",squash"`
}

// defaults 所有可通过环境变量覆盖的键都需要在此登记
var defaults = map[string]any{
	"log.level":       "info",
	"log.format":      "console",
	"log.output":      "stderr",
	"log.add_source":  false,
	"log.source_root": "snowflake",

	"metrics.enabled":      true,
	"metrics.service_name": "snowflake",
	"metrics.version":      "dev",
	"metrics.path":         "/metrics",

	"snowflake.method":         idgen.MethodMAC,
	"snowflake.node_id":        0,
	"snowflake.identity":       "",
	"snowflake.epoch":          idgen.DefaultEpoch,
	"snowflake.clock_backward": idgen.ClockBackwardReset,
	"snowflake.max_drift_ms":   5,

	"allocator.enabled":    false,
	"allocator.driver":     "redis",
	"allocator.key_prefix": "snowflake:node",
	"allocator.max_id":     idgen.MaxNodeID + 1,
	"allocator.ttl":        30,

	"redis.addr":     "127.0.0.1:6379",
	"redis.password": "",
	"redis.db":       0,

	"etcd.endpoints": []string{"127.0.0.1:2379"},
	"etcd.username":  "",
	"etcd.password":  "",

	"server.addr":                   ":8080",
	"server.read_timeout":           "10s",
	"server.write_timeout":          "10s",
	"server.shutdown_timeout":       "5s",
	"server.rate_limit.enabled":     false,
	"server.rate_limit.driver":      "standalone",
	"server.rate_limit.limit.rate":  100,
	"server.rate_limit.limit.burst": 200,
}

// loadConfig 加载配置；path 为空时在 . 和 ./config 下查找 snowflake.yaml
func loadConfig(ctx context.Context, path string) (*AppConfig, config.Loader, error) {
	cfg := &config.Config{
		Name:      "snowflake",
		EnvPrefix: "SNOWFLAKE",
		Defaults:  defaults,
	}
	if path != "" {
		ext := filepath.Ext(path)
		cfg.Name = strings.TrimSuffix(filepath.Base(path), ext)
		cfg.Paths = []string{filepath.Dir(path)}
		if ext != "" {
			cfg.FileType = strings.TrimPrefix(ext, ".")
		}
	}

	loader, err := config.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, nil, xerrors.Wrap(err, "load config")
	}
	if path != "" && loader.ConfigFileUsed() == "" {
		return nil, nil, xerrors.WithCode(xerrors.Wrapf(xerrors.ErrNotFound, "config file %s", path), "config_file_not_found")
	}

	var app AppConfig
	if err := loader.Unmarshal(&app); err != nil {
		return nil, nil, xerrors.Wrap(err, "unmarshal config")
	}
	return &app, loader, nil
}
