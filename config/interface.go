// Package config 提供基于 Viper 的配置加载能力。
//
// 配置优先级：环境变量 > .env 文件 > 环境特定配置 (<name>.<env>.yaml) > 基础配置 > 默认值。
//
//	loader, _ := config.New(&config.Config{
//		Name:      "snowflake",
//		EnvPrefix: "SNOWFLAKE",
//		Defaults:  map[string]any{"snowflake.method": "mac"},
//	})
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//
//	var cfg AppConfig
//	_ = loader.Unmarshal(&cfg)
//
// 环境特定配置由 <PREFIX>_ENV 选择，例如 SNOWFLAKE_ENV=prod 会合并 snowflake.prod.yaml。
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置，并开始监听配置文件变化
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听指定 Key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置非空
	Validate() error

	// ConfigFileUsed 返回实际加载的配置文件路径，未找到文件时为空
	ConfigFileUsed() string
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
