// Package clog 是基于 log/slog 的结构化日志。
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "json", Output: "stdout"},
//		clog.WithNamespace("snowflake"))
//	logger.Info("id issued", clog.NodeID(5), clog.ID(id))
//
// 组件默认使用 Discard()，由调用方通过各自的 WithLogger 选项注入。
// *Context 方法会输出 WithRequestID 放入的 request_id。
package clog

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Logger 结构化日志接口，实现并发安全
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal 记录后调用 os.Exit(1)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	With(fields ...Field) Logger
	// WithNamespace 追加命名空间，logger.WithNamespace("idgen", "allocator") 输出 namespace=idgen.allocator
	WithNamespace(parts ...string) Logger

	// SetLevel 对同一 New 派生出的所有 Logger 生效
	SetLevel(level Level) error
	Flush()
}

// New 创建一个新的 Logger 实例
//
// config - 日志配置，如果为 nil 会使用开发环境默认配置
// opts   - 函数式选项列表，用于命名空间、Context 字段等配置
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig("snowflake")
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return newLogger(config, o)
}

// Must 类似 New，但出错时 panic，仅用于 main 初始化阶段
func Must(config *Config, opts ...Option) Logger {
	logger, err := New(config, opts...)
	if err != nil {
		panic(fmt.Sprintf("clog: %v", err))
	}
	return logger
}

var defaultLogger atomic.Value

// SetDefault 设置进程级默认 Logger，供未显式注入 Logger 的组件使用
func SetDefault(logger Logger) {
	if logger == nil {
		return
	}
	defaultLogger.Store(&logger)
}

// Default 返回进程级默认 Logger，未设置时为 Discard
func Default() Logger {
	if p, ok := defaultLogger.Load().(*Logger); ok && p != nil {
		return *p
	}
	return Discard()
}
