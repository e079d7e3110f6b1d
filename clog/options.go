package clog

import "bytes"

// ContextField 从 Context 中提取字段的规则
type ContextField struct {
	Key       any    // Context 中存储的键
	FieldName string // 日志中的字段名
}

// Option 配置 Logger 实例
type Option func(*options)

type options struct {
	namespace     []string
	contextFields []ContextField
	buffer        *bytes.Buffer
}

// WithNamespace 设置日志命名空间，多级以 "." 连接
//
//	clog.WithNamespace("snowflake", "server")
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespace = append(o.namespace, parts...)
	}
}

// WithContextField 额外提取 ctx 中的 key，request_id 无需注册
func WithContextField(key any, fieldName string) Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields, ContextField{Key: key, FieldName: fieldName})
	}
}

// WithBuffer 将日志写入指定缓冲区，需配合 Output="buffer"，测试中使用
func WithBuffer(buf *bytes.Buffer) Option {
	return func(o *options) {
		o.buffer = buf
	}
}
