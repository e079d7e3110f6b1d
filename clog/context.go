package clog

import (
	"context"
	"fmt"
	"log/slog"
)

// RequestIDKey 是日志中请求 ID 的字段名
const RequestIDKey = "request_id"

type requestIDCtxKey struct{}

// WithRequestID 把请求 ID 放入 ctx，之后所有 *Context 日志方法都会带上 request_id
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDCtxKey{}, id)
}

// RequestID 从 ctx 中取出请求 ID，不存在时返回空串
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

// appendContextAttrs 依次追加 request_id 与 WithContextField 注册的字段
func appendContextAttrs(ctx context.Context, fields []ContextField, attrs []slog.Attr) []slog.Attr {
	if ctx == nil {
		return attrs
	}
	if id := RequestID(ctx); id != "" {
		attrs = append(attrs, slog.String(RequestIDKey, id))
	}
	for _, cf := range fields {
		switch v := ctx.Value(cf.Key).(type) {
		case nil:
		case string:
			attrs = append(attrs, slog.String(cf.FieldName, v))
		case fmt.Stringer:
			attrs = append(attrs, slog.String(cf.FieldName, v.String()))
		default:
			attrs = append(attrs, slog.Any(cf.FieldName, v))
		}
	}
	return attrs
}
