package clog

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// NamespaceKey 是日志中命名空间的字段名
const NamespaceKey = "namespace"

// logger 是 Logger 接口的唯一实现
//
// 同一 New 派生出的 logger 共享 handler，因此 SetLevel 对它们同时生效。
// Discard 返回的 logger 使用 slog.DiscardHandler，Enabled 恒为 false。
type logger struct {
	handler   *clogHandler
	fields    []ContextField
	namespace string
	attrs     []slog.Attr
}

// Discard 创建一个静默的 Logger，组件未注入 Logger 时使用
func Discard() Logger {
	return &logger{handler: &clogHandler{
		Handler:  slog.DiscardHandler,
		levelVar: new(slog.LevelVar),
		mu:       &sync.Mutex{},
		discard:  true,
	}}
}

func newLogger(config *Config, o *options) (Logger, error) {
	handler, err := newHandler(config, o)
	if err != nil {
		return nil, err
	}
	return &logger{
		handler:   handler,
		fields:    o.contextFields,
		namespace: strings.Join(o.namespace, "."),
	}, nil
}

func (l *logger) Debug(msg string, fields ...Field) { l.log(context.Background(), DebugLevel, msg, fields) }
func (l *logger) Info(msg string, fields ...Field)  { l.log(context.Background(), InfoLevel, msg, fields) }
func (l *logger) Warn(msg string, fields ...Field)  { l.log(context.Background(), WarnLevel, msg, fields) }
func (l *logger) Error(msg string, fields ...Field) { l.log(context.Background(), ErrorLevel, msg, fields) }
func (l *logger) Fatal(msg string, fields ...Field) { l.log(context.Background(), FatalLevel, msg, fields) }

func (l *logger) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields)
}

func (l *logger) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields)
}

func (l *logger) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields)
}

func (l *logger) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields)
}

func (l *logger) FatalContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, FatalLevel, msg, fields)
}

func (l *logger) WithNamespace(parts ...string) Logger {
	if len(parts) == 0 {
		return l
	}
	child := *l
	suffix := strings.Join(parts, ".")
	if child.namespace == "" {
		child.namespace = suffix
	} else {
		child.namespace += "." + suffix
	}
	return &child
}

func (l *logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	child := *l
	child.attrs = append(append(make([]slog.Attr, 0, len(l.attrs)+len(fields)), l.attrs...), fields...)
	return &child
}

func (l *logger) SetLevel(level Level) error { return l.handler.SetLevel(level) }
func (l *logger) Flush()                     { l.handler.Flush() }

// log 按 attrs、fields、ctx 字段、namespace 的顺序组装记录
func (l *logger) log(ctx context.Context, level Level, msg string, fields []Field) {
	sl := level.slogLevel()
	if !l.handler.Enabled(ctx, sl) {
		if level == FatalLevel && !l.handler.discard {
			os.Exit(1)
		}
		return
	}

	attrs := make([]slog.Attr, 0, len(l.attrs)+len(fields)+3)
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, fields...)
	attrs = appendContextAttrs(ctx, l.fields, attrs)
	if l.namespace != "" {
		attrs = append(attrs, slog.String(NamespaceKey, l.namespace))
	}

	// runtime.Callers, log, Info/InfoContext...
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), sl, msg, pcs[0])
	record.AddAttrs(attrs...)
	_ = l.handler.Handle(ctx, record)

	if level == FatalLevel {
		l.handler.Flush()
		os.Exit(1)
	}
}
