package clog

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/ceyewan/snowflake/xerrors"
)

// Field 是 slog.Attr 的类型别名
type Field = slog.Attr

// 日志中的固定字段名
const (
	NodeIDKey    = "node_id"
	IDKey        = "id"
	ErrMsgKey    = "err_msg"
	ErrCodeKey   = "err_code"
	ComponentKey = "component"
)

func String(k, v string) Field          { return slog.String(k, v) }
func Int(k string, v int) Field         { return slog.Int(k, v) }
func Int64(k string, v int64) Field     { return slog.Int64(k, v) }
func Uint64(k string, v uint64) Field   { return slog.Uint64(k, v) }
func Float64(k string, v float64) Field { return slog.Float64(k, v) }
func Any(k string, v any) Field         { return slog.Any(k, v) }

// Duration 以毫秒小数输出，便于和 drift_ms 等字段对照
func Duration(k string, v time.Duration) Field {
	return slog.Float64(k+"_ms", float64(v)/float64(time.Millisecond))
}

// NodeID 节点 ID 字段
func NodeID(id int64) Field {
	return slog.Int64(NodeIDKey, id)
}

// ID 以十进制字符串输出 64 位 ID，避免日志平台按 float64 解析时丢失精度
func ID(id uint64) Field {
	return slog.String(IDKey, strconv.FormatUint(id, 10))
}

// Component 组件名字段，各组件在 With 中设置一次
func Component(name string) Field {
	return slog.String(ComponentKey, name)
}

// Error 错误字段
//
// 输出 err_msg；如果错误链上带有 xerrors 错误码，额外输出 err_code。
//
//	logger.Error("decode failed", clog.Error(err))
//	// err_msg="[id_not_decimal] idgen: invalid id" err_code=id_not_decimal
func Error(err error) Field {
	if err == nil {
		return slog.Attr{}
	}
	if code := xerrors.GetCode(err); code != "" {
		return slog.Group("",
			slog.String(ErrMsgKey, err.Error()),
			slog.String(ErrCodeKey, code),
		)
	}
	return slog.String(ErrMsgKey, err.Error())
}
