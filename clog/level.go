package clog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level 日志级别，按严重程度递增
type Level int

const (
	DebugLevel Level = iota - 4
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel // 记录后进程退出
)

type levelInfo struct {
	name  string
	label string // 输出到日志中的大写形式
	slog  slog.Level
}

var levels = map[Level]levelInfo{
	DebugLevel: {"debug", "DEBUG", slog.LevelDebug},
	InfoLevel:  {"info", "INFO", slog.LevelInfo},
	WarnLevel:  {"warn", "WARN", slog.LevelWarn},
	ErrorLevel: {"error", "ERROR", slog.LevelError},
	FatalLevel: {"fatal", "FATAL", slog.LevelError + 4},
}

func (l Level) String() string {
	if info, ok := levels[l]; ok {
		return info.name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

func (l Level) valid() bool {
	_, ok := levels[l]
	return ok
}

func (l Level) slogLevel() slog.Level {
	if info, ok := levels[l]; ok {
		return info.slog
	}
	return slog.LevelInfo
}

// labelOf 把 slog.Level 映射回输出标签，介于两级之间的值向上取整
func labelOf(sl slog.Level) string {
	for _, l := range []Level{DebugLevel, InfoLevel, WarnLevel, ErrorLevel} {
		if sl <= levels[l].slog {
			return levels[l].label
		}
	}
	return levels[FatalLevel].label
}

// ParseLevel 将字符串解析为 Level（不区分大小写），无法解析时返回 InfoLevel 和错误
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for l, info := range levels {
		if info.name == name {
			return l, nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level: %q", s)
}
