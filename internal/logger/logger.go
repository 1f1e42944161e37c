package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FieldOwner 是记录 owner（候选人/公司）id 的结构化字段名。
	FieldOwner = "owner_id"
	// FieldComponent 标记日志来源组件。
	FieldComponent = "component"
)

// New 创建 zap logger，json 控制编码格式，debug 打开调试级别。
func New(json bool, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	encoding := "console"
	if json {
		encoding = "json"
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "msg",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
		},
	}
	return cfg.Build()
}

// Named 返回带组件字段的 logger，nil 时退化为 no-op logger。
func Named(l *zap.Logger, component string) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	component = strings.TrimSpace(component)
	if component == "" {
		return l
	}
	return l.With(zap.String(FieldComponent, component))
}

// Owner 构造 owner 字段。
func Owner(id string) zap.Field {
	return zap.String(FieldOwner, id)
}

// Truncate 截断过长文本，用于记录上游返回体。
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
