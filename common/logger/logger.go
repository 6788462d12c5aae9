package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger 服务日志
// level: debug / info / warn / error，无法识别时为 info
// format: "json"（默认，写 stdout）或 "console"
// 每条日志带 service_name 和 hostname
func NewLogger(level, format, serviceName string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	fields := map[string]interface{}{}
	if serviceName != "" {
		fields["service_name"] = serviceName
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		fields["hostname"] = hostname
	}
	cfg.InitialFields = fields

	return cfg.Build()
}

// NewCLILogger 命令行工具日志：console 格式写 stderr，stdout 只留给结果输出
// 默认只输出 warn 以上，verbose 时输出 debug
func NewCLILogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// ParseLevel 日志级别字符串 -> zapcore.Level，无法识别时为 info
func ParseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}
