package utils

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/cppla/bravesteps/config"
)

const serviceName = "bravesteps"

// NewLogger builds the application logger: JSON lines to stdout and, when LogPath is set,
// to a lumberjack rolling file. Both sinks share one level.
func NewLogger(cfg config.AppConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(orDefault(cfg.LogLevel, "info"))
	if err != nil {
		// gorm-only levels such as "silent" fall back to info
		level = zapcore.InfoLevel
	}
	enabler := zap.NewAtomicLevelAt(level)
	enc := zapcore.NewJSONEncoder(encoderConfig(true))

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stdout), enabler)}
	if cfg.LogPath != "" {
		ensureDir(cfg.LogPath)
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rollingFile(cfg.LogPath, cfg)), enabler))
	}

	opts := []zap.Option{zap.AddCaller(), zap.Fields(zap.String("service", serviceName))}
	if level == zapcore.DebugLevel {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

// NewRollingFileLogger writes JSON lines to path only. It backs the gin access log.
func NewRollingFileLogger(path string, cfg config.AppConfig) *zap.Logger {
	ensureDir(path)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig(false)), zapcore.AddSync(rollingFile(path, cfg)), zapcore.InfoLevel)
	return zap.New(core)
}

func encoderConfig(withCaller bool) zapcore.EncoderConfig {
	c := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     timeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	if withCaller {
		c.NameKey = "logger"
		c.CallerKey = "caller"
		c.StacktraceKey = "stacktrace"
		c.EncodeCaller = zapcore.ShortCallerEncoder
	}
	return c
}

func rollingFile(path string, cfg config.AppConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    nz(cfg.LogMaxSizeMB, 100), // megabytes
		MaxBackups: nz(cfg.LogMaxBackups, 3),
		MaxAge:     nz(cfg.LogMaxAgeDays, 7), // days
		Compress:   cfg.LogCompress,
	}
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

func ensureDir(path string) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
}

func nz(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
