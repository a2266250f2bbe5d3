package logger

import (
	"io"
	"os"

	"github.com/samvad-hq/curlkit/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Package-level logger to be used across packages after Init.
var S *zap.SugaredLogger

// Logger is the structured logging surface shared by the runner and sinks.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

// Init initializes a zap SugaredLogger using settings from config and installs
// it as the zap global so library code logging through zap.L() follows suit.
func Init(cfg *config.Config) (*zap.SugaredLogger, error) {
	return initWith(cfg, os.Stdout)
}

func initWith(cfg *config.Config, w io.Writer) (*zap.SugaredLogger, error) {
	level := parseLevel(cfg.LogLevel)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("app", cfg.AppName))
	zap.ReplaceGlobals(logger)

	sugar := logger.Sugar()
	S = sugar
	return sugar, nil
}

// InitConsole installs a human readable logger writing to w. The CLI uses it
// so transfer diagnostics land on stderr while stdout carries the body.
func InitConsole(w io.Writer, level string) *zap.SugaredLogger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		parseLevel(level),
	)
	logger := zap.New(core)
	zap.ReplaceGlobals(logger)

	S = logger.Sugar()
	return S
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Close flushes any buffered loggers.
func Close() error {
	if S == nil {
		return nil
	}
	return S.Sync()
}

// Minimal object logging helpers -------------------------------------------------
// These are tiny wrappers that log the given object as a structured field named
// `key` and do not attempt to parse arbitrary kv arrays.
func InfoObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Info(msg, zap.Any(key, obj))
}

func DebugObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Debug(msg, zap.Any(key, obj))
}

func WarnObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Warn(msg, zap.Any(key, obj))
}

func ErrorObj(msg, key string, obj interface{}) {
	if S == nil {
		return
	}
	S.Desugar().Error(msg, zap.Any(key, obj))
}

// Zap adapts a SugaredLogger to the Logger interface.
type Zap struct {
	L *zap.SugaredLogger
}

func (z Zap) InfoObj(msg, key string, obj interface{}) {
	z.L.Desugar().Info(msg, zap.Any(key, obj))
}

func (z Zap) DebugObj(msg, key string, obj interface{}) {
	z.L.Desugar().Debug(msg, zap.Any(key, obj))
}

func (z Zap) WarnObj(msg, key string, obj interface{}) {
	z.L.Desugar().Warn(msg, zap.Any(key, obj))
}

func (z Zap) ErrorObj(msg, key string, obj interface{}) {
	z.L.Desugar().Error(msg, zap.Any(key, obj))
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) InfoObj(string, string, interface{})  {}
func (NopLogger) DebugObj(string, string, interface{}) {}
func (NopLogger) WarnObj(string, string, interface{})  {}
func (NopLogger) ErrorObj(string, string, interface{}) {}
