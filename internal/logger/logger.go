package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log carries a caller skip for the package-level wrappers below. Loggers derived
// with With use base so their caller annotations point at the real call site.
var (
	Log  *zap.Logger
	base *zap.Logger
)

func init() {
	// Nop until Init so packages can log from tests without setup.
	Set(zap.NewNop())
}

// Init builds the global logger. Production emits JSON; anything else is console output.
func Init(env string) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := config.Build()
	if err != nil {
		panic(err)
	}
	Set(l)
	zap.ReplaceGlobals(l)
}

// Set replaces the global logger. l must not carry a caller skip of its own.
func Set(l *zap.Logger) {
	base = l
	Log = l.WithOptions(zap.AddCallerSkip(1))
}

// With returns a child logger for callers that log through it directly.
func With(fields ...zap.Field) *zap.Logger {
	return base.With(fields...)
}

func Sync() {
	_ = Log.Sync()
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}
