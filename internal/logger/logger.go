package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

func Init() {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}

	zap.ReplaceGlobals(l)
	sugar = l.Sugar()
}

func log() *zap.SugaredLogger {
	if sugar == nil {
		Init()
	}
	return sugar
}

// Info logs a message with optional key-value pairs.
func Info(msg string, keysAndValues ...interface{}) {
	log().Infow(msg, keysAndValues...)
}

func Infof(format string, v ...interface{}) {
	log().Infof(format, v...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	log().Warnw(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	log().Errorw(msg, keysAndValues...)
}

func Errorf(format string, v ...interface{}) {
	log().Errorf(format, v...)
}

func Debug(msg string, keysAndValues ...interface{}) {
	log().Debugw(msg, keysAndValues...)
}

func Debugf(format string, v ...interface{}) {
	log().Debugf(format, v...)
}

func Fatalf(format string, v ...interface{}) {
	log().Fatalf(format, v...)
}

func Sync() {
	_ = log().Sync()
}
