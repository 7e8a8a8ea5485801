package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 50
	logMaxBackups = 3
	logMaxAgeDays = 14
)

// newLogger builds the production logger. With logFile set, every entry is
// also written as JSON to a size-rotated file.
func newLogger(logFile string) (*zap.Logger, func(), error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, nil, err
	}
	if logFile == "" {
		return base, func() { _ = base.Sync() }, nil
	}

	rot := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(rot),
		zap.InfoLevel,
	)
	l := base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
	return l, func() {
		_ = l.Sync()
		_ = rot.Close()
	}, nil
}
