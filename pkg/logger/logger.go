package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"zipfuzz/config"
)

type LoggerParams struct {
	fx.In
	Lc        fx.Lifecycle
	AppConfig *config.AppConfig
}

// NewLogger builds the run logger: console output plus a per-run log file
// named by start time, so every run leaves its own durable log.
func NewLogger(p LoggerParams) *zap.Logger {
	level := zapcore.InfoLevel
	switch strings.ToLower(p.AppConfig.LogLevel) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var cfg zap.Config
	if level > zapcore.InfoLevel {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logFile := fmt.Sprintf("zipfuzz_%s.log", time.Now().Format("20060102_150405"))
	cfg.OutputPaths = []string{"stderr", logFile}

	lg, err := cfg.Build()
	if err != nil {
		// log failed to build, return a default one
		return zap.NewExample()
	}

	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			lg.Sync()
			return nil
		},
	})

	lg.Info("logging to run log file", zap.String("file", logFile))
	return lg
}
