package main

import (
	"fmt"

	"github.com/shibukawa/snape2e"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds the process logger. --verbose forces debug, --quiet keeps errors only.
func newLogger(cfg snape2e.LoggingConfig, appCtx *Context) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.JSON {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	switch {
	case appCtx.Verbose:
		level = zapcore.DebugLevel
	case appCtx.Quiet:
		level = zapcore.ErrorLevel
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}
