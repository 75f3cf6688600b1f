// Package logger builds the application's zap logger.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a development or production zap logger at the given level.
// mode is "prod"/"production" or anything else for development; an empty
// level defaults to info in production and debug in development. When
// file is set, output goes there in addition to stderr.
func New(mode, level, file string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	if file != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, file)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, file)
	}

	return cfg.Build()
}
