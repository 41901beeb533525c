package main

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newBlockLogger builds the structured per-block side-channel logger Call
// uses alongside github.com/grailbio/base/log's plain progress messages.
// An empty filename logs nowhere; level follows --logLevel.
func newBlockLogger(level, filename string) (*zap.Logger, error) {
	if filename == "" {
		return zap.NewNop(), nil
	}

	var zapLevel zapcore.Level
	switch level {
	case "error":
		zapLevel = zapcore.ErrorLevel
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info", "":
		zapLevel = zapcore.InfoLevel
	default:
		return nil, fmt.Errorf("newBlockLogger: unrecognized --logLevel %q", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{filename}
	cfg.ErrorOutputPaths = []string{filename}
	return cfg.Build()
}
