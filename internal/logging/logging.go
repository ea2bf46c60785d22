// Package logging builds the process logger for maelstrom nodes.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLevel names the environment variable that selects the log level.
// Unset or unparsable values mean info.
const EnvLevel = "GLOMERS_LOG"

// New builds the process logger. Output goes to stderr only: stdout
// carries the wire protocol and a single stray log line there corrupts
// the message stream.
func New() *zap.SugaredLogger {
	lvl, ok := parseLevel()

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	sugar := logger.Sugar()
	if !ok {
		sugar.Warnf("invalid %s %q, using %s", EnvLevel, os.Getenv(EnvLevel), lvl)
	}
	return sugar
}

// Level reads the configured log level from the environment.
func Level() zapcore.Level {
	lvl, _ := parseLevel()
	return lvl
}

func parseLevel() (zapcore.Level, bool) {
	s := os.Getenv(EnvLevel)
	if s == "" {
		return zapcore.InfoLevel, true
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}
