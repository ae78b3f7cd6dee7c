// Package logger builds the zap loggers used by the server and client.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger when env is "prod" and a colored
// development logger otherwise.  level overrides the default level of
// either configuration when it parses.
func New(env, level string) (*zap.Logger, error) {
	return config(env, level).Build()
}

// NewFile is like New but writes only to path.  The terminal client uses
// it because stdout and stderr belong to the UI.
func NewFile(path, level string) (*zap.Logger, error) {
	cfg := config("prod", level)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{path}
	return cfg.Build()
}

func config(env, level string) zap.Config {
	var cfg zap.Config
	if isProduction(env) {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if level != "" {
		if lvl, err := zapcore.ParseLevel(level); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	return cfg
}

func isProduction(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production"
}
