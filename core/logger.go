package core

import (
	"sync"

	"go.uber.org/zap"
)

var (
	loggerOnce sync.Once
	logger     *zap.SugaredLogger
)

// SetupLogger builds the process-wide structured logger. Safe to call more than
// once; only the first call takes effect.
func SetupLogger(debug bool) {
	loggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		if debug {
			cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		cfg.Encoding = "json"
		built, err := cfg.Build()
		if err != nil {
			panic("could not initialize logger: " + err.Error())
		}
		logger = built.Sugar()
	})
}

// GetLogger returns the shared structured logger, initializing a sane
// default (info level, json) if SetupLogger was never called.
func GetLogger() *zap.SugaredLogger {
	if logger == nil {
		SetupLogger(false)
	}
	return logger
}
