package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger is a no-op until InitLogger runs, so packages used from tests stay quiet.
var logger = zap.NewNop()

// InitLogger initializes the global logger. level may be empty to keep the
// environment's default.
func InitLogger(env, level string) error {
	var err error
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return err
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err = config.Build(zap.Fields(zap.String("service", ServiceName)))
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the global logger
func GetLogger() *zap.Logger {
	return logger
}

// SyncLogger flushes any buffered log entries
func SyncLogger() {
	_ = logger.Sync()
}
