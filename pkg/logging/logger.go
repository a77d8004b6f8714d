package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is replaced by InitLogger at startup. Until then it discards output
// so packages can log safely from tests and init paths.
var Logger = zap.NewNop()

// InitLogger initializes the structured logger
func InitLogger(level string, format string) error {
	var config zap.Config

	if format == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	// Set log level
	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	// Disable caller and stack trace for cleaner logs
	config.DisableCaller = true
	config.DisableStacktrace = true

	var err error
	Logger, err = config.Build()
	if err != nil {
		return err
	}

	return nil
}

// LogDeniedWithIP logs a denied admin request with the caller address
func LogDeniedWithIP(reason, user, endpoint, ip string) {
	Logger.Info("denied",
		zap.String("reason", reason),
		zap.String("user", user),
		zap.String("endpoint", endpoint),
		zap.String("ip", ip),
	)
}

// SecretLen logs the length of a secret under "<name>_len", never its value.
func SecretLen(name, secret string) zap.Field {
	return zap.Int(name+"_len", len(secret))
}
