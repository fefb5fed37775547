// Package logging wraps a zap SugaredLogger for the pipeline.
//
// A no-op logger is installed until Init is called, so packages and tests can
// log without any setup.
package logging

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	sugar = zap.NewNop().Sugar()
)

// Init builds the global logger. format "console" uses the development
// encoder; anything else emits JSON. When outputPath is set, logs are also
// written to outputPath/intake.log.
func Init(level, format, outputPath string) error {
	logLevel := zap.NewAtomicLevel()
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Encoding = "json"
	}

	zapConfig.Level = logLevel
	zapConfig.OutputPaths = []string{"stderr"}
	if outputPath != "" {
		if err := os.MkdirAll(outputPath, 0755); err != nil {
			return err
		}
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, filepath.Join(outputPath, "intake.log"))
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return err
	}
	SetLogger(logger)
	return nil
}

// SetLogger replaces the global logger (tests use zaptest/observer loggers)
func SetLogger(logger *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = logger.Sugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Debugf logs a formatted debug message
func Debugf(template string, args ...interface{}) {
	get().Debugf(template, args...)
}

// Infof logs a formatted info message
func Infof(template string, args ...interface{}) {
	get().Infof(template, args...)
}

// Infow logs a message with structured key/value context
func Infow(msg string, keysAndValues ...interface{}) {
	get().Infow(msg, keysAndValues...)
}

// Warnf logs a formatted warning
func Warnf(template string, args ...interface{}) {
	get().Warnf(template, args...)
}

// Errorf logs a formatted error
func Errorf(template string, args ...interface{}) {
	get().Errorf(template, args...)
}

// Sync flushes buffered entries; call before exit
func Sync() {
	_ = get().Sync()
}
