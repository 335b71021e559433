// Package logger provides structured logging for the Hearth client.
// Messages go through a zap.SugaredLogger writing to stderr. Debug output
// is suppressed unless verbose mode is enabled via the --verbose flag.
package logger

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	sugared *zap.SugaredLogger
)

func init() {
	rebuild()
}

// rebuild recreates the underlying zap logger for the current output and
// verbosity. Callers must hold mu.
func rebuild() {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = "" // CLI output; timestamps add noise
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(writerFunc(func(p []byte) (int, error) { return output.Write(p) })),
		level,
	)
	sugared = zap.New(core).Sugar()
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for log messages.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// Debug logs a message at debug level. Suppressed unless verbose.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugared.Debugf(format, args...)
}

// Info logs a message at info level.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugared.Infof(format, args...)
}

// Warn logs a message at warn level.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugared.Warnf(format, args...)
}

// Error logs a message at error level.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	sugared.Errorf(format, args...)
}
