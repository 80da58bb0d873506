// Package log is the process-wide structured logger for the simulator.
// Every package logs through these helpers with alternating key/value pairs
// so the backend (console or json, via the slog adapter) is chosen once at
// startup by Configure.
package log

import (
	"io"
	"os"

	"github.com/paularlott/logger"
	logslog "github.com/paularlott/logger/slog"
)

var defaultLogger logger.Logger

func init() {
	Configure("info", "console")
}

// Configure replaces the package logger. Level is one of debug, info, warn,
// error; format is console or json.
func Configure(level, format string) {
	configureTo(os.Stdout, level, format)
}

func configureTo(w io.Writer, level, format string) {
	defaultLogger = logslog.New(logslog.Config{
		Level:  level,
		Format: format,
		Writer: w,
	})
}

func Info(msg string, keysAndValues ...any) {
	defaultLogger.Info(msg, keysAndValues...)
}

// Warn is for recoverable problems such as skipped stored records.
func Warn(msg string, keysAndValues ...any) {
	defaultLogger.Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	defaultLogger.Error(msg, keysAndValues...)
}

func Debug(msg string, keysAndValues ...any) {
	defaultLogger.Debug(msg, keysAndValues...)
}
