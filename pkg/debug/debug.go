// Package debug provides conditional debug logging for rb.
//
// Debug logging is enabled by setting the RB_DEBUG environment variable:
//
//	RB_DEBUG=1 rb --demo
//
// Records are written to stderr through a slog text handler. When disabled
// (default), every function is a no-op.
//
// Usage:
//
//	debug.Log("loaded %d risks", len(risks))
//	defer debug.LogEnterExit("Session.Reload")()
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

var (
	// enabled is true when RB_DEBUG is set
	enabled bool
	logger  *slog.Logger
)

func init() {
	if os.Getenv("RB_DEBUG") != "" {
		SetEnabled(true)
	}
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	enabled = e
	if e && logger == nil {
		SetOutput(os.Stderr)
	}
}

// SetOutput redirects debug records to w. The TUI points this at a log file
// so records do not tear the alt screen.
func SetOutput(w io.Writer) {
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})).
		With("src", "rb_debug")
}

// Log writes a printf-style debug message if debug logging is enabled.
func Log(format string, args ...any) {
	if !enabled {
		return
	}
	logger.Debug(fmt.Sprintf(format, args...))
}

// Attrs writes a structured debug record.
func Attrs(msg string, args ...any) {
	if !enabled {
		return
	}
	logger.Debug(msg, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	if !enabled {
		return
	}
	logger.Debug("timing", "op", name, "elapsed", d)
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !enabled || !cond {
		return
	}
	logger.Debug(fmt.Sprintf(format, args...))
}

// LogEnterExit logs function entry and exit with timing.
//
//	defer debug.LogEnterExit("myFunc")()
func LogEnterExit(name string) func() {
	if !enabled {
		return func() {}
	}
	logger.Debug("enter", "fn", name)
	start := time.Now()
	return func() {
		logger.Debug("exit", "fn", name, "elapsed", time.Since(start))
	}
}

// Dump logs a value with its type.
func Dump(name string, v any) {
	if !enabled {
		return
	}
	logger.Debug("dump", "name", name, "type", fmt.Sprintf("%T", v), "value", fmt.Sprintf("%+v", v))
}
