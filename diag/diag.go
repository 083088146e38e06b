// Package diag is the structured-logging and counter boundary every
// other package reports through: line on frame/write outcomes, report
// on command and HID-report outcomes, cmd/picoatxt on boot events.
package diag

import (
	"io"
	"log/slog"
)

// Component tags which layer emitted a log line, mirroring the
// component-tagged LogInfo/LogError call shape used elsewhere in the
// corpus for multi-package firmware.
type Component string

const (
	ComponentLine   Component = "line"
	ComponentReport Component = "report"
	ComponentMain   Component = "main"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// SetOutput redirects subsequent log lines to w at the given level.
// cmd/picoatxt calls this once the UART is configured; tests and the
// zero-value state both discard quietly.
func SetOutput(w io.Writer, level slog.Level) {
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// LogInfo logs an informational line tagged with its component.
func LogInfo(c Component, msg string, args ...any) {
	logger.Info(msg, append([]any{"component", string(c)}, args...)...)
}

// LogError logs an error line tagged with its component.
func LogError(c Component, msg string, args ...any) {
	logger.Error(msg, append([]any{"component", string(c)}, args...)...)
}
