package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	json "github.com/goccy/go-json"
)

// logRecordMsg delivers a slog record to the model for display in the
// status bar.
type logRecordMsg struct {
	Summary    string
	Structured string // full record as JSON
	Level      slog.Level
}

// logRecordFadeMsg clears a log message from the status bar unless a newer
// one replaced it.
type logRecordFadeMsg struct{ seq int }

// logRecordFadeDelay is how long log messages stay in the status bar.
const logRecordFadeDelay = 5 * time.Second

// TUILogHandler is a slog.Handler that routes records into a bubbletea
// program as messages. Records below the configured level are dropped, and
// so is everything logged before SetProgram.
//
// Handlers derived via WithAttrs/WithGroup share the program pointer, so a
// single SetProgram call reaches all of them.
type TUILogHandler struct {
	level   slog.Level
	program *atomic.Pointer[tea.Program]
	attrs   []slog.Attr
	groups  []string
}

// NewTUILogHandler creates a handler for records at or above level.
func NewTUILogHandler(level slog.Level) *TUILogHandler {
	return &TUILogHandler{
		level:   level,
		program: &atomic.Pointer[tea.Program]{},
	}
}

// SetProgram sets the program that receives log messages. Safe to call from
// any goroutine.
func (h *TUILogHandler) SetProgram(program *tea.Program) {
	h.program.Store(program)
}

func (h *TUILogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *TUILogHandler) Handle(_ context.Context, record slog.Record) error {
	program := h.program.Load()
	if program == nil {
		return nil
	}
	program.Send(h.format(record))
	return nil
}

// format builds the status bar line "message (key=value, ...)" and the JSON
// form of the record.
func (h *TUILogHandler) format(record slog.Record) logRecordMsg {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	var parts []string
	fields := map[string]any{
		"time":  record.Time.Format(time.RFC3339),
		"level": record.Level.String(),
		"msg":   record.Message,
	}
	add := func(attr slog.Attr) bool {
		parts = append(parts, fmt.Sprintf("%s%s=%s", prefix, attr.Key, attr.Value))
		fields[prefix+attr.Key] = attr.Value.String()
		return true
	}
	for _, attr := range h.attrs {
		add(attr)
	}
	record.Attrs(add)

	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}

	structured := fmt.Sprintf(`{"msg":%q,"error":"marshal failed"}`, record.Message)
	if data, err := json.Marshal(fields); err == nil {
		structured = string(data)
	}
	return logRecordMsg{Summary: summary, Structured: structured, Level: record.Level}
}

func (h *TUILogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TUILogHandler{
		level:   h.level,
		program: h.program,
		attrs:   append(sliceClone(h.attrs), attrs...),
		groups:  sliceClone(h.groups),
	}
}

func (h *TUILogHandler) WithGroup(name string) slog.Handler {
	return &TUILogHandler{
		level:   h.level,
		program: h.program,
		attrs:   sliceClone(h.attrs),
		groups:  append(sliceClone(h.groups), name),
	}
}

func sliceClone[T any](source []T) []T {
	if source == nil {
		return nil
	}
	result := make([]T, len(source))
	copy(result, source)
	return result
}
