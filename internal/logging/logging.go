// Package logging builds the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
)

// Builder contains the data needed to create a logger. Don't create instances of this
// directly, use NewLogger instead.
type Builder struct {
	out    io.Writer
	level  string
	file   string
	fields map[string]any
}

// NewLogger creates a builder that can then be used to configure and create a logger.
func NewLogger() *Builder {
	return &Builder{
		level: "info",
		file:  "stdout",
	}
}

// SetOut sets the stream used when the log file is "stdout". Optional.
func (b *Builder) SetOut(value io.Writer) *Builder {
	b.out = value
	return b
}

// SetLevel sets the log level: debug, info, warn or error.
func (b *Builder) SetLevel(value string) *Builder {
	b.level = value
	return b
}

// SetFile sets the destination: a path, or the special values "stdout"/"stderr".
func (b *Builder) SetFile(value string) *Builder {
	b.file = value
	return b
}

// AddField adds a field that will be attached to every log message.
func (b *Builder) AddField(name string, value any) *Builder {
	if b.fields == nil {
		b.fields = map[string]any{}
	}
	b.fields[name] = value
	return b
}

// Build creates the logger configured by this builder.
func (b *Builder) Build() (*slog.Logger, error) {
	var level slog.Level
	switch b.level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level '%s'", b.level)
	}

	var writer io.Writer
	switch b.file {
	case "stdout":
		if b.out != nil {
			writer = b.out
		} else {
			writer = os.Stdout
		}
	case "stderr":
		writer = os.Stderr
	default:
		handle, err := os.OpenFile(b.file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file '%s': %w", b.file, err)
		}
		writer = handle
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})
	logger := slog.New(handler)

	if len(b.fields) > 0 {
		names := make([]string, 0, len(b.fields))
		for name := range b.fields {
			names = append(names, name)
		}
		sort.Strings(names)
		args := make([]any, 0, len(names)*2)
		for _, name := range names {
			args = append(args, name, b.fields[name])
		}
		logger = logger.With(args...)
	}

	return logger, nil
}
