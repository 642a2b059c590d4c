package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Setup configures slog to write to stderr and, when logFile is set, to that
// file too. format is "json" (JSONL) or "text". Returns a logger and a cleanup
// function to close the file handle.
func Setup(logFile string, level slog.Level, format string) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	cleanup := func() {}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, nil, err
		}

		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(os.Stderr, f)
		cleanup = func() {
			_ = f.Close()
		}
	}

	handler, err := newHandler(w, level, format)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return slog.New(handler), cleanup, nil
}

func newHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if f == "text" {
		return slog.NewTextHandler(w, opts), nil
	}
	return slog.NewJSONHandler(w, opts), nil
}

// ParseFormat parses json or text; empty means json.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(s); f {
	case "json", "":
		return "json", nil
	case "text":
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format: %s (valid: json, text)", s)
	}
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s (valid: debug, info, warn, error)", s)
	}
}
