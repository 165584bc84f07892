// Package logging configures the process-wide slog default used by the
// SDK's internal components.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup installs a text handler writing to stderr and, when storageDir is
// non-empty, a size-rotated debug log file alongside the SDK's state.
func Setup(storageDir string, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var sink io.Writer = os.Stderr
	if storageDir != "" {
		sink = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   filepath.Join(storageDir, "flexa.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{Level: level})))
}
