package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
)

// NewLogger builds a JSON logger tuned for production use.
// When file is set, records are also written to a rotating log file.
func NewLogger(level, file string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(Output(file), &slog.HandlerOptions{
		Level:     levelFromString(level),
		AddSource: true,
	}))
}

// Output returns stdout, teed into a lumberjack rotator when file is set.
func Output(file string) io.Writer {
	if strings.TrimSpace(file) == "" {
		return os.Stdout
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		MaxAge:     7, // days
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, rotator)
}

func levelFromString(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
