package shopbot

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SecretToken is a string that redacts itself in logs and string output.
// BOT_TOKEN and WEBHOOK_SECRET are carried as SecretToken everywhere.
type SecretToken string

// LogValue implements slog.LogValuer.
func (SecretToken) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

func (SecretToken) String() string {
	return "[REDACTED]"
}

// Value returns the actual secret. Never log the result.
func (t SecretToken) Value() string {
	return string(t)
}

// ParseLogLevel maps debug|info|warn|error onto slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger creates a JSON slog.Logger writing to stdout and, when logFilePath
// is set, also to a file of that base name under ./logs.
func NewLogger(logLevel slog.Level, logFilePath string) (*slog.Logger, error) {
	var logOutput io.Writer = os.Stdout

	if logFilePath != "" {
		safeDir := "./logs"
		cleanPath := filepath.Clean(filepath.Join(safeDir, filepath.Base(logFilePath)))
		if err := ensureLogPath(cleanPath); err != nil {
			return nil, err
		}

		logFile, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, err
		}
		logOutput = io.MultiWriter(os.Stdout, logFile)
	}

	handler := slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler), nil
}
