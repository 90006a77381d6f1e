package obs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	loggerMu sync.RWMutex
	logger   = newLogger(os.Stdout, slog.LevelInfo)
)

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Logger returns the shared structured logger used across the service.
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetOutput redirects the shared logger and returns a func restoring the previous one.
func SetOutput(w io.Writer) (restore func()) {
	loggerMu.Lock()
	prev := logger
	logger = newLogger(w, slog.LevelDebug)
	loggerMu.Unlock()
	return func() {
		loggerMu.Lock()
		logger = prev
		loggerMu.Unlock()
	}
}

// SetLevel swaps the shared logger for one writing to stdout at the given level.
func SetLevel(level slog.Level) {
	loggerMu.Lock()
	logger = newLogger(os.Stdout, level)
	loggerMu.Unlock()
}

// LogRequest emits a structured log line with common HTTP fields.
func LogRequest(msg string, attrs ...slog.Attr) {
	Logger().LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}
