// Package observability provides logging and metrics.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// ConnLogger provides structured logging for connection lifecycle events.
type ConnLogger struct {
	component string
	logger    *Logger
}

// NewConnLogger creates a ConnLogger for the given component.
func NewConnLogger(component string) *ConnLogger {
	return &ConnLogger{component: component, logger: GlobalLogger}
}

// LogConnect logs a new TCP connection.
func (l *ConnLogger) LogConnect(ctx context.Context, sessionID uint64, addr string) {
	l.logger.InfoContext(ctx, "connection opened",
		slog.String("component", l.component),
		slog.Uint64("session_id", sessionID),
		slog.String("addr", addr),
	)
}

// LogDisconnect logs a closed connection, with the username when one was
// authenticated.
func (l *ConnLogger) LogDisconnect(ctx context.Context, sessionID uint64, addr, username string) {
	attrs := []any{
		slog.String("component", l.component),
		slog.Uint64("session_id", sessionID),
		slog.String("addr", addr),
	}
	if username != "" {
		attrs = append(attrs, slog.String("username", username))
	}
	l.logger.InfoContext(ctx, "connection closed", attrs...)
}

// LogFrame logs a dispatched inbound frame.
func (l *ConnLogger) LogFrame(ctx context.Context, sessionID uint64, frameType string) {
	l.logger.InfoContext(ctx, "frame received",
		slog.String("component", l.component),
		slog.Uint64("session_id", sessionID),
		slog.String("frame_type", frameType),
	)
}

// LogError logs a component error.
func (l *ConnLogger) LogError(ctx context.Context, sessionID uint64, err error, event string) {
	l.logger.ErrorContext(ctx, "connection error",
		slog.String("component", l.component),
		slog.Uint64("session_id", sessionID),
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}

// RepoLogger provides structured logging for repository errors.
type RepoLogger struct {
	tableName string
	logger    *Logger
}

// NewRepoLogger creates a RepoLogger for the given table.
func NewRepoLogger(tableName string) *RepoLogger {
	return &RepoLogger{tableName: tableName, logger: GlobalLogger}
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string) {
	l.logger.ErrorContext(ctx, "repository error",
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
