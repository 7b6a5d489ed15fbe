package logger

import (
	"fmt"
	"log/slog"

	"github.com/thushan/ladle/internal/core/domain"
)

// PlainStyledLogger implements StyledLogger without formatting
type PlainStyledLogger struct {
	logger *slog.Logger
}

func NewPlainStyledLogger(logger *slog.Logger) *PlainStyledLogger {
	return &PlainStyledLogger{
		logger: logger,
	}
}

func (sl *PlainStyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *PlainStyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *PlainStyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *PlainStyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *PlainStyledLogger) InfoWithCount(msg string, count int, args ...any) {
	sl.logger.Info(fmt.Sprintf("%s (%d)", msg, count), args...)
}

func (sl *PlainStyledLogger) InfoWithServer(msg string, server string, args ...any) {
	sl.logger.Info(fmt.Sprintf("%s %s", msg, server), args...)
}

func (sl *PlainStyledLogger) WarnWithServer(msg string, server string, args ...any) {
	sl.logger.Warn(fmt.Sprintf("%s %s", msg, server), args...)
}

func (sl *PlainStyledLogger) ErrorWithServer(msg string, server string, args ...any) {
	sl.logger.Error(fmt.Sprintf("%s %s", msg, server), args...)
}

func (sl *PlainStyledLogger) InfoSession(msg string, session string, args ...any) {
	sl.logger.Info(fmt.Sprintf("%s %s", msg, session), args...)
}

func (sl *PlainStyledLogger) InfoHealthStatus(msg string, server string, status string, args ...any) {
	sl.logger.Info(fmt.Sprintf("%s %s is %s", msg, server, status), args...)
}

func (sl *PlainStyledLogger) InfoBreakerTransition(t domain.BreakerTransition) {
	sl.logger.Info(fmt.Sprintf("Breaker for %s moved %s to %s", t.Name, t.From, t.To))
}

func (sl *PlainStyledLogger) InfoWithContext(msg string, server string, lctx LogContext) {
	sl.logger.Info(fmt.Sprintf("%s %s", msg, server), lctx.UserArgs...)

	if len(lctx.DetailedArgs) > 0 {
		detailed := append([]any{"server", server}, lctx.UserArgs...)
		detailed = append(detailed, lctx.DetailedArgs...)
		sl.logger.InfoContext(detailedContext(), msg, detailed...)
	}
}

func (sl *PlainStyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

func (sl *PlainStyledLogger) WithRequestID(requestID string) StyledLogger {
	return sl.With("request_id", requestID)
}

func (sl *PlainStyledLogger) With(args ...any) StyledLogger {
	return &PlainStyledLogger{
		logger: sl.logger.With(args...),
	}
}
