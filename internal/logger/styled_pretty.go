package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/theme"
)

// PrettyStyledLogger implements StyledLogger with pterm formatting
type PrettyStyledLogger struct {
	logger *slog.Logger
	Theme  *theme.Theme
}

func NewPrettyStyledLogger(logger *slog.Logger, theme *theme.Theme) *PrettyStyledLogger {
	return &PrettyStyledLogger{
		logger: logger,
		Theme:  theme,
	}
}

func (sl *PrettyStyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *PrettyStyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *PrettyStyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *PrettyStyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

func (sl *PrettyStyledLogger) InfoWithCount(msg string, count int, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Counts}.Sprint("(", count, ")"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *PrettyStyledLogger) InfoWithServer(msg string, server string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Server}.Sprint(server))
	sl.logger.Info(styledMsg, args...)
}

func (sl *PrettyStyledLogger) WarnWithServer(msg string, server string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Server}.Sprint(server))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *PrettyStyledLogger) ErrorWithServer(msg string, server string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Server}.Sprint(server))
	sl.logger.Error(styledMsg, args...)
}

func (sl *PrettyStyledLogger) InfoSession(msg string, session string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Session}.Sprint(session))
	sl.logger.Info(styledMsg, args...)
}

func (sl *PrettyStyledLogger) InfoHealthStatus(msg string, server string, status string, args ...any) {
	var statusColor pterm.Color
	switch status {
	case domain.HealthStatusUp:
		statusColor = sl.Theme.HealthUp
	case domain.HealthStatusDown:
		statusColor = sl.Theme.HealthDown
	default:
		statusColor = sl.Theme.HealthUnknown
	}
	styledMsg := fmt.Sprintf("%s %s is %s", msg,
		pterm.Style{sl.Theme.Server}.Sprint(server),
		pterm.Style{statusColor}.Sprint(status))
	sl.logger.Info(styledMsg, args...)
}

func (sl *PrettyStyledLogger) InfoBreakerTransition(t domain.BreakerTransition) {
	styledMsg := fmt.Sprintf("Breaker for %s moved %s to %s",
		pterm.Style{sl.Theme.Server}.Sprint(t.Name),
		pterm.Style{sl.breakerColor(t.From)}.Sprint(string(t.From)),
		pterm.Style{sl.breakerColor(t.To)}.Sprint(string(t.To)))
	sl.logger.Info(styledMsg)
}

func (sl *PrettyStyledLogger) breakerColor(state domain.BreakerState) pterm.Color {
	switch state {
	case domain.BreakerOpen:
		return sl.Theme.BreakerOpen
	case domain.BreakerHalfOpen:
		return sl.Theme.BreakerHalf
	default:
		return sl.Theme.BreakerClosed
	}
}

// InfoWithContext writes the terse line to the terminal and, when detailed
// args exist, a second expanded record that only the file handler accepts.
func (sl *PrettyStyledLogger) InfoWithContext(msg string, server string, lctx LogContext) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.Theme.Server}.Sprint(server))
	sl.logger.Info(styledMsg, lctx.UserArgs...)

	if len(lctx.DetailedArgs) > 0 {
		detailed := append([]any{"server", server}, lctx.UserArgs...)
		detailed = append(detailed, lctx.DetailedArgs...)
		sl.logger.InfoContext(detailedContext(), msg, detailed...)
	}
}

func (sl *PrettyStyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

func (sl *PrettyStyledLogger) WithRequestID(requestID string) StyledLogger {
	return sl.With("request_id", requestID)
}

func (sl *PrettyStyledLogger) With(args ...any) StyledLogger {
	return &PrettyStyledLogger{
		logger: sl.logger.With(args...),
		Theme:  sl.Theme,
	}
}
