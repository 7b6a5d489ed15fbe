package logger

import (
	"context"
	"log/slog"

	"github.com/thushan/ladle/internal/core/domain"
	"github.com/thushan/ladle/internal/util"
	"github.com/thushan/ladle/theme"
)

// StyledLogger is the logging surface the rest of the gateway talks to.
// The pretty implementation colours inline values with the active theme;
// the plain one is used when stdout is not a terminal.
type StyledLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	InfoWithCount(msg string, count int, args ...any)
	InfoWithServer(msg string, server string, args ...any)
	WarnWithServer(msg string, server string, args ...any)
	ErrorWithServer(msg string, server string, args ...any)
	InfoSession(msg string, session string, args ...any)
	InfoHealthStatus(msg string, server string, status string, args ...any)
	InfoBreakerTransition(t domain.BreakerTransition)
	InfoWithContext(msg string, server string, lctx LogContext)

	With(args ...any) StyledLogger
	WithRequestID(requestID string) StyledLogger
	GetUnderlying() *slog.Logger
}

// LogContext separates user-facing from detailed logging context so the
// terminal stays clean while the log file keeps everything.
type LogContext struct {
	UserArgs     []interface{}
	DetailedArgs []interface{}
}

// NewWithTheme builds the slog logger plus the styled wrapper most callers
// want. Pretty when colours are on, plain otherwise.
func NewWithTheme(cfg *Config) (*slog.Logger, StyledLogger, func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	var styled StyledLogger
	if util.ShouldUseColors() {
		styled = NewPrettyStyledLogger(logger, theme.GetTheme(cfg.Theme))
	} else {
		styled = NewPlainStyledLogger(logger)
	}

	return logger, styled, cleanup, nil
}

// detailedContext marks a record as file-only for the multi handler.
func detailedContext() context.Context {
	return context.WithValue(context.Background(), DefaultDetailedCookie, true)
}
