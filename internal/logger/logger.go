package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/thushan/ladle/internal/util"
	"github.com/thushan/ladle/theme"
)

type Config struct {
	Level      string
	LogDir     string
	Theme      string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	FileOutput bool
}

const (
	DefaultLogOutputName  = "ladle.log"
	DefaultDetailedCookie = "detailed"

	LogLevelDebug   = "debug"
	LogLevelInfo    = "info"
	LogLevelWarn    = "warn"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

// New builds the base slog.Logger: a terminal handler always, plus a
// rotating JSON file handler when cfg.FileOutput is set. The returned
// func closes the file rotator.
func New(cfg *Config) (*slog.Logger, func(), error) {
	level := slogLevel(cfg.Level)
	appTheme := theme.GetTheme(cfg.Theme)

	term := newTerminalHandler(level, appTheme)
	if !cfg.FileOutput {
		return slog.New(term), func() {}, nil
	}

	file, closeFile, err := newFileHandler(cfg, level)
	if err != nil {
		return nil, nil, err
	}

	return slog.New(&teeHandler{term: term, file: file}), closeFile, nil
}

func newTerminalHandler(level slog.Level, appTheme *theme.Theme) slog.Handler {
	if !util.ShouldUseColors() {
		// non-TTY gets plain JSON on stdout
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: scrubAttr,
		})
	}

	plogger := pterm.DefaultLogger.
		WithLevel(ptermLevel(level)).
		WithWriter(os.Stdout).
		WithFormatter(pterm.LogFormatterColorful).
		WithKeyStyles(map[string]pterm.Style{
			"level": *appTheme.Info,
			"msg":   *appTheme.Info,
			"time":  *appTheme.Muted,
		})

	return pterm.NewSlogHandler(plogger)
}

func newFileHandler(cfg *Config, level slog.Level) (slog.Handler, func(), error) {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return nil, nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, DefaultLogOutputName),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}

	handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: scrubAttr,
	})

	return handler, func() { _ = rotator.Close() }, nil
}

// scrubAttr keeps the JSON output clean: readable timestamps, styled
// strings with their ANSI codes stripped, arbitrary values stringified.
func scrubAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.String("timestamp", a.Value.Time().Format("2006-01-02 15:04:05"))
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); strings.ContainsRune(s, '\x1b') {
			return slog.String(a.Key, stripAnsiCodes(s))
		}
	case slog.KindAny:
		return slog.String(a.Key, fmt.Sprintf("%v", a.Value.Any()))
	}

	return a
}

// teeHandler fans each record out to the terminal and the log file.
// Records flagged detailed skip the terminal so verbose attrs only
// land in the file.
type teeHandler struct {
	term slog.Handler
	file slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.term.Enabled(ctx, level) || h.file.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	if !fileOnly(ctx) && h.term.Enabled(ctx, record.Level) {
		if err := h.term.Handle(ctx, record); err != nil {
			return err
		}
	}

	if h.file.Enabled(ctx, record.Level) {
		return h.file.Handle(ctx, record)
	}

	return nil
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{term: h.term.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{term: h.term.WithGroup(name), file: h.file.WithGroup(name)}
}

func fileOnly(ctx context.Context) bool {
	flagged, ok := ctx.Value(DefaultDetailedCookie).(bool)
	return ok && flagged
}

func slogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn, LogLevelWarning:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ptermLevel(level slog.Level) pterm.LogLevel {
	switch level {
	case slog.LevelDebug:
		return pterm.LogLevelTrace
	case slog.LevelWarn:
		return pterm.LogLevelWarn
	case slog.LevelError:
		return pterm.LogLevelError
	default:
		return pterm.LogLevelInfo
	}
}
