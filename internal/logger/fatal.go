package logger

import (
	"log/slog"
	"os"
)

// FatalWithLogger logs the message at error level and exits. Only for
// startup failures, before the gateway is accepting work.
func FatalWithLogger(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
