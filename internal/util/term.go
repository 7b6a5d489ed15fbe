package util

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/thushan/ladle/pkg/container"
)

// IsTerminal reports whether stdout is attached to a TTY.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// ShouldUseColors decides whether terminal output gets ANSI colour.
// Explicit overrides win, in order: NO_COLOR (https://no-color.org),
// FORCE_COLOR, then LADLE_FORCE_COLORS. Otherwise colour is on for a
// real TTY outside a container.
func ShouldUseColors() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	if force := os.Getenv("FORCE_COLOR"); force != "" {
		return force != "0"
	}

	if force := os.Getenv("LADLE_FORCE_COLORS"); force != "" {
		return strings.EqualFold(force, "true")
	}

	// Container logs usually land in a collector, not a terminal,
	// even when a TTY is attached.
	if container.IsContainerised() {
		return false
	}

	return IsTerminal()
}
