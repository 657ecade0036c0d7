// Package terminal holds console settings and the interactive session jig
// uses to ask questions while Git runs its hooks.
package terminal

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// Default width constants.
const (
	DefaultWidth = 80
	MinWidth     = 60
	MaxWidth     = 120
)

// Config holds terminal rendering configuration.
type Config struct {
	Width   int
	NoColor bool
}

// NewConfig creates a Config from the environment and stdout.
func NewConfig() Config {
	return Config{
		Width:   DetectWidth(),
		NoColor: os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// DetectWidth returns the width from COLUMNS, then from the stdout terminal,
// clamped to [MinWidth, MaxWidth]. DefaultWidth is used when neither is known.
func DetectWidth() int {
	if columns, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && columns > 0 {
		return clamp(columns)
	}

	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return clamp(width)
	}

	return DefaultWidth
}

func clamp(width int) int {
	return min(max(width, MinWidth), MaxWidth)
}
