// Copyright (c) 2025 basexq
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

var levels = map[string]pterm.LogLevel{
	"trace": pterm.LogLevelTrace,
	"debug": pterm.LogLevelDebug,
	"info":  pterm.LogLevelInfo,
	"warn":  pterm.LogLevelWarn,
	"error": pterm.LogLevelError,
	"off":   pterm.LogLevelDisabled,
}

// ParseLevel maps a level name (trace, debug, info, warn, error, off) to a pterm level.
func ParseLevel(name string) (pterm.LogLevel, error) {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return pterm.LogLevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// New returns a logger writing to w at the given level.
func New(w io.Writer, level pterm.LogLevel) *pterm.Logger {
	return pterm.DefaultLogger.WithWriter(w).WithLevel(level)
}

// Default returns the logger used when a caller does not supply one:
// warnings and errors only, to stderr.
func Default() *pterm.Logger {
	return New(os.Stderr, pterm.LogLevelWarn)
}

// Discard returns a logger that drops everything.
func Discard() *pterm.Logger {
	return New(io.Discard, pterm.LogLevelDisabled)
}
