// Package ui prints colored progress for the CLI. All output goes to stderr
// so stdout stays clean for the JSON result.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	out     io.Writer = os.Stderr
	verbose bool

	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// Init sets color and verbosity for the process.
func Init(noColor, verboseOutput bool) {
	verbose = verboseOutput
	if noColor {
		color.NoColor = true
	}
}

// SetOutput redirects all UI output.
func SetOutput(w io.Writer) {
	out = w
}

// Section prints an underlined title.
func Section(title string) {
	bold.Fprintf(out, "\n%s\n", title)
	fmt.Fprintf(out, "%s\n", strings.Repeat("=", len(title)))
}

// Success displays a success message.
func Success(format string, args ...interface{}) {
	green.Fprintf(out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Error displays an error message.
func Error(format string, args ...interface{}) {
	red.Fprintf(out, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Warning displays a warning message.
func Warning(format string, args ...interface{}) {
	yellow.Fprintf(out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	cyan.Fprintf(out, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Debug displays a message only in verbose mode.
func Debug(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(out, "  %s\n", fmt.Sprintf(format, args...))
	}
}
