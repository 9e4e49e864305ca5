// Package printer formats CLI output with color.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"docchain/pkg/domain"
)

func init() {
	// NO_COLOR disables color; otherwise color is on even without a TTY.
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// Success prints a green message with a checkmark prefix.
func Success(w io.Writer, format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	_, _ = green.Fprint(w, msg)
}

// Warning prints a yellow message with a warning prefix.
func Warning(w io.Writer, format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	_, _ = yellow.Fprint(w, msg)
}

// Step prints a cyan step message.
func Step(w io.Writer, format string, a ...any) {
	_, _ = cyan.Fprintf(w, "→ %s", fmt.Sprintf(format, a...))
}

// Error prints a red title, an explanation and numbered suggestions to w and
// returns a plain error carrying the title for cobra.
func Error(w io.Writer, title, explanation string, suggestions ...string) error {
	_, _ = red.Fprintf(w, "%s\n\n", title)
	if explanation != "" {
		_, _ = fmt.Fprintf(w, "%s\n", explanation)
	}
	switch len(suggestions) {
	case 0:
	case 1:
		_, _ = fmt.Fprintf(w, "\n%s\n", suggestions[0])
	default:
		_, _ = fmt.Fprintf(w, "\nEither:\n")
		for i, s := range suggestions {
			_, _ = fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
	return fmt.Errorf("%s", title)
}

// State renders a migration state in its color: current green, pending
// yellow, unrecognized red.
func State(state domain.MigrationState) string {
	switch state {
	case domain.StateCurrent:
		return green.Sprint(state)
	case domain.StatePending:
		return yellow.Sprint(state)
	case domain.StateUnrecognized:
		return red.Sprint(state)
	default:
		return string(state)
	}
}
