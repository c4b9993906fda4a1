// Package color decides whether CLI output is styled and holds the styles.
package color

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Enabled reports whether styled output is allowed. NO_COLOR (any value),
// CLICOLOR=0, TERM=dumb and the --no-color flag each turn it off.
func Enabled(noColorFlag bool) bool {
	if noColorFlag {
		return false
	}

	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}

	return os.Getenv("CLICOLOR") != "0" && os.Getenv("TERM") != "dumb"
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Theme holds the styles used by janlauncher commands.
type Theme struct {
	Success lipgloss.Style
	Failure lipgloss.Style
	Stage   lipgloss.Style
	Version lipgloss.Style
	Header  lipgloss.Style
	Muted   lipgloss.Style
}

// NewTheme creates a Theme. Without color every style renders plain text.
func NewTheme(color bool) Theme {
	if !color {
		return Theme{}
	}

	return Theme{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Stage:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Version: lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		Header:  lipgloss.NewStyle().Bold(true).Underline(true),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}
