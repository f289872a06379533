// Package console formats Gandalf's startup and diagnostic output for stderr.
//
// Per the transport contract, stdout is reserved exclusively for JSON-RPC
// traffic; every human-facing message this package renders must go to
// stderr, and only ever for fatal startup diagnostics or CLI subcommands
// (serve/version/cache/config), never as part of request handling.
package console

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// isTTY reports whether stderr is attached to a terminal.
func isTTY() bool {
	return isatty.IsTerminal(os.Stderr.Fd())
}

func applyStyle(style lipgloss.Style, text string) string {
	if isTTY() {
		return style.Render(text)
	}
	return text
}

// FormatSuccessMessage formats a success message for stderr output.
func FormatSuccessMessage(message string) string {
	return applyStyle(successStyle, "✓ ") + message
}

// FormatInfoMessage formats an informational message for stderr output.
func FormatInfoMessage(message string) string {
	return applyStyle(infoStyle, "ℹ ") + message
}

// FormatWarningMessage formats a warning message for stderr output.
func FormatWarningMessage(message string) string {
	return applyStyle(warningStyle, "⚠ ") + message
}

// FormatErrorMessage formats an error message for stderr output.
func FormatErrorMessage(message string) string {
	return applyStyle(errorStyle, "✗ ") + message
}
