// Package progress provides terminal progress indicators for the CLI:
// capability detection and a spinner shown while the dataset index is
// built. Graph assembly itself is fast and silent.
package progress

import (
	"os"

	"golang.org/x/term"
)

// TerminalCapabilities describes what the attached terminal supports.
type TerminalCapabilities struct {
	IsTTY           bool
	SupportsColor   bool
	SupportsUnicode bool
	Width           int
}

// DetectTerminalCapabilities detects terminal features and returns capabilities.
func DetectTerminalCapabilities() TerminalCapabilities {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	noColor := os.Getenv("NO_COLOR") != ""
	forceASCII := os.Getenv("BOLDFIT_ASCII") == "1"

	width := 0
	if isTTY {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = w
		}
	}

	return TerminalCapabilities{
		IsTTY:           isTTY,
		SupportsColor:   isTTY && !noColor,
		SupportsUnicode: isTTY && !forceASCII,
		Width:           width,
	}
}

// ProgressSymbols holds the indicator characters matching the terminal.
type ProgressSymbols struct {
	Checkmark  string
	Failure    string
	SpinnerSet int
}

// SelectSymbols returns the appropriate symbol set based on terminal capabilities.
func SelectSymbols(caps TerminalCapabilities) ProgressSymbols {
	if caps.SupportsUnicode {
		return ProgressSymbols{
			Checkmark:  "✓",
			Failure:    "✗",
			SpinnerSet: 14, // Unicode braille dots
		}
	}
	return ProgressSymbols{
		Checkmark:  "[OK]",
		Failure:    "[FAIL]",
		SpinnerSet: 9, // ASCII: | / - \
	}
}
