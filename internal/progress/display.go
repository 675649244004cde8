package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
)

// Display shows a spinner for a long-running step on a TTY, falling back
// to plain line output otherwise.
type Display struct {
	capabilities TerminalCapabilities
	symbols      ProgressSymbols
	spinner      *spinner.Spinner
}

// NewDisplay creates a progress display with the given terminal capabilities.
func NewDisplay(caps TerminalCapabilities) *Display {
	return &Display{
		capabilities: caps,
		symbols:      SelectSymbols(caps),
	}
}

// Start begins showing progress for a step.
func (d *Display) Start(msg string) {
	if d.capabilities.IsTTY {
		d.spinner = spinner.New(
			spinner.CharSets[d.symbols.SpinnerSet],
			100*time.Millisecond,
		)
		// Stderr keeps the rendered graph on stdout clean.
		d.spinner.Writer = os.Stderr
		d.spinner.Suffix = " " + msg
		d.spinner.Start()
		return
	}
	fmt.Fprintln(os.Stderr, msg)
}

// Success stops the indicator with a success mark.
func (d *Display) Success(msg string) {
	d.stop()
	fmt.Fprintf(os.Stderr, "%s %s\n", d.symbols.Checkmark, msg)
}

// Fail stops the indicator with a failure mark.
func (d *Display) Fail(msg string) {
	d.stop()
	fmt.Fprintf(os.Stderr, "%s %s\n", d.symbols.Failure, msg)
}

func (d *Display) stop() {
	if d.spinner != nil {
		d.spinner.Stop()
		d.spinner = nil
	}
}
