package utils

import (
	"os"

	"golang.org/x/term"
)

// StdinIsTerminal returns true if stdin is a terminal.
func StdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// StderrIsTerminal returns true if stderr is a terminal. Progress display
// is only useful when someone is watching.
func StderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}
