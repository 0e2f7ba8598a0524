package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"

	"haz.cat/sshovel/internal/ui"
	"haz.cat/sshovel/internal/utils"
)

// startSpinner creates and starts a spinner with the given message when
// not in verbose or debug mode. Returns the spinner and a function that
// should be deferred to clean up.
//
// The spinner writes to stderr: stdout may be the ciphertext stream, and
// progress is only worth showing to a human watching a terminal anyway.
// spinner.FinalMSG values do not need trailing newlines; the cleanup
// function normalizes them before printing.
func startSpinner(message string, verbose bool) (*spinner.Spinner, func()) {
	Logger.Debugf("starting spinner with message: %s", message)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message

	if err := s.Color("cyan"); err != nil {
		// If we can't set spinner color, just continue without it.
		Logger.Warnf("failed to set spinner color: %v", err)
	}

	animate := !verbose && !debug && utils.StderrIsTerminal()
	if animate {
		s.Start()
	} else {
		Logger.Infof("%s", message)
	}

	cleanup := func() {
		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			// Clear FinalMSG so s.Stop() doesn't print it.
			s.FinalMSG = ""
		}
		if animate {
			s.Stop()
		}
		if finalMsg != "" {
			fmt.Fprint(os.Stderr, finalMsg)
		}
	}

	return s, cleanup
}
