package main

import (
	"fmt"
	"os"
)

const (
	exitSuccess       = 0
	exitCriticalError = 1
	exitUsageError    = 2
	exitSafetyRefusal = 3
	exitLockBusy      = 76
	exitInterrupted   = 130
)

// handleCmdError prints error to stderr and sets exit code.
func handleCmdError(exitCode *int, err error) {
	if err == nil {
		*exitCode = exitSuccess
		return
	}
	fmt.Fprintln(os.Stderr, err)
	*exitCode = mapExitCode(err)
}
