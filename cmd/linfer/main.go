package main

import (
	"os"

	"github.com/tebeka/atexit"
)

// Errors are printed by cobra on stderr; one-shot runs report theirs on
// stdout and exit 0.
func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
