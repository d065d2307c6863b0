package main

import (
	"errors"
	"fmt"
	"os"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// exitError carries a specific process exit code through cobra's RunE
// chain: 1 for a build that completed but recorded content/template
// errors, 2 for a fatal failure (bad config, cache I/O, a crashed build).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func recordedErrorsExit(err error) error { return &exitError{code: 1, err: err} }
func fatalExit(err error) error          { return &exitError{code: 2, err: err} }

func main() {
	os.Exit(run())
}

func run() int {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 2
	}
	return 0
}
