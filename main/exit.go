package main

import (
	"errors"
	"fmt"

	"github.com/phil-mansfield/jetbake/bake"
)

// Exit codes.
const (
	ExitFinished = 0
	ExitFailed   = 1
	ExitWarning  = 2
)

// ExitError is an error which ends the process with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// GetExitCode returns the exit code of an error returned by a command.
// Errors which aren't ExitErrors are failures.
func GetExitCode(err error) int {
	if err == nil {
		return ExitFinished
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailed
}

// resultError converts the outcome of a bake into a command error.
func resultError(res bake.Result) error {
	switch res.Status {
	case bake.Finished:
		return nil
	case bake.Warning:
		return &ExitError{Code: ExitWarning, Message: "Warning", Err: res.Err}
	}
	return &ExitError{Code: ExitFailed, Message: "Failed", Err: res.Err}
}
