// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
)

// ErrorCategory tells the caller of a command whether to fix the input
// or report a failure.
type ErrorCategory string

const (
	// CategoryValidation means the invocation was wrong: unknown
	// command, bad flag, malformed argument.
	CategoryValidation ErrorCategory = "validation"

	// CategoryInternal means the command was well-formed but failed
	// because a collaborator returned an error.
	CategoryInternal ErrorCategory = "internal"
)

// CommandError is a categorized error returned by command handlers.
type CommandError struct {
	Category ErrorCategory
	Err      error
}

func (e *CommandError) Error() string { return e.Err.Error() }

func (e *CommandError) Unwrap() error { return e.Err }

// Validation reports bad input.
func Validation(format string, args ...any) *CommandError {
	return &CommandError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// Internal reports a failure that is not the caller's fault.
func Internal(format string, args ...any) *CommandError {
	return &CommandError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// IsValidation reports whether err carries CategoryValidation.
func IsValidation(err error) bool {
	var commandError *CommandError
	return errors.As(err, &commandError) && commandError.Category == CategoryValidation
}

// ExitError ends the process with Code and prints nothing more. The
// command has already written its own output.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode is the hook process.Fatal looks for.
func (e *ExitError) ExitCode() int {
	return e.Code
}
