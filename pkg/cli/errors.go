package cli

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/parley/pkg/config"
	"mercator-hq/parley/pkg/providers"
)

// Process exit codes.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitConfig       = 2
	ExitUnauthorized = 3
	ExitRateLimited  = 4
	ExitInterrupted  = 130
)

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var verr config.ValidationError
	var cerr *providers.ConfigError
	switch {
	case errors.As(err, &verr), errors.As(err, &cerr):
		return ExitConfig
	case errors.Is(err, context.Canceled), errors.Is(err, providers.ErrCancelled):
		return ExitInterrupted
	case errors.Is(err, providers.ErrUnauthorized):
		return ExitUnauthorized
	case errors.Is(err, providers.ErrRateLimited):
		return ExitRateLimited
	}
	return ExitFailure
}

// Describe returns the text shown to the user for err. Provider failures
// get the friendly message; everything else is printed as is.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if providers.KindOf(err) != "" {
		return providers.UserMessage(err)
	}
	return err.Error()
}
