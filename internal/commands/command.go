// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"chaintask/internal/config"
	"chaintask/internal/exitcode"
	"chaintask/internal/service"
	"chaintask/internal/session"
	"chaintask/internal/tasksync"
)

// Env bundles the collaborators a command operates on: the wallet provider,
// the session manager, and the task synchronizer wired to it.
type Env struct {
	Provider service.Provider
	Manager  *session.Manager
	Tasks    *tasksync.Synchronizer
}

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsBackend reports whether the dispatcher must build an Env
	// (node connection, keystore) before running the command.
	NeedsBackend() bool

	// NeedsSession reports whether the dispatcher must restore the
	// persisted session and connect before running the command.
	// Implies NeedsBackend.
	NeedsSession() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command. env is nil unless NeedsBackend.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int
}

// Fail prints err in the standard form and maps it onto an exit code.
func Fail(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "error: %v\n", err)
	return CodeFor(err)
}

// CodeFor maps an error from the session or sync layer onto an exit code.
func CodeFor(err error) int {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, service.ErrBusy),
		errors.Is(err, service.ErrNotOwner):
		return exitcode.UserError
	case errors.Is(err, service.ErrProviderMissing),
		errors.Is(err, service.ErrWrongNetwork),
		errors.Is(err, service.ErrContractUnavailable),
		errors.Is(err, service.ErrNotConnected):
		return exitcode.SessionError
	default:
		return exitcode.ChainError
	}
}
