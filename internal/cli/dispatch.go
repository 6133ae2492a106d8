// Package cli handles command-line parsing and dispatch.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"chaintask/internal/commands"
	"chaintask/internal/config"
	"chaintask/internal/exitcode"
)

// EnvFactory builds the command environment (provider, session manager,
// task synchronizer) from config. Used to inject the backend during
// dispatch; tests supply fakes.
type EnvFactory func(ctx context.Context, cfg *config.Config) (*commands.Env, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  EnvFactory
}

// NewDispatcher creates a new dispatcher with the given registry and
// environment factory.
func NewDispatcher(registry *commands.Registry, factory EnvFactory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> list
	cmdName := "list"
	if len(args) > 0 {
		cmdName = args[0]
		args = args[1:]
	}

	// A leading flag is an error: flags require a command.
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // errors are reported below

	var configDir string
	var quiet bool
	var debug bool
	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return flagError(errOut, err)
	}

	// A positional starting with - would have been a flag.
	positional := fs.Args()
	if len(positional) > 0 && strings.HasPrefix(positional[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positional[0])
		return exitcode.UserError
	}

	cfg, err := config.New(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug

	var env *commands.Env
	if cmd.NeedsBackend() || cmd.NeedsSession() {
		if d.factory == nil {
			fmt.Fprintln(errOut, "error: no backend available")
			return exitcode.SessionError
		}
		env, err = d.factory(ctx, cfg)
		if err != nil {
			return commands.Fail(errOut, err)
		}
		if env.Manager != nil {
			defer env.Manager.Close()
		}
	}

	if cmd.NeedsSession() {
		if code := restoreSession(ctx, cfg, env, errOut); code != exitcode.Success {
			return code
		}
	}

	return cmd.Run(ctx, cfg, env, positional, out, errOut)
}

// restoreSession reconnects the persisted session before a command that
// requires one.
func restoreSession(ctx context.Context, cfg *config.Config, env *commands.Env, errOut io.Writer) int {
	if !cfg.HasSettings() {
		fmt.Fprintf(errOut, "error: %s not found in %s\n", config.SettingsFile, cfg.Dir)
		return exitcode.SessionError
	}
	if !cfg.HasSession() {
		fmt.Fprintln(errOut, "error: not connected (run: chaintask connect)")
		return exitcode.SessionError
	}
	sess, err := cfg.ReadSession()
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.SessionError
	}
	if _, err := env.Manager.Connect(ctx, sess.Address); err != nil {
		return commands.Fail(errOut, err)
	}
	return exitcode.Success
}

// flagError turns a flag-parse failure into the CLI's error shape.
func flagError(errOut io.Writer, err error) int {
	errStr := err.Error()

	if strings.Contains(errStr, "flag needs an argument") {
		parts := strings.Split(errStr, ":")
		flagPart := strings.TrimSpace(parts[0])
		flagPart = strings.TrimPrefix(flagPart, "flag ")
		fmt.Fprintf(errOut, "error: flag needs an argument: %s\n", flagPart)
		return exitcode.UserError
	}
	if rest, ok := strings.CutPrefix(errStr, "flag provided but not defined: "); ok {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", rest)
		return exitcode.UserError
	}

	fmt.Fprintf(errOut, "error: %s\n", errStr)
	return exitcode.UserError
}
