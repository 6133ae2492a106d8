package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"chaintask/internal/config"
	"chaintask/internal/exitcode"
	"chaintask/internal/session"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd implements the watch command: a long-running loop that follows
// account and network change notifications, resynchronizing on account
// switches. A network switch ends the process with the Reload exit code so a
// supervisor can restart it against the new context.
type WatchCmd struct{}

func (c *WatchCmd) Name() string       { return "watch" }
func (c *WatchCmd) Aliases() []string  { return nil }
func (c *WatchCmd) Synopsis() string   { return "Follow account and network changes" }
func (c *WatchCmd) Usage() string      { return "chaintask watch [common flags]" }
func (c *WatchCmd) NeedsBackend() bool { return true }
func (c *WatchCmd) NeedsSession() bool { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	if err := env.Tasks.Load(ctx); err != nil {
		return Fail(errOut, err)
	}

	sessionSub := env.Manager.Subscribe(func(ev session.Event) {
		if cfg.Quiet {
			return
		}
		if ev.State == session.Connected {
			fmt.Fprintf(out, "%s %s\n", ev.State, ev.Session.Address)
		} else {
			fmt.Fprintln(out, ev.State)
		}
	})
	defer env.Manager.Unsubscribe(sessionSub)

	taskSub := env.Tasks.Subscribe(func() {
		if !cfg.Quiet {
			fmt.Fprintf(out, "tasks: %d\n", len(env.Tasks.Tasks()))
		}
	})
	defer env.Tasks.Unsubscribe(taskSub)

	if !cfg.Quiet {
		fmt.Fprintf(out, "watching %s\n", env.Manager.Session().Address)
	}

	err := env.Manager.Run(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		return exitcode.Success
	case errors.Is(err, session.ErrNetworkChanged):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.Reload
	default:
		return Fail(errOut, err)
	}
}
