package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"chaintask/internal/config"
	"chaintask/internal/exitcode"
)

func init() {
	Register(&DisconnectCmd{})
}

// DisconnectCmd implements the disconnect command. Teardown is local only:
// the persisted session is removed and nothing on chain is touched.
type DisconnectCmd struct{}

func (c *DisconnectCmd) Name() string       { return "disconnect" }
func (c *DisconnectCmd) Aliases() []string  { return []string{"logout"} }
func (c *DisconnectCmd) Synopsis() string   { return "Forget the connected account" }
func (c *DisconnectCmd) Usage() string      { return "chaintask disconnect [common flags]" }
func (c *DisconnectCmd) NeedsBackend() bool { return false }
func (c *DisconnectCmd) NeedsSession() bool { return false }

func (c *DisconnectCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DisconnectCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	if !cfg.HasSession() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "not connected")
		}
		return exitcode.Success
	}

	if err := cfg.RemoveSession(); err != nil {
		fmt.Fprintf(errOut, "error: failed to remove session: %v\n", err)
		return exitcode.SessionError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
