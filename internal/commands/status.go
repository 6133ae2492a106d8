package commands

import (
	"context"
	"flag"
	"io"

	"chaintask/internal/config"
	"chaintask/internal/exitcode"
	"chaintask/internal/output"
)

func init() {
	Register(&StatusCmd{})
}

// StatusCmd implements the status command.
type StatusCmd struct{}

func (c *StatusCmd) Name() string       { return "status" }
func (c *StatusCmd) Aliases() []string  { return nil }
func (c *StatusCmd) Synopsis() string   { return "Show the connected session" }
func (c *StatusCmd) Usage() string      { return "chaintask status [common flags]" }
func (c *StatusCmd) NeedsBackend() bool { return true }
func (c *StatusCmd) NeedsSession() bool { return true }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	if err := env.Tasks.Load(ctx); err != nil {
		return Fail(errOut, err)
	}
	output.FormatStatus(out, env.Manager.Session(), len(env.Tasks.Tasks()))
	return exitcode.Success
}
