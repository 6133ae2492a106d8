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
	Register(&ListCmd{})
}

// ListCmd implements the list command: the active tasks of the connected
// account, newest first. Also handles bare `chaintask` with no args.
type ListCmd struct {
	oneline bool
}

// SetOneline sets single-line output (for testing).
func (c *ListCmd) SetOneline(v bool) {
	c.oneline = v
}

func (c *ListCmd) Name() string       { return "list" }
func (c *ListCmd) Aliases() []string  { return []string{"ls"} }
func (c *ListCmd) Synopsis() string   { return "List tasks" }
func (c *ListCmd) Usage() string      { return "chaintask list [--oneline]" }
func (c *ListCmd) NeedsBackend() bool { return true }
func (c *ListCmd) NeedsSession() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.oneline, "oneline", false, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	if err := env.Tasks.Load(ctx); err != nil {
		return Fail(errOut, err)
	}

	for _, task := range env.Tasks.Tasks() {
		if c.oneline {
			output.FormatTaskOneline(out, task)
		} else {
			output.FormatTask(out, task)
		}
	}
	return exitcode.Success
}
