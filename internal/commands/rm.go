package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"chaintask/internal/config"
	"chaintask/internal/exitcode"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command. Deletion is the contract's soft delete;
// the id is the contract-assigned one shown by list.
type RmCmd struct{}

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete a task" }
func (c *RmCmd) Usage() string      { return "chaintask rm <id>" }
func (c *RmCmd) NeedsBackend() bool { return true }
func (c *RmCmd) NeedsSession() bool { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "error: task id required")
		return exitcode.UserError
	}
	if len(args) > 1 {
		fmt.Fprintln(errOut, "error: expected exactly one task id")
		return exitcode.UserError
	}

	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(errOut, "error: invalid task id: %s\n", args[0])
		return exitcode.UserError
	}

	if err := env.Tasks.DeleteTask(ctx, id); err != nil {
		return Fail(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
