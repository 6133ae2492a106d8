package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"chaintask/internal/config"
	"chaintask/internal/exitcode"
	"chaintask/internal/service"
)

func init() {
	Register(&ConnectCmd{})
}

// ConnectCmd implements the connect command.
type ConnectCmd struct {
	account string
}

// SetAccount sets the preferred account (for testing).
func (c *ConnectCmd) SetAccount(account string) {
	c.account = account
}

func (c *ConnectCmd) Name() string        { return "connect" }
func (c *ConnectCmd) Aliases() []string   { return []string{"login"} }
func (c *ConnectCmd) Synopsis() string    { return "Connect a wallet account" }
func (c *ConnectCmd) Usage() string       { return "chaintask connect [--account <addr-prefix>]" }
func (c *ConnectCmd) NeedsBackend() bool  { return true }
func (c *ConnectCmd) NeedsSession() bool  { return false }

func (c *ConnectCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.account, "account", "", "")
	fs.StringVar(&c.account, "a", "", "")
}

func (c *ConnectCmd) Run(ctx context.Context, cfg *config.Config, env *Env, args []string, out, errOut io.Writer) int {
	if !cfg.HasSettings() {
		fmt.Fprintf(errOut, "error: %s not found in %s\n\n", config.SettingsFile, cfg.Dir)
		fmt.Fprintln(errOut, "To connect, describe the node and contract in a config file:")
		fmt.Fprintln(errOut, "")
		fmt.Fprintf(errOut, "  %s\n", cfg.SettingsPath())
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "with the fields:")
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "  rpc_url: <json-rpc endpoint of your node>")
		fmt.Fprintln(errOut, "  contract_address: <deployed task contract, 0x-hex>")
		fmt.Fprintln(errOut, "  chain_id: <network the contract is deployed on>")
		fmt.Fprintln(errOut, "")
		fmt.Fprintf(errOut, "and place a keystore account under %s.\n", cfg.KeystorePath())
		fmt.Fprintln(errOut, "")
		fmt.Fprintln(errOut, "Then run 'chaintask connect' again.")
		return exitcode.SessionError
	}

	// An existing session is reused when it names the requested account.
	var stored service.Session
	if cfg.HasSession() {
		if sess, err := cfg.ReadSession(); err == nil {
			stored = sess
		}
	}
	preferred := c.account
	if preferred == "" {
		preferred = stored.Address
	}

	addr, err := env.Manager.Connect(ctx, preferred)
	if err != nil {
		return Fail(errOut, err)
	}

	sess := env.Manager.Session()
	if err := cfg.WriteSession(sess); err != nil {
		fmt.Fprintf(errOut, "error: failed to save session: %v\n", err)
		return exitcode.SessionError
	}

	if err := env.Tasks.Load(ctx); err != nil {
		// The session stands; only the initial load failed.
		return Fail(errOut, err)
	}

	if !cfg.Quiet {
		if stored.Address == addr {
			fmt.Fprintln(out, "already connected")
		} else {
			fmt.Fprintln(out, "ok")
		}
	}
	return exitcode.Success
}
