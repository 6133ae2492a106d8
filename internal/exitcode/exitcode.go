// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, validation, not owner,
	// busy).
	UserError = 1

	// SessionError indicates a session error (no provider, wrong network,
	// missing contract, not connected).
	SessionError = 2

	// ChainError indicates a node/contract/network error.
	ChainError = 3

	// Reload indicates the watched network changed and the hosting context
	// must be restarted.
	Reload = 4
)
