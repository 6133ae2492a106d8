package service

import "context"

// Provider is the wallet collaborator: it holds accounts, reports the
// connected network, and notifies on account or chain changes. It is treated
// as untrusted and asynchronous; no call is assumed to complete promptly.
type Provider interface {
	// RequestAccounts asks the provider for the authorized accounts.
	// The first entry is the active account.
	RequestAccounts(ctx context.Context) ([]string, error)

	// ChainID returns the identifier of the connected network.
	ChainID(ctx context.Context) (uint64, error)

	// CodeAt returns the executable code at addr, used to probe that a
	// contract actually exists before a session is established.
	CodeAt(ctx context.Context, addr string) ([]byte, error)

	// SubscribeAccounts delivers the new account list whenever the
	// provider's account set changes. An empty list means access was
	// revoked.
	SubscribeAccounts(ctx context.Context, ch chan<- []string) (Subscription, error)

	// SubscribeChain delivers the new chain id whenever the connected
	// network changes.
	SubscribeChain(ctx context.Context, ch chan<- uint64) (Subscription, error)
}

// Subscription is a scoped registration with guaranteed deregistration.
// Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
	Err() <-chan error
}
