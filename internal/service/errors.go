package service

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the failure modes a caller is expected to branch on.
// Anything else coming back from the provider or network boundary is wrapped
// in ProviderError with the underlying message preserved for display.
var (
	// ErrProviderMissing: no wallet provider is available.
	ErrProviderMissing = errors.New("wallet provider missing")

	// ErrWrongNetwork: the node's chain id does not match the configured
	// expected network. Connection is aborted with no partial session.
	ErrWrongNetwork = errors.New("wrong network")

	// ErrContractUnavailable: no executable code at the configured contract
	// address.
	ErrContractUnavailable = errors.New("no contract code at configured address")

	// ErrNotConnected: a mutation was attempted without a connected session.
	ErrNotConnected = errors.New("not connected")

	// ErrSyncFailure: the read path failed; the previous local list is
	// retained unchanged.
	ErrSyncFailure = errors.New("task sync failed")

	// ErrMutationRejected: a mutation was confirmed but the receipt lacks
	// the expected completion event. A confirmed transaction that silently
	// did nothing must not be reported as success.
	ErrMutationRejected = errors.New("mutation confirmed without expected event")

	// ErrNotOwner: the contract rejected a delete because the caller does
	// not own the task.
	ErrNotOwner = errors.New("not the task owner")

	// ErrBusy: a mutation was attempted while another is outstanding.
	ErrBusy = errors.New("another mutation is in flight")
)

// ValidationError reports a locally rejected draft. It is produced before
// any network interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProviderError wraps any rejection from the wallet provider or network that
// does not classify into the sentinel taxonomy (user cancellation,
// insufficient funds, gas failure). The underlying message is kept for
// display.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapProvider classifies an error from the contract or provider boundary.
// An ownership-related rejection reason becomes ErrNotOwner; everything else
// is surfaced as a ProviderError.
func WrapProvider(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "owner") {
		return fmt.Errorf("%w: %v", ErrNotOwner, err)
	}
	return &ProviderError{Err: err}
}
