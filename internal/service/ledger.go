package service

import "context"

// Event names emitted by the ledger contract. A mutation is only reported as
// successful when its receipt carries the matching event.
const (
	EventAddTask    = "AddTask"
	EventDeleteTask = "DeleteTask"
)

// Ledger is a contract handle bound to one account. All reads are scoped to
// that account by the contract itself.
type Ledger interface {
	// GetMyTasks returns the caller's full task set, including
	// soft-deleted entries.
	GetMyTasks(ctx context.Context) ([]Task, error)

	// AddTask submits an add mutation. The returned transaction has not
	// yet been confirmed.
	AddTask(ctx context.Context, title, text string, isDeleted bool) (Transaction, error)

	// DeleteTask submits a soft-delete mutation for the given task id.
	DeleteTask(ctx context.Context, id uint64) (Transaction, error)
}

// Transaction is a submitted mutation awaiting network confirmation.
type Transaction interface {
	// Wait blocks until the transaction is included and returns its
	// receipt. A reverted transaction returns an error carrying the
	// revert reason when one can be recovered.
	Wait(ctx context.Context) (Receipt, error)
}

// Receipt is the confirmed outcome of a transaction.
type Receipt interface {
	// Events returns the names of the contract events the transaction
	// emitted.
	Events() []string
}

// HasEvent reports whether the receipt carries the named event.
func HasEvent(r Receipt, name string) bool {
	for _, ev := range r.Events() {
		if ev == name {
			return true
		}
	}
	return false
}
