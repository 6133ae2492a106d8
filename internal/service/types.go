// Package service defines the backend-agnostic boundary for the wallet
// provider and ledger contract, plus the domain types shared across the
// client. Commands and the core state machines never import go-ethereum
// directly.
package service

import "fmt"

const (
	// MaxTitleLen is the longest accepted task title.
	MaxTitleLen = 100

	// MaxTextLen is the longest accepted task description.
	MaxTextLen = 500
)

// Task is a single task record as held by the ledger contract.
type Task struct {
	// ID is assigned by the contract, monotonically increasing.
	ID uint64

	Title string
	Text  string

	// IsDeleted is the contract's soft-delete marker. The local list never
	// contains deleted tasks; the field exists so the raw contract response
	// can be filtered.
	IsDeleted bool
}

// Draft is unsubmitted task input. Transient: cleared on a confirmed add,
// never persisted.
type Draft struct {
	Title string
	Text  string
}

// Validate checks the draft against the contract's field limits.
// Validation failures never reach the network boundary.
func (d Draft) Validate() error {
	switch {
	case d.Title == "":
		return &ValidationError{Field: "title", Reason: "required"}
	case len([]rune(d.Title)) > MaxTitleLen:
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("longer than %d characters", MaxTitleLen)}
	case d.Text == "":
		return &ValidationError{Field: "text", Reason: "required"}
	case len([]rune(d.Text)) > MaxTextLen:
		return &ValidationError{Field: "text", Reason: fmt.Sprintf("longer than %d characters", MaxTextLen)}
	}
	return nil
}

// Session identifies the connected account and network. The zero value is a
// disconnected session.
type Session struct {
	Address   string `json:"address"`
	NetworkID uint64 `json:"network_id"`
}

// IsConnected reports whether the session holds an authorized account.
func (s Session) IsConnected() bool {
	return s.Address != ""
}
