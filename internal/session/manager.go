// Package session owns wallet-connection state: establishing a session,
// validating the network, probing the contract, and reacting to account and
// chain change notifications from the provider.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chaintask/internal/service"
)

// ErrNetworkChanged is returned by Run when the provider reports a chain
// switch. A network switch invalidates the whole context; the caller is
// expected to tear down and restart rather than patch state in place.
var ErrNetworkChanged = errors.New("network changed")

// State is the connection state. No state outside these three is observable.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Event is a state-change notification delivered to subscribers. The core
// does not depend on any rendering mechanism; consumers subscribe to these.
type Event struct {
	State   State
	Session service.Session
}

// TaskState is the portion of the task synchronizer the manager drives.
// A session change invalidates and resynchronizes the task list before any
// further mutation is accepted.
type TaskState interface {
	Reset()
	SetLedger(service.Ledger)
	Load(ctx context.Context) error
}

// Binder produces a contract handle bound to one account.
type Binder func(ctx context.Context, address string) (service.Ledger, error)

// Options carry the configured expectations a session is validated against.
type Options struct {
	// ExpectedChainID is the network the contract is deployed on.
	ExpectedChainID uint64

	// ContractAddress is probed for code before a session is established.
	ContractAddress string
}

// Manager establishes and maintains exactly one authenticated wallet session
// bound to one network.
type Manager struct {
	provider service.Provider
	binder   Binder
	opts     Options
	log      *zap.Logger

	mu     sync.Mutex
	state  State
	sess   service.Session
	ledger service.Ledger
	tasks  TaskState
	gen    uint64

	accCh    chan []string
	chainCh  chan uint64
	accSub   service.Subscription
	chainSub service.Subscription

	subs map[string]func(Event)
}

// New creates a manager over the given provider. The task synchronizer is
// attached afterwards with SetTasks to break the construction cycle.
func New(provider service.Provider, binder Binder, opts Options, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		provider: provider,
		binder:   binder,
		opts:     opts,
		log:      log,
		subs:     make(map[string]func(Event)),
	}
}

// SetTasks attaches the task synchronizer the manager resets and reloads on
// session changes.
func (m *Manager) SetTasks(t TaskState) {
	m.mu.Lock()
	m.tasks = t
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a snapshot of the current session.
func (m *Manager) Session() service.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// Generation increments on every session change. Long waits capture it at
// issue time and compare before applying results, so a completion under a
// superseded session applies nothing.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Ledger returns the bound contract handle, or nil when disconnected.
func (m *Manager) Ledger() service.Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger
}

// Subscribe registers a state-change listener and returns a handle for
// Unsubscribe.
func (m *Manager) Subscribe(fn func(Event)) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.subs[id] = fn
	return id
}

// Unsubscribe removes a listener. Unknown handles are ignored.
func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, id)
}

// notify must be called without the lock held.
func (m *Manager) notify() {
	m.mu.Lock()
	ev := Event{State: m.state, Session: m.sess}
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Connect establishes a session. preferred selects an account by address
// prefix (case-insensitive); empty means the provider's first account.
//
// Order matters: the network is validated before accounts are requested, and
// the contract is probed for code before the session is committed, so no
// partial session is ever observable. On any failure the state returns to
// Disconnected.
func (m *Manager) Connect(ctx context.Context, preferred string) (string, error) {
	m.mu.Lock()
	if m.provider == nil {
		m.mu.Unlock()
		return "", service.ErrProviderMissing
	}
	if m.state == Connecting {
		m.mu.Unlock()
		return "", service.ErrBusy
	}
	if m.state == Connected && (preferred == "" || matchesPrefix(m.sess.Address, preferred)) {
		addr := m.sess.Address
		m.mu.Unlock()
		return addr, nil
	}
	m.state = Connecting
	provider := m.provider
	m.mu.Unlock()
	m.notify()

	addr, chain, ledger, err := m.establish(ctx, provider, preferred)
	if err != nil {
		m.mu.Lock()
		m.state = Disconnected
		m.sess = service.Session{}
		m.ledger = nil
		m.mu.Unlock()
		m.notify()
		return "", err
	}

	m.mu.Lock()
	m.state = Connected
	m.sess = service.Session{Address: addr, NetworkID: chain}
	m.ledger = ledger
	m.gen++
	tasks := m.tasks
	m.mu.Unlock()

	if tasks != nil {
		tasks.Reset()
		tasks.SetLedger(ledger)
	}
	m.notify()
	m.log.Debug("session established",
		zap.String("address", addr),
		zap.Uint64("chain", chain))
	return addr, nil
}

// establish performs the network calls of Connect. It runs without the lock;
// the caller commits or rolls back the result.
func (m *Manager) establish(ctx context.Context, provider service.Provider, preferred string) (string, uint64, service.Ledger, error) {
	chain, err := provider.ChainID(ctx)
	if err != nil {
		return "", 0, nil, service.WrapProvider(err)
	}
	if chain != m.opts.ExpectedChainID {
		return "", 0, nil, fmt.Errorf("%w: connected to chain %d, expected %d",
			service.ErrWrongNetwork, chain, m.opts.ExpectedChainID)
	}

	accounts, err := provider.RequestAccounts(ctx)
	if err != nil {
		return "", 0, nil, service.WrapProvider(err)
	}
	addr, err := pickAccount(accounts, preferred)
	if err != nil {
		return "", 0, nil, err
	}

	code, err := provider.CodeAt(ctx, m.opts.ContractAddress)
	if err != nil {
		return "", 0, nil, service.WrapProvider(err)
	}
	if len(code) == 0 {
		return "", 0, nil, fmt.Errorf("%w: %s", service.ErrContractUnavailable, m.opts.ContractAddress)
	}

	ledger, err := m.binder(ctx, addr)
	if err != nil {
		return "", 0, nil, service.WrapProvider(err)
	}

	if err := m.listen(ctx, provider); err != nil {
		return "", 0, nil, err
	}
	return addr, chain, ledger, nil
}

// listen registers exactly one accounts listener and one chain listener.
// Reconnecting replaces the previous pair, so handlers never accumulate.
func (m *Manager) listen(ctx context.Context, provider service.Provider) error {
	m.mu.Lock()
	accSub, chainSub := m.accSub, m.chainSub
	m.accSub, m.chainSub = nil, nil
	m.mu.Unlock()
	if accSub != nil {
		accSub.Unsubscribe()
	}
	if chainSub != nil {
		chainSub.Unsubscribe()
	}

	accCh := make(chan []string, 8)
	chainCh := make(chan uint64, 8)
	accSub, err := provider.SubscribeAccounts(ctx, accCh)
	if err != nil {
		return service.WrapProvider(err)
	}
	chainSub, err = provider.SubscribeChain(ctx, chainCh)
	if err != nil {
		accSub.Unsubscribe()
		return service.WrapProvider(err)
	}

	m.mu.Lock()
	m.accCh, m.chainCh = accCh, chainCh
	m.accSub, m.chainSub = accSub, chainSub
	m.mu.Unlock()
	return nil
}

// OnAccountsChanged reacts to an account-change notification. An empty list
// models the user revoking access from the wallet side and transitions to
// Disconnected with all task state cleared. A non-empty list replaces the
// active address and resynchronizes. Re-invocation with the same address is
// a no-op beyond a redundant resync.
func (m *Manager) OnAccountsChanged(ctx context.Context, accounts []string) error {
	if len(accounts) == 0 {
		m.log.Debug("accounts revoked")
		m.Disconnect()
		return nil
	}

	next := accounts[0]
	m.mu.Lock()
	if m.state != Connected {
		m.mu.Unlock()
		return nil
	}
	same := m.sess.Address == next
	tasks := m.tasks
	m.mu.Unlock()

	if same {
		if tasks != nil {
			return tasks.Load(ctx)
		}
		return nil
	}

	ledger, err := m.binder(ctx, next)
	if err != nil {
		// The new account cannot be bound: no usable session remains.
		m.Disconnect()
		return service.WrapProvider(err)
	}

	m.mu.Lock()
	m.sess.Address = next
	m.ledger = ledger
	m.gen++
	m.mu.Unlock()

	if tasks != nil {
		tasks.Reset()
		tasks.SetLedger(ledger)
	}
	m.notify()
	m.log.Debug("account switched", zap.String("address", next))
	if tasks != nil {
		return tasks.Load(ctx)
	}
	return nil
}

// Disconnect is local-only teardown: it clears session and task state and
// deregisters the change listeners. Nothing on chain is touched.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	accSub, chainSub := m.accSub, m.chainSub
	m.accSub, m.chainSub = nil, nil
	m.state = Disconnected
	m.sess = service.Session{}
	m.ledger = nil
	m.gen++
	tasks := m.tasks
	m.mu.Unlock()

	if accSub != nil {
		accSub.Unsubscribe()
	}
	if chainSub != nil {
		chainSub.Unsubscribe()
	}
	if tasks != nil {
		tasks.Reset()
		tasks.SetLedger(nil)
	}
	m.notify()
	m.log.Debug("session torn down")
}

// Close deregisters the change listeners without clearing session state.
// Used by short-lived commands that leave the persisted session in place.
func (m *Manager) Close() {
	m.mu.Lock()
	accSub, chainSub := m.accSub, m.chainSub
	m.accSub, m.chainSub = nil, nil
	m.mu.Unlock()
	if accSub != nil {
		accSub.Unsubscribe()
	}
	if chainSub != nil {
		chainSub.Unsubscribe()
	}
}

// Run consumes change notifications until the context ends. It returns
// ErrNetworkChanged when the provider reports a chain switch, a provider
// error if a subscription fails, or ctx.Err on cancellation.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	accCh, chainCh := m.accCh, m.chainCh
	accSub, chainSub := m.accSub, m.chainSub
	expected := m.opts.ExpectedChainID
	m.mu.Unlock()
	if accSub == nil || chainSub == nil {
		return service.ErrNotConnected
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case accounts := <-accCh:
			if err := m.OnAccountsChanged(ctx, accounts); err != nil {
				m.log.Warn("account change handling failed", zap.Error(err))
			}
		case chain := <-chainCh:
			if chain != expected {
				m.log.Debug("chain switched", zap.Uint64("chain", chain))
				return fmt.Errorf("%w: now on chain %d", ErrNetworkChanged, chain)
			}
		case err := <-accSub.Err():
			if err != nil {
				return service.WrapProvider(err)
			}
		case err := <-chainSub.Err():
			if err != nil {
				return service.WrapProvider(err)
			}
		}
	}
}

// pickAccount selects the active account: the first entry, or the first one
// matching the preferred prefix.
func pickAccount(accounts []string, preferred string) (string, error) {
	if len(accounts) == 0 {
		return "", &service.ProviderError{Err: errors.New("no accounts authorized")}
	}
	if preferred == "" {
		return accounts[0], nil
	}
	for _, a := range accounts {
		if matchesPrefix(a, preferred) {
			return a, nil
		}
	}
	return "", &service.ProviderError{Err: fmt.Errorf("no account matches %q", preferred)}
}

func matchesPrefix(addr, prefix string) bool {
	return prefix != "" && len(addr) >= len(prefix) && strings.EqualFold(addr[:len(prefix)], prefix)
}
