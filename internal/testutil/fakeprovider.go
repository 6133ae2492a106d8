package testutil

import (
	"context"
	"sync"

	"chaintask/internal/service"
)

// FakeProvider is an in-memory implementation of service.Provider. Tests
// push account and chain changes with the Emit helpers.
type FakeProvider struct {
	mu       sync.Mutex
	accounts []string
	chain    uint64
	code     []byte
	subs     map[*fakeSub]struct{}

	// Error injection for testing
	RequestErr   error
	ChainErr     error
	CodeErr      error
	SubscribeErr error
}

// NewFakeProvider creates a provider with one account on chain 1337 and
// non-empty contract code.
func NewFakeProvider(accounts ...string) *FakeProvider {
	if len(accounts) == 0 {
		accounts = []string{"0xAAA0000000000000000000000000000000000001"}
	}
	return &FakeProvider{
		accounts: accounts,
		chain:    1337,
		code:     []byte{0x60, 0x80},
		subs:     make(map[*fakeSub]struct{}),
	}
}

// SetChain sets the reported chain id.
func (p *FakeProvider) SetChain(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chain = id
}

// SetCode sets the code returned by CodeAt.
func (p *FakeProvider) SetCode(code []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.code = code
}

// RequestAccounts implements service.Provider.
func (p *FakeProvider) RequestAccounts(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RequestErr != nil {
		return nil, p.RequestErr
	}
	return append([]string(nil), p.accounts...), nil
}

// ChainID implements service.Provider.
func (p *FakeProvider) ChainID(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ChainErr != nil {
		return 0, p.ChainErr
	}
	return p.chain, nil
}

// CodeAt implements service.Provider.
func (p *FakeProvider) CodeAt(ctx context.Context, addr string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CodeErr != nil {
		return nil, p.CodeErr
	}
	return p.code, nil
}

// SubscribeAccounts implements service.Provider.
func (p *FakeProvider) SubscribeAccounts(ctx context.Context, ch chan<- []string) (service.Subscription, error) {
	return p.subscribe(func(s *fakeSub) { s.accounts = ch })
}

// SubscribeChain implements service.Provider.
func (p *FakeProvider) SubscribeChain(ctx context.Context, ch chan<- uint64) (service.Subscription, error) {
	return p.subscribe(func(s *fakeSub) { s.chain = ch })
}

func (p *FakeProvider) subscribe(set func(*fakeSub)) (service.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SubscribeErr != nil {
		return nil, p.SubscribeErr
	}
	s := &fakeSub{provider: p, err: make(chan error, 1)}
	set(s)
	p.subs[s] = struct{}{}
	return s, nil
}

// EmitAccounts delivers an accountsChanged notification to subscribers and
// updates the provider's account list.
func (p *FakeProvider) EmitAccounts(accounts []string) {
	p.mu.Lock()
	p.accounts = append([]string(nil), accounts...)
	targets := p.collect(func(s *fakeSub) bool { return s.accounts != nil })
	p.mu.Unlock()
	for _, s := range targets {
		s.accounts <- accounts
	}
}

// EmitChain delivers a chainChanged notification to subscribers and updates
// the reported chain id.
func (p *FakeProvider) EmitChain(id uint64) {
	p.mu.Lock()
	p.chain = id
	targets := p.collect(func(s *fakeSub) bool { return s.chain != nil })
	p.mu.Unlock()
	for _, s := range targets {
		s.chain <- id
	}
}

// EmitSubError fails every active subscription.
func (p *FakeProvider) EmitSubError(err error) {
	p.mu.Lock()
	targets := p.collect(func(*fakeSub) bool { return true })
	p.mu.Unlock()
	for _, s := range targets {
		s.err <- err
	}
}

// ActiveSubs returns the number of live subscriptions, for leak checks.
func (p *FakeProvider) ActiveSubs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *FakeProvider) collect(match func(*fakeSub) bool) []*fakeSub {
	var out []*fakeSub
	for s := range p.subs {
		if match(s) {
			out = append(out, s)
		}
	}
	return out
}

type fakeSub struct {
	provider *FakeProvider
	accounts chan<- []string
	chain    chan<- uint64
	err      chan error
	once     sync.Once
}

func (s *fakeSub) Unsubscribe() {
	s.once.Do(func() {
		s.provider.mu.Lock()
		delete(s.provider.subs, s)
		s.provider.mu.Unlock()
	})
}

func (s *fakeSub) Err() <-chan error {
	return s.err
}
