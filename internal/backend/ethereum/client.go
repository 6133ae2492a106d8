// Package ethereum implements the service.Provider and service.Ledger
// boundaries against an Ethereum node and a local encrypted keystore. It is
// the only package that imports go-ethereum.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"chaintask/internal/config"
	"chaintask/internal/service"
)

const (
	// RPCTimeout bounds individual node calls.
	RPCTimeout = 10 * time.Second

	// WaitTimeout bounds a confirmation wait.
	WaitTimeout = 2 * time.Minute

	// chainPollInterval is how often the chain subscription re-checks the
	// node's chain id. A healthy node never changes it; a misdirected
	// endpoint does.
	chainPollInterval = 15 * time.Second
)

// PassphraseFunc supplies the passphrase for unlocking a keystore account.
type PassphraseFunc func(address string) (string, error)

// Client implements service.Provider over an Ethereum node plus a local
// keystore.
type Client struct {
	eth      *ethclient.Client
	ks       *keystore.KeyStore
	cfg      *config.Config
	log      *zap.Logger
	contract common.Address
	abi      abi.ABI

	// Passphrase is consulted when binding a ledger to an account.
	// Defaults to the environment/terminal prompt.
	Passphrase PassphraseFunc
}

// New dials the configured node and opens the keystore.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Settings.RPCURL == "" {
		return nil, fmt.Errorf("%w: rpc_url not configured", service.ErrProviderMissing)
	}
	if !common.IsHexAddress(cfg.Settings.ContractAddress) {
		return nil, fmt.Errorf("invalid contract_address: %q", cfg.Settings.ContractAddress)
	}

	eth, err := ethclient.DialContext(ctx, cfg.Settings.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrProviderMissing, err)
	}

	parsed, err := abi.JSON(strings.NewReader(taskContractABI))
	if err != nil {
		return nil, fmt.Errorf("invalid contract abi: %w", err)
	}

	ks := keystore.NewKeyStore(cfg.KeystorePath(), keystore.StandardScryptN, keystore.StandardScryptP)

	return &Client{
		eth:        eth,
		ks:         ks,
		cfg:        cfg,
		log:        log,
		contract:   common.HexToAddress(cfg.Settings.ContractAddress),
		abi:        parsed,
		Passphrase: PromptPassphrase,
	}, nil
}

// Close releases the node connection.
func (c *Client) Close() {
	c.eth.Close()
}

// RequestAccounts lists the keystore's accounts as hex addresses.
func (c *Client) RequestAccounts(ctx context.Context) ([]string, error) {
	accts := c.ks.Accounts()
	out := make([]string, len(accts))
	for i, a := range accts {
		out[i] = a.Address.Hex()
	}
	return out, nil
}

// ChainID returns the node's chain id.
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()

	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return 0, wrapError(err)
	}
	return id.Uint64(), nil
}

// CodeAt returns the deployed code at addr at the latest block.
func (c *Client) CodeAt(ctx context.Context, addr string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()

	code, err := c.eth.CodeAt(ctx, common.HexToAddress(addr), nil)
	if err != nil {
		return nil, wrapError(err)
	}
	return code, nil
}

// SubscribeAccounts delivers the account list whenever the keystore's wallet
// set changes (a key file added or removed).
func (c *Client) SubscribeAccounts(ctx context.Context, ch chan<- []string) (service.Subscription, error) {
	events := make(chan accounts.WalletEvent, 8)
	ksSub := c.ks.Subscribe(events)

	sub := newSubscription()
	go func() {
		defer ksSub.Unsubscribe()
		for {
			select {
			case <-sub.quit:
				return
			case err := <-ksSub.Err():
				sub.fail(err)
				return
			case <-events:
				list, _ := c.RequestAccounts(ctx)
				select {
				case ch <- list:
				case <-sub.quit:
					return
				}
			}
		}
	}()
	return sub, nil
}

// SubscribeChain polls the node's chain id and delivers changes. Polling is
// used because a plain HTTP endpoint has no push channel for this.
func (c *Client) SubscribeChain(ctx context.Context, ch chan<- uint64) (service.Subscription, error) {
	last, err := c.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	sub := newSubscription()
	go func() {
		ticker := time.NewTicker(chainPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sub.quit:
				return
			case <-ticker.C:
				id, err := c.ChainID(ctx)
				if err != nil {
					c.log.Debug("chain poll failed", zap.Error(err))
					continue
				}
				if id == last {
					continue
				}
				last = id
				select {
				case ch <- id:
				case <-sub.quit:
					return
				}
			}
		}
	}()
	return sub, nil
}

// Bind unlocks the given account and returns a contract handle bound to it.
func (c *Client) Bind(ctx context.Context, address string) (service.Ledger, error) {
	acct, err := c.findAccount(address)
	if err != nil {
		return nil, err
	}

	pass, err := c.Passphrase(address)
	if err != nil {
		return nil, err
	}
	if err := c.ks.Unlock(acct, pass); err != nil {
		return nil, fmt.Errorf("failed to unlock %s: %w", address, err)
	}

	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, wrapError(err)
	}
	opts, err := bind.NewKeyStoreTransactorWithChainID(c.ks, acct, id)
	if err != nil {
		return nil, err
	}

	return &Contract{
		bound:   bind.NewBoundContract(c.contract, c.abi, c.eth, c.eth, c.eth),
		abi:     c.abi,
		backend: c.eth,
		opts:    opts,
		from:    acct.Address,
		address: c.contract,
		log:     c.log,
	}, nil
}

func (c *Client) findAccount(address string) (accounts.Account, error) {
	for _, a := range c.ks.Accounts() {
		if strings.EqualFold(a.Address.Hex(), address) {
			return a, nil
		}
	}
	return accounts.Account{}, fmt.Errorf("no keystore account for %s", address)
}

// subscription is a cancelable registration shared by the account and chain
// feeds.
type subscription struct {
	quit chan struct{}
	err  chan error
	once sync.Once
}

func newSubscription() *subscription {
	return &subscription{
		quit: make(chan struct{}),
		err:  make(chan error, 1),
	}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { close(s.quit) })
}

func (s *subscription) Err() <-chan error {
	return s.err
}

func (s *subscription) fail(err error) {
	if err != nil {
		s.err <- err
	}
}

// wrapError gives node failures a stable, user-facing shape.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.New("request timed out")
	}
	return err
}
