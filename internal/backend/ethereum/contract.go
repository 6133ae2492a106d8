package ethereum

import (
	"context"
	"fmt"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"chaintask/internal/service"
)

// taskContractABI describes the deployed task contract. getMyTask is scoped
// by the contract to the calling account; deletes are soft (isDeleted flag).
const taskContractABI = `[
  {"type":"function","name":"getMyTask","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"tuple[]","components":[
     {"name":"id","type":"uint256"},
     {"name":"taskTitle","type":"string"},
     {"name":"taskText","type":"string"},
     {"name":"isDeleted","type":"bool"}]}]},
  {"type":"function","name":"addTask","stateMutability":"nonpayable","inputs":[
     {"name":"taskText","type":"string"},
     {"name":"taskTitle","type":"string"},
     {"name":"isDeleted","type":"bool"}],"outputs":[]},
  {"type":"function","name":"deleteTask","stateMutability":"nonpayable","inputs":[
     {"name":"taskId","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"AddTask","anonymous":false,"inputs":[
     {"name":"recipient","type":"address","indexed":false},
     {"name":"taskId","type":"uint256","indexed":false}]},
  {"type":"event","name":"DeleteTask","anonymous":false,"inputs":[
     {"name":"taskId","type":"uint256","indexed":false},
     {"name":"taskDeleted","type":"bool","indexed":false}]}
]`

// contractTask mirrors the contract's Task tuple for abi decoding.
type contractTask struct {
	Id        *big.Int
	TaskTitle string
	TaskText  string
	IsDeleted bool
}

// Contract implements service.Ledger over a bound task contract.
type Contract struct {
	bound   *bind.BoundContract
	abi     abi.ABI
	backend *ethclient.Client
	opts    *bind.TransactOpts
	from    common.Address
	address common.Address
	log     *zap.Logger
}

// GetMyTasks fetches the caller's full task set.
func (c *Contract) GetMyTasks(ctx context.Context) ([]service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, RPCTimeout)
	defer cancel()

	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx, From: c.from}
	if err := c.bound.Call(callOpts, &out, "getMyTask"); err != nil {
		return nil, wrapError(err)
	}

	raw := *abi.ConvertType(out[0], new([]contractTask)).(*[]contractTask)
	tasks := make([]service.Task, len(raw))
	for i, t := range raw {
		tasks[i] = service.Task{
			ID:        t.Id.Uint64(),
			Title:     t.TaskTitle,
			Text:      t.TaskText,
			IsDeleted: t.IsDeleted,
		}
	}
	return tasks, nil
}

// AddTask submits an add mutation.
func (c *Contract) AddTask(ctx context.Context, title, text string, isDeleted bool) (service.Transaction, error) {
	opts := *c.opts
	opts.Context = ctx
	tx, err := c.bound.Transact(&opts, "addTask", text, title, isDeleted)
	if err != nil {
		return nil, wrapError(err)
	}
	c.log.Debug("addTask submitted", zap.String("tx", tx.Hash().Hex()))
	return &transaction{tx: tx, c: c}, nil
}

// DeleteTask submits a soft-delete mutation for id.
func (c *Contract) DeleteTask(ctx context.Context, id uint64) (service.Transaction, error) {
	opts := *c.opts
	opts.Context = ctx
	tx, err := c.bound.Transact(&opts, "deleteTask", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, wrapError(err)
	}
	c.log.Debug("deleteTask submitted",
		zap.Uint64("id", id), zap.String("tx", tx.Hash().Hex()))
	return &transaction{tx: tx, c: c}, nil
}

// transaction is a submitted mutation awaiting inclusion.
type transaction struct {
	tx *types.Transaction
	c  *Contract
}

// Wait blocks until the transaction is mined. A reverted transaction is
// replayed as a call at the inclusion block to recover the revert reason, so
// ownership rejections can be classified upstream.
func (t *transaction) Wait(ctx context.Context) (service.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, WaitTimeout)
	defer cancel()

	mined, err := bind.WaitMined(ctx, t.c.backend, t.tx)
	if err != nil {
		return nil, wrapError(err)
	}
	if mined.Status == types.ReceiptStatusFailed {
		return nil, t.revertReason(ctx, mined)
	}
	return &receipt{events: t.c.eventNames(mined)}, nil
}

// revertReason re-executes the transaction as a call against the block it
// was included in. The node's error message carries the require() string.
func (t *transaction) revertReason(ctx context.Context, mined *types.Receipt) error {
	msg := geth.CallMsg{
		From:  t.c.from,
		To:    t.tx.To(),
		Gas:   t.tx.Gas(),
		Value: t.tx.Value(),
		Data:  t.tx.Data(),
	}
	if _, err := t.c.backend.CallContract(ctx, msg, mined.BlockNumber); err != nil {
		return fmt.Errorf("transaction reverted: %w", err)
	}
	return fmt.Errorf("transaction reverted: tx %s", t.tx.Hash().Hex())
}

// eventNames collects the names of the contract events emitted by a mined
// transaction.
func (c *Contract) eventNames(mined *types.Receipt) []string {
	var names []string
	for _, l := range mined.Logs {
		if l.Address != c.address || len(l.Topics) == 0 {
			continue
		}
		for name, ev := range c.abi.Events {
			if l.Topics[0] == ev.ID {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

// receipt is the confirmed outcome of a transaction.
type receipt struct {
	events []string
}

func (r *receipt) Events() []string {
	return r.events
}
