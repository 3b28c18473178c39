// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mock provides an in-memory chain that contract doubles record
// their transactions on.
package mock

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rafflekit/rafflekit/pkg/devchain"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

const (
	// GenesisTime is the timestamp of block 0.
	GenesisTime = 1_700_000_000
	// BlockTime is how far the clock moves for every mined block.
	BlockTime = time.Second
)

// GasPrice is the price every transaction on the chain pays.
var GasPrice = big.NewInt(1_000_000_000)

var (
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")
)

var (
	_ devchain.Chain            = (*Chain)(nil)
	_ devchain.TimeTraveler     = (*Chain)(nil)
	_ transaction.ReceiptWaiter = (*Chain)(nil)
)

// Chain is a single node chain that mines one block per transaction.
type Chain struct {
	mu       sync.Mutex
	now      time.Time
	offset   time.Duration // pending evm_increaseTime
	block    uint64
	nonce    uint64
	balances map[common.Address]*big.Int
	receipts map[common.Hash]*types.Receipt
	watchers map[uint64]func(types.Log) bool
	watchID  uint64
}

// Option configures the chain.
type Option interface {
	apply(*Chain)
}

type optionFunc func(*Chain)

func (f optionFunc) apply(c *Chain) { f(c) }

// WithBalance funds an account at genesis.
func WithBalance(account common.Address, balance *big.Int) Option {
	return optionFunc(func(c *Chain) {
		c.balances[account] = new(big.Int).Set(balance)
	})
}

func New(opts ...Option) *Chain {
	c := &Chain{
		now:      time.Unix(GenesisTime, 0),
		balances: make(map[common.Address]*big.Int),
		receipts: make(map[common.Hash]*types.Receipt),
		watchers: make(map[uint64]func(types.Log) bool),
	}
	for _, o := range opts {
		o.apply(c)
	}
	return c
}

// Tx is a transaction to execute on the chain.
type Tx struct {
	From    common.Address
	To      common.Address
	Value   *big.Int
	GasUsed uint64
	// Execute applies the contract call. It runs with the chain lock held
	// and receives the block timestamp. Returned logs are attached to the
	// receipt. An error reverts the transaction, so Execute must check all
	// its conditions before it changes any state.
	Execute func(now time.Time) ([]*types.Log, error)
}

// Send executes tx in a new block and returns its hash. Reverted calls
// return the execution error and do not consume a block, like a failed
// gas estimation on a real node.
func (c *Chain) Send(tx Tx) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fee := new(big.Int).Mul(GasPrice, new(big.Int).SetUint64(tx.GasUsed))
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	total := new(big.Int).Add(fee, value)
	if c.balanceLocked(tx.From).Cmp(total) < 0 {
		return common.Hash{}, fmt.Errorf("sender %s: %w", tx.From, ErrInsufficientBalance)
	}

	blockTime := c.now.Add(c.offset).Add(BlockTime)

	// msg.value is credited before the call runs, as on a real chain
	c.subLocked(tx.From, total)
	c.addLocked(tx.To, value)

	var logs []*types.Log
	if tx.Execute != nil {
		var err error
		if logs, err = tx.Execute(blockTime); err != nil {
			c.subLocked(tx.To, value)
			c.addLocked(tx.From, total)
			return common.Hash{}, err
		}
	}

	c.now = blockTime
	c.offset = 0
	c.block++
	c.nonce++

	var seed [16]byte
	binary.BigEndian.PutUint64(seed[:8], c.nonce)
	copy(seed[8:], tx.From[:8])
	hash := common.BytesToHash(crypto.Keccak256(seed[:]))

	blockNumber := new(big.Int).SetUint64(c.block)
	for i, l := range logs {
		l.TxHash = hash
		l.BlockNumber = c.block
		l.Index = uint(i)
	}
	c.receipts[hash] = &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		GasUsed:     tx.GasUsed,
		BlockNumber: blockNumber,
		Logs:        logs,
	}
	for _, l := range logs {
		for id, f := range c.watchers {
			if f(*l) {
				delete(c.watchers, id)
			}
		}
	}
	return hash, nil
}

// Watch calls f with every log mined after the call, until f returns true
// or the returned cancel function is called. f runs with the chain lock
// held and must not call back into the chain.
func (c *Chain) Watch(f func(types.Log) bool) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchID++
	id := c.watchID
	c.watchers[id] = f
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers, id)
	}
}

// Transfer moves value between accounts from within an executing
// transaction. It must only be called from Tx.Execute.
func (c *Chain) Transfer(from, to common.Address, value *big.Int) error {
	if c.balanceLocked(from).Cmp(value) < 0 {
		return fmt.Errorf("account %s: %w", from, ErrInsufficientBalance)
	}
	c.subLocked(from, value)
	c.addLocked(to, value)
	return nil
}

// BalanceLocked returns the balance from within Tx.Execute or View.
func (c *Chain) BalanceLocked(account common.Address) *big.Int {
	return new(big.Int).Set(c.balanceLocked(account))
}

func (c *Chain) balanceLocked(account common.Address) *big.Int {
	b, ok := c.balances[account]
	if !ok {
		return new(big.Int)
	}
	return b
}

func (c *Chain) addLocked(account common.Address, v *big.Int) {
	c.balances[account] = new(big.Int).Add(c.balanceLocked(account), v)
}

func (c *Chain) subLocked(account common.Address, v *big.Int) {
	c.balances[account] = new(big.Int).Sub(c.balanceLocked(account), v)
}

// View runs f with the chain lock held and the current timestamp, for
// contract reads.
func (c *Chain) View(f func(now time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f(c.now)
}

func (c *Chain) Now(ctx context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, nil
}

func (c *Chain) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balanceLocked(account)), nil
}

func (c *Chain) GasCost(ctx context.Context, receipt *types.Receipt) (*big.Int, error) {
	return new(big.Int).Mul(GasPrice, new(big.Int).SetUint64(receipt.GasUsed)), nil
}

// BlockNumber returns the number of the latest block.
func (c *Chain) BlockNumber() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block
}

func (c *Chain) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, transaction.ErrUnknownTransaction
	}
	return r, nil
}

func (c *Chain) IncreaseTime(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
	return nil
}

func (c *Chain) Mine(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.offset).Add(BlockTime)
	c.offset = 0
	c.block++
	return nil
}
