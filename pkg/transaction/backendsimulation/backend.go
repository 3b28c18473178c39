// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backendsimulation provides a transaction.Backend that walks
// through a fixed sequence of blocks, one per BlockNumber call. Only the
// lookups a transaction monitor makes are simulated.
package backendsimulation

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

type AccountAtKey struct {
	BlockNumber uint64
	Account     common.Address
}

type simulatedBackend struct {
	// calls outside block, nonce and receipt lookups panic
	transaction.Backend

	mu          sync.Mutex
	blockNumber uint64
	chainID     *big.Int

	receipts map[common.Hash]*types.Receipt
	noncesAt map[AccountAtKey]uint64

	blocks []Block
	step   uint64
}

type Block struct {
	Number   uint64
	Receipts map[common.Hash]*types.Receipt
	NoncesAt map[AccountAtKey]uint64
}

type Option interface {
	apply(*simulatedBackend)
}

type optionFunc func(*simulatedBackend)

func (f optionFunc) apply(r *simulatedBackend) { f(r) }

func WithChainID(chainID int64) Option {
	return optionFunc(func(sb *simulatedBackend) {
		sb.chainID = big.NewInt(chainID)
	})
}

func WithBlocks(blocks ...Block) Option {
	return optionFunc(func(sb *simulatedBackend) {
		sb.blocks = blocks
	})
}

func New(options ...Option) transaction.Backend {
	m := &simulatedBackend{
		receipts: make(map[common.Hash]*types.Receipt),
		noncesAt: make(map[AccountAtKey]uint64),

		blockNumber: 0,
		chainID:     big.NewInt(31337),
	}
	for _, opt := range options {
		opt.apply(m)
	}

	return m
}

func (m *simulatedBackend) advanceBlock() {
	if m.step >= uint64(len(m.blocks)) {
		return
	}
	block := m.blocks[m.step]
	m.step++

	m.blockNumber = block.Number

	if block.Receipts != nil {
		for hash, receipt := range block.Receipts {
			m.receipts[hash] = receipt
		}
	}

	if block.NoncesAt != nil {
		for addr, nonce := range block.NoncesAt {
			m.noncesAt[addr] = nonce
		}
	}
}

func (m *simulatedBackend) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if number == nil {
		number = new(big.Int).SetUint64(m.blockNumber)
	}
	if number.Uint64() > m.blockNumber {
		m.advanceBlock()
		if number.Uint64() > m.blockNumber {
			return nil, ethereum.NotFound
		}
	}
	return types.NewBlockWithHeader(&types.Header{Number: new(big.Int).Set(number)}), nil
}

func (m *simulatedBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	receipt, ok := m.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (m *simulatedBackend) BlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceBlock()
	return m.blockNumber, nil
}

func (m *simulatedBackend) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.noncesAt[AccountAtKey{Account: account, BlockNumber: blockNumber.Uint64()}], nil
}

func (m *simulatedBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(m.chainID), nil
}
