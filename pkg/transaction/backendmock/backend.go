// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backendmock provides a transaction.Backend whose calls are
// answered by functions set through options. Calls without a function
// fail with ErrNotImplemented.
package backendmock

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

var ErrNotImplemented = errors.New("not implemented")

type backendMock struct {
	blockNumber       func(ctx context.Context) (uint64, error)
	chainID           func(ctx context.Context) (*big.Int, error)
	estimateGas       func(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	filterLogs        func(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	headerByNumber    func(ctx context.Context, number *big.Int) (*types.Header, error)
	pendingNonceAt    func(ctx context.Context, account common.Address) (uint64, error)
	sendTransaction   func(ctx context.Context, tx *types.Transaction) error
	suggestGasPrice   func(ctx context.Context) (*big.Int, error)
	transactionByHash func(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

func New(opts ...Option) transaction.Backend {
	mock := new(backendMock)
	for _, o := range opts {
		o.apply(mock)
	}
	return mock
}

func (m *backendMock) BlockNumber(ctx context.Context) (uint64, error) {
	if m.blockNumber == nil {
		return 0, ErrNotImplemented
	}
	return m.blockNumber(ctx)
}

func (m *backendMock) ChainID(ctx context.Context) (*big.Int, error) {
	if m.chainID == nil {
		return nil, ErrNotImplemented
	}
	return m.chainID(ctx)
}

func (m *backendMock) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if m.estimateGas == nil {
		return 0, ErrNotImplemented
	}
	return m.estimateGas(ctx, call)
}

func (m *backendMock) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	if m.filterLogs == nil {
		return nil, ErrNotImplemented
	}
	return m.filterLogs(ctx, query)
}

func (m *backendMock) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if m.headerByNumber == nil {
		return nil, ErrNotImplemented
	}
	return m.headerByNumber(ctx, number)
}

func (m *backendMock) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if m.pendingNonceAt == nil {
		return 0, ErrNotImplemented
	}
	return m.pendingNonceAt(ctx, account)
}

func (m *backendMock) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if m.sendTransaction == nil {
		return ErrNotImplemented
	}
	return m.sendTransaction(ctx, tx)
}

func (m *backendMock) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if m.suggestGasPrice == nil {
		return nil, ErrNotImplemented
	}
	return m.suggestGasPrice(ctx)
}

func (m *backendMock) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if m.transactionByHash == nil {
		return nil, false, ErrNotImplemented
	}
	return m.transactionByHash(ctx, hash)
}

func (*backendMock) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, ErrNotImplemented
}

func (*backendMock) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, ErrNotImplemented
}

func (*backendMock) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return nil, ErrNotImplemented
}

func (*backendMock) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return nil, ErrNotImplemented
}

func (*backendMock) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, ErrNotImplemented
}

func (*backendMock) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ErrNotImplemented
}

func (*backendMock) BlockByNumber(context.Context, *big.Int) (*types.Block, error) {
	return nil, ErrNotImplemented
}

func (*backendMock) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return nil, ErrNotImplemented
}

func (*backendMock) NonceAt(context.Context, common.Address, *big.Int) (uint64, error) {
	return 0, ErrNotImplemented
}

// Option is the option passed to the mock backend.
type Option interface {
	apply(*backendMock)
}

type optionFunc func(*backendMock)

func (f optionFunc) apply(m *backendMock) { f(m) }

func WithBlockNumberFunc(f func(ctx context.Context) (uint64, error)) Option {
	return optionFunc(func(m *backendMock) { m.blockNumber = f })
}

func WithChainIDFunc(f func(ctx context.Context) (*big.Int, error)) Option {
	return optionFunc(func(m *backendMock) { m.chainID = f })
}

func WithEstimateGasFunc(f func(ctx context.Context, call ethereum.CallMsg) (uint64, error)) Option {
	return optionFunc(func(m *backendMock) { m.estimateGas = f })
}

func WithFilterLogsFunc(f func(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)) Option {
	return optionFunc(func(m *backendMock) { m.filterLogs = f })
}

func WithHeaderByNumberFunc(f func(ctx context.Context, number *big.Int) (*types.Header, error)) Option {
	return optionFunc(func(m *backendMock) { m.headerByNumber = f })
}

func WithPendingNonceAtFunc(f func(ctx context.Context, account common.Address) (uint64, error)) Option {
	return optionFunc(func(m *backendMock) { m.pendingNonceAt = f })
}

func WithSendTransactionFunc(f func(ctx context.Context, tx *types.Transaction) error) Option {
	return optionFunc(func(m *backendMock) { m.sendTransaction = f })
}

func WithSuggestGasPriceFunc(f func(ctx context.Context) (*big.Int, error)) Option {
	return optionFunc(func(m *backendMock) { m.suggestGasPrice = f })
}

func WithTransactionByHashFunc(f func(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)) Option {
	return optionFunc(func(m *backendMock) { m.transactionByHash = f })
}
