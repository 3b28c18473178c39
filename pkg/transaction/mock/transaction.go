// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

var errNotImplemented = errors.New("not implemented")

type transactionServiceMock struct {
	send           func(ctx context.Context, request *transaction.TxRequest) (common.Hash, error)
	call           func(ctx context.Context, request *transaction.TxRequest) ([]byte, error)
	waitForReceipt func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// New returns a transaction.Service whose sends, calls and receipt waits
// are answered by the options. Everything else is not implemented.
func New(opts ...Option) transaction.Service {
	mock := new(transactionServiceMock)
	for _, o := range opts {
		o.apply(mock)
	}
	return mock
}

func (m *transactionServiceMock) Sender() common.Address {
	return common.Address{}
}

func (m *transactionServiceMock) Send(ctx context.Context, request *transaction.TxRequest) (common.Hash, error) {
	if m.send == nil {
		return common.Hash{}, errNotImplemented
	}
	return m.send(ctx, request)
}

func (m *transactionServiceMock) Call(ctx context.Context, request *transaction.TxRequest) ([]byte, error) {
	if m.call == nil {
		return nil, errNotImplemented
	}
	return m.call(ctx, request)
}

func (m *transactionServiceMock) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if m.waitForReceipt == nil {
		return nil, errNotImplemented
	}
	return m.waitForReceipt(ctx, txHash)
}

func (*transactionServiceMock) WatchSentTransaction(common.Hash) (<-chan types.Receipt, <-chan error, error) {
	return nil, nil, errNotImplemented
}

func (*transactionServiceMock) SentTransaction(common.Hash) (*transaction.SentTransaction, error) {
	return nil, errNotImplemented
}

func (*transactionServiceMock) PendingTransactions() ([]common.Hash, error) {
	return nil, errNotImplemented
}

func (*transactionServiceMock) Close() error {
	return nil
}

// Option is the option passed to the mock transaction service.
type Option interface {
	apply(*transactionServiceMock)
}

type optionFunc func(*transactionServiceMock)

func (f optionFunc) apply(m *transactionServiceMock) { f(m) }

func WithSendFunc(f func(ctx context.Context, request *transaction.TxRequest) (common.Hash, error)) Option {
	return optionFunc(func(m *transactionServiceMock) { m.send = f })
}

func WithWaitForReceiptFunc(f func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)) Option {
	return optionFunc(func(m *transactionServiceMock) { m.waitForReceipt = f })
}

// WithReceipts makes WaitForReceipt return the given receipts by hash.
func WithReceipts(receipts ...*types.Receipt) Option {
	byHash := make(map[common.Hash]*types.Receipt, len(receipts))
	for _, r := range receipts {
		byHash[r.TxHash] = r
	}
	return WithWaitForReceiptFunc(func(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
		r, ok := byHash[txHash]
		if !ok {
			return nil, fmt.Errorf("%x: %w", txHash, transaction.ErrUnknownTransaction)
		}
		return r, nil
	})
}

// Call is an expected contract call and the result it returns.
type Call struct {
	abi    *abi.ABI
	to     common.Address
	result []byte
	method string
	params []interface{}
}

func ABICall(abi *abi.ABI, to common.Address, result []byte, method string, params ...interface{}) Call {
	return Call{abi: abi, to: to, result: result, method: method, params: params}
}

func (c Call) check(request *transaction.TxRequest) error {
	data, err := c.abi.Pack(c.method, c.params...)
	if err != nil {
		return err
	}
	if !bytes.Equal(data, request.Data) {
		return fmt.Errorf("%s: wrong data. wanted %x, got %x", c.method, data, request.Data)
	}
	if request.To == nil {
		return fmt.Errorf("%s: call with no recipient", c.method)
	}
	if *request.To != c.to {
		return fmt.Errorf("%s: wrong recipient. wanted %x, got %x", c.method, c.to, *request.To)
	}
	return nil
}

// WithABICallSequence expects exactly the given calls, in order.
func WithABICallSequence(calls ...Call) Option {
	return optionFunc(func(m *transactionServiceMock) {
		m.call = func(ctx context.Context, request *transaction.TxRequest) ([]byte, error) {
			if len(calls) == 0 {
				return nil, errors.New("unexpected call")
			}
			next := calls[0]
			if err := next.check(request); err != nil {
				return nil, err
			}
			calls = calls[1:]
			return next.result, nil
		}
	})
}

func WithABICall(abi *abi.ABI, to common.Address, result []byte, method string, params ...interface{}) Option {
	return WithABICallSequence(ABICall(abi, to, result, method, params...))
}

// WithABISend accepts a single kind of send and answers it with txHash. A
// nil recipient is accepted for contract creations.
func WithABISend(abi *abi.ABI, txHash common.Hash, expectedAddress common.Address, expectedValue *big.Int, method string, params ...interface{}) Option {
	if expectedValue == nil {
		expectedValue = new(big.Int)
	}
	return WithSendFunc(func(ctx context.Context, request *transaction.TxRequest) (common.Hash, error) {
		data, err := abi.Pack(method, params...)
		if err != nil {
			return common.Hash{}, err
		}
		if !bytes.Equal(data, request.Data) {
			return common.Hash{}, fmt.Errorf("%s: wrong data. wanted %x, got %x", method, data, request.Data)
		}
		if request.To != nil && *request.To != expectedAddress {
			return common.Hash{}, fmt.Errorf("%s: sending to wrong contract. wanted %x, got %x", method, expectedAddress, request.To)
		}
		value := request.Value
		if value == nil {
			value = new(big.Int)
		}
		if value.Cmp(expectedValue) != 0 {
			return common.Hash{}, fmt.Errorf("%s: sending with wrong value. wanted %d, got %d", method, expectedValue, value)
		}
		return txHash, nil
	})
}
