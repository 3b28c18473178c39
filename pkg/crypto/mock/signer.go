// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mock provides a crypto.Signer for tests that signs nothing.
package mock

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/crypto"
)

type signerMock struct {
	address common.Address
	signTx  func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// New returns a signer for the zero address that returns transactions
// unsigned unless options say otherwise.
func New(opts ...Option) crypto.Signer {
	m := new(signerMock)
	for _, o := range opts {
		o.apply(m)
	}
	return m
}

func (m *signerMock) EthereumAddress() (common.Address, error) {
	return m.address, nil
}

func (m *signerMock) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if m.signTx == nil {
		return tx, nil
	}
	return m.signTx(tx, chainID)
}

func (*signerMock) PublicKey() (*ecdsa.PublicKey, error) {
	return nil, errors.New("mock signer has no key")
}

// Option is the option passed to the mock signer.
type Option interface {
	apply(*signerMock)
}

type optionFunc func(*signerMock)

func (f optionFunc) apply(m *signerMock) { f(m) }

func WithSignTxFunc(f func(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)) Option {
	return optionFunc(func(m *signerMock) { m.signTx = f })
}

func WithEthereumAddress(address common.Address) Option {
	return optionFunc(func(m *signerMock) { m.address = address })
}
