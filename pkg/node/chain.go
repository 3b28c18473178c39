// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package node connects to an Ethereum node and sets up the transaction
// plumbing for every configured account.
package node

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hashicorp/go-multierror"
	"github.com/rafflekit/rafflekit/pkg/crypto"
	"github.com/rafflekit/rafflekit/pkg/devchain"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/storage"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

const (
	maxDelay          = 1 * time.Minute
	cancellationDepth = 6
)

var ErrNoAccounts = errors.New("node: no account keys configured")

// Account is a funded account able to send transactions.
type Account struct {
	Address   common.Address
	Monitor   transaction.Monitor
	TxService transaction.Service
}

// Chain is a connection to an Ethereum node with one transaction service
// per account. The first account deploys and operates the contracts.
type Chain struct {
	Backend  transaction.Backend
	ChainID  int64
	Dev      *devchain.Node
	Accounts []Account

	closers []func() error
}

// InitChain will initialize the Ethereum backend at the given endpoint and
// set up a Transaction Service for every key.
func InitChain(
	ctx context.Context,
	logger logging.Logger,
	stateStore storage.StateStorer,
	endpoint string,
	keys []*ecdsa.PrivateKey,
	pollingInterval time.Duration,
) (*Chain, error) {
	if len(keys) == 0 {
		return nil, ErrNoAccounts
	}
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial eth client: %w", err)
	}
	backend := ethclient.NewClient(rpcClient)

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		logger.Infof("could not connect to backend at %v. Check your node or specify another one with --rpc-endpoint.", endpoint)
		backend.Close()
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	c := &Chain{
		Backend: backend,
		ChainID: chainID.Int64(),
		Dev:     devchain.New(backend, rpcClient),
	}
	c.Accounts, c.closers, err = initAccounts(logger, backend, stateStore, chainID, keys, pollingInterval)
	c.closers = append(c.closers, func() error {
		backend.Close()
		return nil
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func initAccounts(
	logger logging.Logger,
	backend transaction.Backend,
	stateStore storage.StateStorer,
	chainID *big.Int,
	keys []*ecdsa.PrivateKey,
	pollingInterval time.Duration,
) (accounts []Account, closers []func() error, err error) {
	for _, key := range keys {
		signer := crypto.NewDefaultSigner(key)
		address, err := signer.EthereumAddress()
		if err != nil {
			return accounts, closers, fmt.Errorf("eth address: %w", err)
		}

		monitor := transaction.NewMonitor(logger, backend, address, pollingInterval, cancellationDepth)
		closers = append(closers, monitor.Close)

		txService, err := transaction.NewService(logger, backend, signer, stateStore, chainID, monitor)
		if err != nil {
			return accounts, closers, fmt.Errorf("new transaction service for %s: %w", address, err)
		}
		closers = append(closers, txService.Close)

		accounts = append(accounts, Account{
			Address:   address,
			Monitor:   monitor,
			TxService: txService,
		})
	}
	return accounts, closers, nil
}

// Deployer is the account that deploys and operates the contracts.
func (c *Chain) Deployer() Account {
	return c.Accounts[0]
}

// Account returns the account with address.
func (c *Chain) Account(address common.Address) (Account, bool) {
	for _, a := range c.Accounts {
		if a.Address == address {
			return a, true
		}
	}
	return Account{}, false
}

// Addresses returns the addresses of all accounts but the deployer.
func (c *Chain) Addresses() []common.Address {
	addresses := make([]common.Address, 0, len(c.Accounts)-1)
	for _, a := range c.Accounts[1:] {
		addresses = append(addresses, a.Address)
	}
	return addresses
}

// WaitSynced blocks until the latest block is at most a minute old. It is
// only meaningful on live chains where blocks are produced continuously.
func (c *Chain) WaitSynced(ctx context.Context, logger logging.Logger) error {
	synced, err := transaction.IsSynced(ctx, c.Backend, maxDelay)
	if err != nil {
		return fmt.Errorf("is synced: %w", err)
	}
	if !synced {
		logger.Infof("waiting to sync with the Ethereum backend")
		if err := transaction.WaitSynced(ctx, c.Backend, maxDelay); err != nil {
			return fmt.Errorf("waiting backend sync: %w", err)
		}
	}
	return nil
}

// Close stops the transaction services and monitors and closes the
// connection, in reverse order of creation.
func (c *Chain) Close() error {
	var result *multierror.Error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	c.closers = nil
	return result.ErrorOrNil()
}
