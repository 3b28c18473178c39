// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the subset of an ethclient the contract clients and the
// transaction service use. A simulated backend satisfies it too.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BalanceAt(ctx context.Context, address common.Address, block *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// GasCost returns the amount of wei the sender paid for the transaction
// of the receipt.
func GasCost(ctx context.Context, backend Backend, receipt *types.Receipt) (*big.Int, error) {
	if receipt == nil {
		return nil, errors.New("nil receipt")
	}
	tx, _, err := backend.TransactionByHash(ctx, receipt.TxHash)
	if err != nil {
		return nil, fmt.Errorf("transaction %x: %w", receipt.TxHash, err)
	}
	return new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(receipt.GasUsed)), nil
}

// syncPollInterval is how often WaitSynced checks the head block.
const syncPollInterval = 5 * time.Second

// HeadAge returns how long ago the latest block was produced.
func HeadAge(ctx context.Context, backend Backend) (time.Duration, error) {
	number, err := backend.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	header, err := backend.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("header %d: %w", number, err)
	}
	return time.Since(time.Unix(int64(header.Time), 0)), nil
}

// IsSynced reports whether the latest block is younger than maxDelay.
func IsSynced(ctx context.Context, backend Backend, maxDelay time.Duration) (bool, error) {
	age, err := HeadAge(ctx, backend)
	if err != nil {
		return false, err
	}
	return age < maxDelay, nil
}

// WaitSynced blocks until IsSynced holds or the context is done.
func WaitSynced(ctx context.Context, backend Backend, maxDelay time.Duration) error {
	ticker := time.NewTicker(syncPollInterval)
	defer ticker.Stop()

	for {
		synced, err := IsSynced(ctx, backend, maxDelay)
		if err != nil || synced {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ParseABIUnchecked parses a JSON ABI and panics on failure. It is meant
// for ABI constants compiled into the binary.
func ParseABIUnchecked(json string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(json))
	if err != nil {
		panic(fmt.Sprintf("parse contract abi: %v", err))
	}
	return parsed
}
