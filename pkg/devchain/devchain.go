// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package devchain reads chain time and balances and drives the clock,
// block production and snapshots of a development node.
package devchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

// ErrSnapshotNotFound is returned when reverting to an unknown or already
// consumed snapshot.
var ErrSnapshotNotFound = errors.New("devchain: snapshot not found")

// Chain is the read view of a chain used to verify round outcomes.
type Chain interface {
	// Now returns the timestamp of the latest block.
	Now(ctx context.Context) (time.Time, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	// GasCost returns what the sender paid in fees for the receipt's transaction.
	GasCost(ctx context.Context, receipt *types.Receipt) (*big.Int, error)
}

// TimeTraveler moves the clock of a development chain.
type TimeTraveler interface {
	IncreaseTime(ctx context.Context, d time.Duration) error
	Mine(ctx context.Context) error
}

// Snapshotter saves and restores the full state of a development chain.
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
	Revert(ctx context.Context, id string) error
}

// RPCCaller is the subset of rpc.Client used for node specific methods.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Node talks to a JSON-RPC node. The evm_ methods are only served by
// development nodes.
type Node struct {
	backend transaction.Backend
	rpc     RPCCaller
}

var (
	_ Chain        = (*Node)(nil)
	_ TimeTraveler = (*Node)(nil)
	_ Snapshotter  = (*Node)(nil)
)

func New(backend transaction.Backend, rpc RPCCaller) *Node {
	return &Node{backend: backend, rpc: rpc}
}

func (n *Node) Now(ctx context.Context) (time.Time, error) {
	header, err := n.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest header: %w", err)
	}
	return time.Unix(int64(header.Time), 0), nil
}

func (n *Node) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return n.backend.BalanceAt(ctx, account, nil)
}

func (n *Node) GasCost(ctx context.Context, receipt *types.Receipt) (*big.Int, error) {
	return transaction.GasCost(ctx, n.backend, receipt)
}

func (n *Node) IncreaseTime(ctx context.Context, d time.Duration) error {
	var ignored interface{}
	if err := n.rpc.CallContext(ctx, &ignored, "evm_increaseTime", int64(d/time.Second)); err != nil {
		return fmt.Errorf("evm_increaseTime: %w", err)
	}
	return nil
}

func (n *Node) Mine(ctx context.Context) error {
	var ignored interface{}
	if err := n.rpc.CallContext(ctx, &ignored, "evm_mine"); err != nil {
		return fmt.Errorf("evm_mine: %w", err)
	}
	return nil
}

func (n *Node) Snapshot(ctx context.Context) (string, error) {
	var id string
	if err := n.rpc.CallContext(ctx, &id, "evm_snapshot"); err != nil {
		return "", fmt.Errorf("evm_snapshot: %w", err)
	}
	return id, nil
}

func (n *Node) Revert(ctx context.Context, id string) error {
	var ok bool
	if err := n.rpc.CallContext(ctx, &ok, "evm_revert", id); err != nil {
		return fmt.Errorf("evm_revert: %w", err)
	}
	if !ok {
		return fmt.Errorf("revert to %s: %w", id, ErrSnapshotNotFound)
	}
	return nil
}

// Advance moves the chain clock forward by d and mines a block carrying
// the new timestamp.
func Advance(ctx context.Context, tt TimeTraveler, d time.Duration) error {
	if err := tt.IncreaseTime(ctx, d); err != nil {
		return err
	}
	return tt.Mine(ctx)
}
