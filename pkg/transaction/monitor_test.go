// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction_test

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/transaction"
	"github.com/rafflekit/rafflekit/pkg/transaction/backendsimulation"
	"github.com/rafflekit/rafflekit/pkg/transaction/monitormock"
)

func TestMonitorWatchTransaction(t *testing.T) {
	logger := logging.New(io.Discard, 0)
	sender := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	txHash := common.HexToHash("0xaaaa")
	nonce := uint64(1)
	pollingInterval := 10 * time.Millisecond

	t.Run("single transaction confirmed", func(t *testing.T) {
		monitor := transaction.NewMonitor(logger, backendsimulation.New(
			backendsimulation.WithBlocks(
				backendsimulation.Block{
					Number: 1,
					NoncesAt: map[backendsimulation.AccountAtKey]uint64{
						{BlockNumber: 1, Account: sender}: nonce,
					},
				},
				backendsimulation.Block{
					Number: 2,
					Receipts: map[common.Hash]*types.Receipt{
						txHash: {TxHash: txHash, Status: types.ReceiptStatusSuccessful},
					},
					NoncesAt: map[backendsimulation.AccountAtKey]uint64{
						{BlockNumber: 2, Account: sender}: nonce + 1,
					},
				},
			),
		), sender, pollingInterval, 2)
		defer monitor.Close()

		receiptC, errC, err := monitor.WatchTransaction(txHash, nonce)
		if err != nil {
			t.Fatal(err)
		}

		select {
		case receipt := <-receiptC:
			if receipt.TxHash != txHash {
				t.Fatal("got wrong receipt")
			}
		case err := <-errC:
			t.Fatal(err)
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	})

	t.Run("single transaction cancelled", func(t *testing.T) {
		monitor := transaction.NewMonitor(logger, backendsimulation.New(
			backendsimulation.WithBlocks(
				backendsimulation.Block{
					Number: 1,
					NoncesAt: map[backendsimulation.AccountAtKey]uint64{
						{BlockNumber: 1, Account: sender}: nonce + 1,
					},
				},
				backendsimulation.Block{
					Number: 2,
					NoncesAt: map[backendsimulation.AccountAtKey]uint64{
						{BlockNumber: 2, Account: sender}: nonce + 1,
					},
				},
			),
		), sender, pollingInterval, 1)
		defer monitor.Close()

		receiptC, errC, err := monitor.WatchTransaction(txHash, nonce)
		if err != nil {
			t.Fatal(err)
		}

		select {
		case <-receiptC:
			t.Fatal("got receipt for a cancelled transaction")
		case err := <-errC:
			if !errors.Is(err, transaction.ErrTransactionCancelled) {
				t.Fatalf("got error %v, want %v", err, transaction.ErrTransactionCancelled)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	})

	t.Run("close", func(t *testing.T) {
		monitor := transaction.NewMonitor(logger, backendsimulation.New(), sender, pollingInterval, 1)

		_, errC, err := monitor.WatchTransaction(txHash, nonce)
		if err != nil {
			t.Fatal(err)
		}
		if err := monitor.Close(); err != nil {
			t.Fatal(err)
		}

		select {
		case err := <-errC:
			if !errors.Is(err, transaction.ErrMonitorClosed) {
				t.Fatalf("got error %v, want %v", err, transaction.ErrMonitorClosed)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out")
		}
	})
}

func TestWaitConfirmations(t *testing.T) {
	ctx := context.Background()
	receipt := &types.Receipt{BlockNumber: big.NewInt(100)}

	var waited *big.Int
	monitor := monitormock.New(
		monitormock.WithWaitBlockFunc(func(ctx context.Context, block *big.Int) (*types.Block, error) {
			waited = block
			return types.NewBlockWithHeader(&types.Header{Number: block}), nil
		}),
	)

	if err := transaction.WaitConfirmations(ctx, monitor, receipt, 1); err != nil {
		t.Fatal(err)
	}
	if waited != nil {
		t.Fatalf("waited for block %v with a single confirmation", waited)
	}

	if err := transaction.WaitConfirmations(ctx, monitor, receipt, 6); err != nil {
		t.Fatal(err)
	}
	if waited == nil || waited.Int64() != 105 {
		t.Fatalf("waited for block %v, want 105", waited)
	}
}
