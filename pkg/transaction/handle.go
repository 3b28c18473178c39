// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReceiptWaiter waits for the receipt of a sent transaction.
type ReceiptWaiter interface {
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Handle is a sent transaction that can be awaited for its receipt.
type Handle struct {
	hash   common.Hash
	waiter ReceiptWaiter
}

func NewHandle(hash common.Hash, waiter ReceiptWaiter) *Handle {
	return &Handle{hash: hash, waiter: waiter}
}

func (h *Handle) Hash() common.Hash {
	return h.hash
}

// Wait blocks until the transaction is mined. State read after Wait returns
// reflects the transaction. A mined but failed transaction returns the
// receipt together with ErrTransactionReverted.
func (h *Handle) Wait(ctx context.Context) (*types.Receipt, error) {
	receipt, err := h.waiter.WaitForReceipt(ctx, h.hash)
	if err != nil {
		return nil, fmt.Errorf("wait for transaction %x: %w", h.hash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("transaction %x: %w", h.hash, ErrTransactionReverted)
	}
	return receipt, nil
}
