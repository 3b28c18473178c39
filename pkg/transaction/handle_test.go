// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/transaction"
	"github.com/rafflekit/rafflekit/pkg/transaction/mock"
)

func TestHandleWait(t *testing.T) {
	ok := &types.Receipt{TxHash: common.HexToHash("0x01"), Status: types.ReceiptStatusSuccessful}
	failed := &types.Receipt{TxHash: common.HexToHash("0x02"), Status: types.ReceiptStatusFailed}
	service := mock.New(mock.WithReceipts(ok, failed))

	receipt, err := transaction.NewHandle(ok.TxHash, service).Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if receipt != ok {
		t.Fatal("got wrong receipt")
	}

	receipt, err = transaction.NewHandle(failed.TxHash, service).Wait(context.Background())
	if !errors.Is(err, transaction.ErrTransactionReverted) {
		t.Fatalf("got error %v, want %v", err, transaction.ErrTransactionReverted)
	}
	if receipt != failed {
		t.Fatal("reverted receipt not returned")
	}

	_, err = transaction.NewHandle(common.HexToHash("0x03"), service).Wait(context.Background())
	if !errors.Is(err, transaction.ErrUnknownTransaction) {
		t.Fatalf("got error %v, want %v", err, transaction.ErrUnknownTransaction)
	}
}
