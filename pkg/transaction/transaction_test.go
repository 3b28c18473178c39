// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/crypto"
	signermock "github.com/rafflekit/rafflekit/pkg/crypto/mock"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/sctx"
	storemock "github.com/rafflekit/rafflekit/pkg/statestore/mock"
	"github.com/rafflekit/rafflekit/pkg/transaction"
	"github.com/rafflekit/rafflekit/pkg/transaction/backendmock"
	"github.com/rafflekit/rafflekit/pkg/transaction/monitormock"
)

func signerMockForTransaction(t *testing.T, signedTx *types.Transaction, sender common.Address, signerChainID *big.Int) crypto.Signer {
	t.Helper()

	return signermock.New(
		signermock.WithSignTxFunc(func(transaction *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
			if signedTx.To() == nil {
				if transaction.To() != nil {
					t.Fatalf("signing transaction with recipient. wanted nil, got %x", transaction.To())
				}
			} else if transaction.To() == nil || *transaction.To() != *signedTx.To() {
				t.Fatalf("signing transaction with wrong recipient. wanted %x, got %x", signedTx.To(), transaction.To())
			}
			if !bytes.Equal(transaction.Data(), signedTx.Data()) {
				t.Fatalf("signing transaction with wrong data. wanted %x, got %x", signedTx.Data(), transaction.Data())
			}
			if transaction.Value().Cmp(signedTx.Value()) != 0 {
				t.Fatalf("signing transaction with wrong value. wanted %d, got %d", signedTx.Value(), transaction.Value())
			}
			if chainID.Cmp(signerChainID) != 0 {
				t.Fatalf("signing transaction with wrong chainID. wanted %d, got %d", signerChainID, chainID)
			}
			if transaction.Gas() != signedTx.Gas() {
				t.Fatalf("signing transaction with wrong gas. wanted %d, got %d", signedTx.Gas(), transaction.Gas())
			}
			if transaction.GasPrice().Cmp(signedTx.GasPrice()) != 0 {
				t.Fatalf("signing transaction with wrong gasprice. wanted %d, got %d", signedTx.GasPrice(), transaction.GasPrice())
			}
			if transaction.Nonce() != signedTx.Nonce() {
				t.Fatalf("signing transaction with wrong nonce. wanted %d, got %d", signedTx.Nonce(), transaction.Nonce())
			}

			return signedTx, nil
		}),
		signermock.WithEthereumAddress(sender),
	)
}

func noopMonitor() transaction.Monitor {
	return monitormock.New(
		monitormock.WithWatchTransactionFunc(func(txHash common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error) {
			return nil, nil, nil
		}),
	)
}

func TestTransactionSend(t *testing.T) {
	logger := logging.New(io.Discard, 0)
	sender := common.HexToAddress("0xddff")
	recipient := common.HexToAddress("0xabcd")
	txData := common.Hex2Bytes("2cfcc539") // enterRaffle()
	value := big.NewInt(5e17)
	suggestedGasPrice := big.NewInt(2)
	estimatedGasLimit := uint64(100000)
	nonce := uint64(2)
	chainID := big.NewInt(31337)

	t.Run("send", func(t *testing.T) {
		signedTx := types.NewTransaction(nonce, recipient, value, estimatedGasLimit+estimatedGasLimit/5, suggestedGasPrice, txData)
		request := &transaction.TxRequest{
			To:          &recipient,
			Data:        txData,
			Value:       value,
			Description: "enter raffle",
		}
		store := storemock.NewStateStore()
		err := store.Put(transaction.NonceKey(sender), nonce)
		if err != nil {
			t.Fatal(err)
		}

		transactionService, err := transaction.NewService(logger,
			backendmock.New(
				backendmock.WithSendTransactionFunc(func(ctx context.Context, tx *types.Transaction) error {
					if tx != signedTx {
						t.Fatal("not sending signed transaction")
					}
					return nil
				}),
				backendmock.WithEstimateGasFunc(func(ctx context.Context, call ethereum.CallMsg) (gas uint64, err error) {
					if !bytes.Equal(call.To.Bytes(), recipient.Bytes()) {
						t.Fatalf("estimating with wrong recipient. wanted %x, got %x", recipient, call.To)
					}
					if !bytes.Equal(call.Data, txData) {
						t.Fatal("estimating with wrong data")
					}
					if call.Value == nil || call.Value.Cmp(value) != 0 {
						t.Fatalf("estimating with wrong value. wanted %d, got %d", value, call.Value)
					}
					return estimatedGasLimit, nil
				}),
				backendmock.WithSuggestGasPriceFunc(func(ctx context.Context) (*big.Int, error) {
					return suggestedGasPrice, nil
				}),
				backendmock.WithPendingNonceAtFunc(func(ctx context.Context, account common.Address) (uint64, error) {
					return nonce - 1, nil
				}),
			),
			signerMockForTransaction(t, signedTx, sender, chainID),
			store,
			chainID,
			noopMonitor(),
		)
		if err != nil {
			t.Fatal(err)
		}
		defer transactionService.Close()

		if transactionService.Sender() != sender {
			t.Fatalf("got sender %x, want %x", transactionService.Sender(), sender)
		}

		txHash, err := transactionService.Send(context.Background(), request)
		if err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(txHash.Bytes(), signedTx.Hash().Bytes()) {
			t.Fatal("returning wrong transaction hash")
		}

		var storedNonce uint64
		err = store.Get(transaction.NonceKey(sender), &storedNonce)
		if err != nil {
			t.Fatal(err)
		}
		if storedNonce != nonce+1 {
			t.Fatalf("nonce not stored correctly: want %d, got %d", nonce+1, storedNonce)
		}

		storedTransaction, err := transactionService.SentTransaction(txHash)
		if err != nil {
			t.Fatal(err)
		}
		if storedTransaction.To == nil || *storedTransaction.To != recipient {
			t.Fatalf("got wrong recipient in stored transaction. wanted %x, got %x", recipient, storedTransaction.To)
		}
		if storedTransaction.Description != request.Description {
			t.Fatalf("got wrong description in stored transaction. wanted %s, got %s", request.Description, storedTransaction.Description)
		}
		if storedTransaction.Value.Cmp(value) != 0 {
			t.Fatalf("got wrong value in stored transaction. wanted %d, got %d", value, storedTransaction.Value)
		}
		if storedTransaction.From != sender {
			t.Fatalf("got wrong sender in stored transaction. wanted %x, got %x", sender, storedTransaction.From)
		}
		if storedTransaction.Nonce != nonce {
			t.Fatalf("got wrong nonce in stored transaction. wanted %d, got %d", nonce, storedTransaction.Nonce)
		}

		pending, err := transactionService.PendingTransactions()
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 1 || pending[0] != txHash {
			t.Fatalf("got pending transactions %v, want [%x]", pending, txHash)
		}
	})

	t.Run("send with context overrides", func(t *testing.T) {
		gasLimit := uint64(6000000)
		gasPrice := big.NewInt(30_000_000_000)
		signedTx := types.NewTransaction(nonce, recipient, value, gasLimit, gasPrice, txData)
		store := storemock.NewStateStore()

		transactionService, err := transaction.NewService(logger,
			backendmock.New(
				backendmock.WithSendTransactionFunc(func(ctx context.Context, tx *types.Transaction) error {
					return nil
				}),
				backendmock.WithPendingNonceAtFunc(func(ctx context.Context, account common.Address) (uint64, error) {
					return nonce, nil
				}),
			),
			signerMockForTransaction(t, signedTx, sender, chainID),
			store,
			chainID,
			noopMonitor(),
		)
		if err != nil {
			t.Fatal(err)
		}
		defer transactionService.Close()

		ctx := sctx.SetGasPrice(sctx.SetGasLimit(context.Background(), gasLimit), gasPrice)
		txHash, err := transactionService.Send(ctx, &transaction.TxRequest{
			To:    &recipient,
			Data:  txData,
			Value: value,
		})
		if err != nil {
			t.Fatal(err)
		}
		if txHash != signedTx.Hash() {
			t.Fatal("returning wrong transaction hash")
		}

		var storedNonce uint64
		if err := store.Get(transaction.NonceKey(sender), &storedNonce); err != nil {
			t.Fatal(err)
		}
		if storedNonce != nonce+1 {
			t.Fatalf("nonce not stored correctly: want %d, got %d", nonce+1, storedNonce)
		}
	})

	t.Run("deploy", func(t *testing.T) {
		bytecode := common.Hex2Bytes("6080604052")
		signedTx := types.NewContractCreation(nonce, big.NewInt(0), estimatedGasLimit+estimatedGasLimit/5, suggestedGasPrice, bytecode)

		transactionService, err := transaction.NewService(logger,
			backendmock.New(
				backendmock.WithSendTransactionFunc(func(ctx context.Context, tx *types.Transaction) error {
					if tx != signedTx {
						t.Fatal("not sending signed transaction")
					}
					return nil
				}),
				backendmock.WithEstimateGasFunc(func(ctx context.Context, call ethereum.CallMsg) (gas uint64, err error) {
					if call.To != nil {
						t.Fatalf("estimating with recipient. wanted nil, got %x", call.To)
					}
					return estimatedGasLimit, nil
				}),
				backendmock.WithSuggestGasPriceFunc(func(ctx context.Context) (*big.Int, error) {
					return suggestedGasPrice, nil
				}),
				backendmock.WithPendingNonceAtFunc(func(ctx context.Context, account common.Address) (uint64, error) {
					return nonce, nil
				}),
			),
			signerMockForTransaction(t, signedTx, sender, chainID),
			storemock.NewStateStore(),
			chainID,
			noopMonitor(),
		)
		if err != nil {
			t.Fatal(err)
		}
		defer transactionService.Close()

		txHash, err := transactionService.Send(context.Background(), &transaction.TxRequest{
			Data: bytecode,
		})
		if err != nil {
			t.Fatal(err)
		}
		if txHash != signedTx.Hash() {
			t.Fatal("returning wrong transaction hash")
		}
	})

	t.Run("estimate revert", func(t *testing.T) {
		revertErr := errors.New("execution reverted: custom error 'Raffle__NotOpen()'")
		store := storemock.NewStateStore()

		transactionService, err := transaction.NewService(logger,
			backendmock.New(
				backendmock.WithEstimateGasFunc(func(ctx context.Context, call ethereum.CallMsg) (gas uint64, err error) {
					return 0, revertErr
				}),
				backendmock.WithPendingNonceAtFunc(func(ctx context.Context, account common.Address) (uint64, error) {
					return nonce, nil
				}),
			),
			signermock.New(signermock.WithEthereumAddress(sender)),
			store,
			chainID,
			noopMonitor(),
		)
		if err != nil {
			t.Fatal(err)
		}
		defer transactionService.Close()

		_, err = transactionService.Send(context.Background(), &transaction.TxRequest{
			To:    &recipient,
			Data:  txData,
			Value: value,
		})
		if !errors.Is(err, revertErr) {
			t.Fatalf("got error %v, want %v", err, revertErr)
		}

		var storedNonce uint64
		if err := store.Get(transaction.NonceKey(sender), &storedNonce); err == nil {
			t.Fatal("nonce stored for a transaction that was never sent")
		}
	})
}

func TestTransactionWaitForReceipt(t *testing.T) {
	logger := logging.New(io.Discard, 0)
	sender := common.HexToAddress("0xddff")
	txHash := common.HexToHash("0xabcdee")
	chainID := big.NewInt(31337)
	nonce := uint64(10)

	store := storemock.NewStateStore()
	err := store.Put(transaction.SentTransactionKey(sender, txHash), transaction.SentTransaction{
		Hash:  txHash,
		From:  sender,
		Nonce: nonce,
	})
	if err != nil {
		t.Fatal(err)
	}

	transactionService, err := transaction.NewService(logger,
		backendmock.New(),
		signermock.New(signermock.WithEthereumAddress(sender)),
		store,
		chainID,
		monitormock.New(
			monitormock.WithWatchTransactionFunc(func(hash common.Hash, n uint64) (<-chan types.Receipt, <-chan error, error) {
				if hash != txHash {
					t.Fatalf("watching wrong transaction. wanted %x, got %x", txHash, hash)
				}
				if n != nonce {
					t.Fatalf("watching wrong nonce. wanted %d, got %d", nonce, n)
				}
				receiptC := make(chan types.Receipt, 1)
				receiptC <- types.Receipt{TxHash: txHash, Status: types.ReceiptStatusSuccessful}
				return receiptC, nil, nil
			}),
		),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer transactionService.Close()

	receipt, err := transactionService.WaitForReceipt(context.Background(), txHash)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.TxHash != txHash {
		t.Fatal("got wrong receipt")
	}

	if _, err := transactionService.WaitForReceipt(context.Background(), common.HexToHash("0x01")); !errors.Is(err, transaction.ErrUnknownTransaction) {
		t.Fatalf("got error %v, want %v", err, transaction.ErrUnknownTransaction)
	}
}

func TestPendingTransactionsOnStart(t *testing.T) {
	logger := logging.New(io.Discard, 0)
	sender := common.HexToAddress("0xddff")
	other := common.HexToAddress("0xeeff")
	txHash := common.HexToHash("0xabcdee")
	otherTxHash := common.HexToHash("0xabcdef")
	store := storemock.NewStateStore()

	for _, tx := range []transaction.SentTransaction{
		{Hash: txHash, From: sender, Nonce: 1},
		{Hash: otherTxHash, From: other, Nonce: 7},
	} {
		if err := store.Put(transaction.SentTransactionKey(tx.From, tx.Hash), tx); err != nil {
			t.Fatal(err)
		}
		if err := store.Put(transaction.PendingTransactionKey(tx.From, tx.Hash), struct{}{}); err != nil {
			t.Fatal(err)
		}
	}

	watched := make(chan common.Hash, 2)
	transactionService, err := transaction.NewService(logger,
		backendmock.New(),
		signermock.New(signermock.WithEthereumAddress(sender)),
		store,
		big.NewInt(31337),
		monitormock.New(
			monitormock.WithWatchTransactionFunc(func(hash common.Hash, n uint64) (<-chan types.Receipt, <-chan error, error) {
				if n != 1 {
					t.Errorf("watching wrong nonce. wanted 1, got %d", n)
				}
				watched <- hash
				receiptC := make(chan types.Receipt, 1)
				receiptC <- types.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful}
				return receiptC, nil, nil
			}),
		),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer transactionService.Close()

	if got := <-watched; got != txHash {
		t.Fatalf("watching %x, want %x", got, txHash)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		pending, err := transactionService.PendingTransactions()
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d pending transactions after confirmation, want 0", len(pending))
		}
		time.Sleep(10 * time.Millisecond)
	}

	// the other sender's pending transaction is left alone
	if err := store.Get(transaction.PendingTransactionKey(other, otherTxHash), &struct{}{}); err != nil {
		t.Fatalf("other sender's pending transaction: %v", err)
	}
	select {
	case h := <-watched:
		t.Fatalf("watching unexpected transaction %x", h)
	default:
	}
}
