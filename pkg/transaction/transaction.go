// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/crypto"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/sctx"
	"github.com/rafflekit/rafflekit/pkg/storage"
)

// Keys are namespaced by sender so that the services of several accounts
// can share one state store.
const (
	keyPrefix     = "transaction_"
	nonceSuffix   = "nonce"
	sentInfix     = "sent_"
	pendingInfix  = "pending_"
	gasMarginDiv  = 5 // estimates get a 20% margin
	defaultNoData = ""
)

var (
	// ErrTransactionReverted denotes that the sent transaction has been
	// reverted.
	ErrTransactionReverted = errors.New("transaction reverted")
	// ErrUnknownTransaction is returned for transactions not sent by the
	// service.
	ErrUnknownTransaction = errors.New("unknown transaction")
)

// TxRequest describes a request for a transaction that can be executed.
type TxRequest struct {
	To          *common.Address // recipient of the transaction, nil for contract creation
	Data        []byte          // transaction data
	GasPrice    *big.Int        // gas price or nil if suggested gas price should be used
	GasLimit    uint64          // gas limit or 0 if it should be estimated
	Value       *big.Int        // amount of wei to send
	Description string          // what the transaction does, for logs
}

// SentTransaction is the record kept for every transaction sent by a
// service until it is mined and afterwards.
type SentTransaction struct {
	Hash        common.Hash     `json:"hash"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to,omitempty"`
	Data        []byte          `json:"data"`
	GasPrice    *big.Int        `json:"gasPrice"`
	GasLimit    uint64          `json:"gasLimit"`
	Value       *big.Int        `json:"value"`
	Nonce       uint64          `json:"nonce"`
	Sent        time.Time       `json:"sent"`
	Description string          `json:"description,omitempty"`
}

// Service sends transactions from a single account. It takes care of gas
// price, gas limit and nonce management.
type Service interface {
	io.Closer
	// Sender returns the account transactions are sent from.
	Sender() common.Address
	// Send creates a transaction based on the request and sends it.
	Send(ctx context.Context, request *TxRequest) (txHash common.Hash, err error)
	// Call simulates a transaction based on the request.
	Call(ctx context.Context, request *TxRequest) (result []byte, err error)
	// WaitForReceipt waits until either the transaction with the given hash
	// has been mined or the context is cancelled. This is only valid for
	// transactions sent by this service.
	WaitForReceipt(ctx context.Context, txHash common.Hash) (receipt *types.Receipt, err error)
	// WatchSentTransaction starts watching a transaction sent by this
	// service.
	WatchSentTransaction(txHash common.Hash) (<-chan types.Receipt, <-chan error, error)
	// SentTransaction returns the record of a transaction sent by this
	// service.
	SentTransaction(txHash common.Hash) (*SentTransaction, error)
	// PendingTransactions returns the hashes of the sent transactions that
	// were not mined yet.
	PendingTransactions() ([]common.Hash, error)
}

type transactionService struct {
	wg     sync.WaitGroup
	lock   sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	logger  logging.Logger
	backend Backend
	signer  crypto.Signer
	sender  common.Address
	store   storage.StateStorer
	chainID *big.Int
	monitor Monitor
}

// NewService creates a transaction service for the signer's account and
// resumes watching its pending transactions.
func NewService(logger logging.Logger, backend Backend, signer crypto.Signer, store storage.StateStorer, chainID *big.Int, monitor Monitor) (Service, error) {
	sender, err := signer.EthereumAddress()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &transactionService{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		backend: backend,
		signer:  signer,
		sender:  sender,
		store:   store,
		chainID: chainID,
		monitor: monitor,
	}

	pending, err := t.PendingTransactions()
	if err != nil {
		cancel()
		return nil, err
	}
	if len(pending) > 0 {
		logger.Infof("%s: resuming %d pending transactions", sender, len(pending))
	}
	for _, txHash := range pending {
		t.waitForPendingTx(txHash)
	}

	return t, nil
}

func (t *transactionService) Sender() common.Address {
	return t.sender
}

// Send creates and signs a transaction based on the request and sends it.
// The nonce is only consumed once the node accepted the transaction.
func (t *transactionService) Send(ctx context.Context, request *TxRequest) (txHash common.Hash, err error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	nonce, err := t.nextNonce(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("next nonce: %w", err)
	}

	tx, err := prepareTransaction(ctx, request, t.sender, t.backend, nonce)
	if err != nil {
		return common.Hash{}, err
	}

	signedTx, err := t.signer.SignTx(tx, t.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	txHash = signedTx.Hash()

	t.logger.Debugf("%s: sending transaction %x with nonce %d, gas %d at %v (%s)", t.sender, txHash, nonce, signedTx.Gas(), signedTx.GasPrice(), describe(request))

	if err := t.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, err
	}

	if err := t.store.Put(nonceKey(t.sender), nonce+1); err != nil {
		return common.Hash{}, err
	}

	if err := t.store.Put(sentTransactionKey(t.sender, txHash), SentTransaction{
		Hash:        txHash,
		From:        t.sender,
		To:          signedTx.To(),
		Data:        signedTx.Data(),
		GasPrice:    signedTx.GasPrice(),
		GasLimit:    signedTx.Gas(),
		Value:       signedTx.Value(),
		Nonce:       nonce,
		Sent:        time.Now(),
		Description: request.Description,
	}); err != nil {
		return common.Hash{}, err
	}

	if err := t.store.Put(pendingTransactionKey(t.sender, txHash), struct{}{}); err != nil {
		return common.Hash{}, err
	}

	t.waitForPendingTx(txHash)

	return txHash, nil
}

// waitForPendingTx drops the pending mark once the transaction is mined or
// cancelled. Pending marks survive a shutdown.
func (t *transactionService) waitForPendingTx(txHash common.Hash) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		_, err := t.WaitForReceipt(t.ctx, txHash)
		switch {
		case err == nil:
			t.logger.Tracef("%s: pending transaction %x mined", t.sender, txHash)
		case errors.Is(err, ErrTransactionCancelled):
			t.logger.Warningf("%s: pending transaction %x cancelled", t.sender, txHash)
		case errors.Is(err, context.Canceled), errors.Is(err, ErrMonitorClosed):
			return
		default:
			t.logger.Errorf("%s: waiting for pending transaction %x: %v", t.sender, txHash, err)
		}

		if err := t.store.Delete(pendingTransactionKey(t.sender, txHash)); err != nil {
			t.logger.Errorf("%s: unmark pending transaction %x: %v", t.sender, txHash, err)
		}
	}()
}

func (t *transactionService) Call(ctx context.Context, request *TxRequest) ([]byte, error) {
	return t.backend.CallContract(ctx, ethereum.CallMsg{
		From:     t.sender,
		To:       request.To,
		Data:     request.Data,
		GasPrice: request.GasPrice,
		Gas:      request.GasLimit,
		Value:    request.Value,
	}, nil)
}

func (t *transactionService) SentTransaction(txHash common.Hash) (*SentTransaction, error) {
	var tx SentTransaction
	if err := t.store.Get(sentTransactionKey(t.sender, txHash), &tx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%x: %w", txHash, ErrUnknownTransaction)
		}
		return nil, err
	}
	return &tx, nil
}

// prepareTransaction creates a signable transaction based on a request.
// Gas limit and price fall back to the context overrides and then to the
// backend's estimates.
func prepareTransaction(ctx context.Context, request *TxRequest, from common.Address, backend Backend, nonce uint64) (tx *types.Transaction, err error) {
	gasLimit := request.GasLimit
	if gasLimit == 0 {
		gasLimit = sctx.GetGasLimit(ctx)
	}
	if gasLimit == 0 {
		// payable calls revert during estimation when the value is missing
		gasLimit, err = backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    request.To,
			Data:  request.Data,
			Value: request.Value,
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas (%s): %w", describe(request), err)
		}
		gasLimit += gasLimit / gasMarginDiv
	}

	gasPrice := request.GasPrice
	if gasPrice == nil {
		gasPrice = sctx.GetGasPrice(ctx)
	}
	if gasPrice == nil {
		if gasPrice, err = backend.SuggestGasPrice(ctx); err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
	}

	value := request.Value
	if value == nil {
		value = new(big.Int)
	}

	if request.To == nil {
		return types.NewContractCreation(nonce, value, gasLimit, gasPrice, request.Data), nil
	}
	return types.NewTransaction(nonce, *request.To, value, gasLimit, gasPrice, request.Data), nil
}

func describe(request *TxRequest) string {
	if request.Description != defaultNoData {
		return request.Description
	}
	if request.To == nil {
		return "contract creation"
	}
	return fmt.Sprintf("call to %s", request.To)
}

func senderPrefix(sender common.Address) string {
	return fmt.Sprintf("%s%x_", keyPrefix, sender)
}

func nonceKey(sender common.Address) string {
	return senderPrefix(sender) + nonceSuffix
}

func sentTransactionKey(sender common.Address, txHash common.Hash) string {
	return fmt.Sprintf("%s%s%x", senderPrefix(sender), sentInfix, txHash)
}

func pendingTransactionKey(sender common.Address, txHash common.Hash) string {
	return fmt.Sprintf("%s%s%x", senderPrefix(sender), pendingInfix, txHash)
}

// nextNonce is the larger of the stored and the pending on-chain nonce.
// Transactions sent outside of the service advance the on-chain one.
func (t *transactionService) nextNonce(ctx context.Context) (uint64, error) {
	onchainNonce, err := t.backend.PendingNonceAt(ctx, t.sender)
	if err != nil {
		return 0, err
	}

	var nonce uint64
	if err := t.store.Get(nonceKey(t.sender), &nonce); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return onchainNonce, nil
		}
		return 0, err
	}
	if onchainNonce > nonce {
		return onchainNonce, nil
	}
	return nonce, nil
}

// WaitForReceipt waits until either the transaction with the given hash has
// been mined or the context is cancelled.
func (t *transactionService) WaitForReceipt(ctx context.Context, txHash common.Hash) (receipt *types.Receipt, err error) {
	receiptC, errC, err := t.WatchSentTransaction(txHash)
	if err != nil {
		return nil, err
	}
	select {
	case receipt := <-receiptC:
		return &receipt, nil
	case err := <-errC:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *transactionService) WatchSentTransaction(txHash common.Hash) (<-chan types.Receipt, <-chan error, error) {
	// the record proves the transaction was sent from this service and
	// carries the nonce the monitor watches
	tx, err := t.SentTransaction(txHash)
	if err != nil {
		return nil, nil, err
	}
	return t.monitor.WatchTransaction(txHash, tx.Nonce)
}

func (t *transactionService) PendingTransactions() ([]common.Hash, error) {
	prefix := senderPrefix(t.sender) + pendingInfix
	txHashes := make([]common.Hash, 0)
	err := t.store.Iterate(prefix, func(key, value []byte) (stop bool, err error) {
		txHashes = append(txHashes, common.HexToHash(strings.TrimPrefix(string(key), prefix)))
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return txHashes, nil
}

func (t *transactionService) Close() error {
	t.cancel()
	t.wg.Wait()
	return nil
}
