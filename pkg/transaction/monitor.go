// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/logging"
)

var (
	// ErrTransactionCancelled is reported for a watched transaction whose
	// nonce was consumed by another transaction.
	ErrTransactionCancelled = errors.New("transaction cancelled")
	// ErrMonitorClosed is reported to every open watch on Close.
	ErrMonitorClosed = errors.New("monitor closed")
)

// Monitor watches the transactions of one sender until they are mined.
// A transaction is only looked up once the sender's on-chain nonce passed
// it. A nonce used without a receipt for cancellationDepth blocks is
// reported as cancelled.
type Monitor interface {
	io.Closer
	// WatchTransaction delivers either the receipt or an error, exactly
	// once, on the returned channels.
	WatchTransaction(txHash common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error)
	// WaitBlock blocks until the block with the given number exists.
	WaitBlock(ctx context.Context, block *big.Int) (*types.Block, error)
}

// WaitConfirmations waits until the block holding the receipt has been
// followed by confirmations-1 further blocks. One confirmation is the
// receipt's own block.
func WaitConfirmations(ctx context.Context, monitor Monitor, receipt *types.Receipt, confirmations uint64) error {
	if confirmations <= 1 || receipt.BlockNumber == nil {
		return nil
	}
	target := new(big.Int).Add(receipt.BlockNumber, new(big.Int).SetUint64(confirmations-1))
	_, err := monitor.WaitBlock(ctx, target)
	return err
}

type watch struct {
	hash     common.Hash
	nonce    uint64
	receiptC chan types.Receipt
	errC     chan error
	done     bool
}

type monitor struct {
	logger            logging.Logger
	backend           Backend
	sender            common.Address
	interval          time.Duration
	cancellationDepth uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	watches []*watch
	closed  bool
	wake    chan struct{}
}

// NewMonitor starts a monitor for the sender's transactions that polls the
// backend every interval.
func NewMonitor(logger logging.Logger, backend Backend, sender common.Address, interval time.Duration, cancellationDepth uint64) Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &monitor{
		logger:            logger,
		backend:           backend,
		sender:            sender,
		interval:          interval,
		cancellationDepth: cancellationDepth,
		ctx:               ctx,
		cancel:            cancel,
		wake:              make(chan struct{}, 1),
	}

	m.wg.Add(1)
	go m.run()

	return m
}

func (m *monitor) WatchTransaction(txHash common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, ErrMonitorClosed
	}

	// buffered so that delivery never blocks the poll loop
	w := &watch{
		hash:     txHash,
		nonce:    nonce,
		receiptC: make(chan types.Receipt, 1),
		errC:     make(chan error, 1),
	}
	m.watches = append(m.watches, w)

	select {
	case m.wake <- struct{}{}:
	default:
	}

	m.logger.Tracef("%s: watching transaction %x with nonce %d", m.sender, txHash, nonce)
	return w.receiptC, w.errC, nil
}

func (m *monitor) WaitBlock(ctx context.Context, number *big.Int) (*types.Block, error) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		block, err := m.backend.BlockByNumber(ctx, number)
		switch {
		case err == nil && block != nil:
			return block, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("block %v: %w", number, err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.ctx.Done():
			return nil, ErrMonitorClosed
		}
	}
}

func (m *monitor) run() {
	defer m.wg.Done()
	defer m.closeWatches()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var lastHead uint64
	for {
		// a new watch is polled right away even without a new block, a
		// receipt can already be there
		forced := false
		select {
		case <-m.wake:
			forced = true
		case <-ticker.C:
		case <-m.ctx.Done():
			return
		}

		if m.idle() {
			continue
		}

		head, err := m.backend.BlockNumber(m.ctx)
		if err != nil {
			m.logger.Errorf("%s: block number: %v", m.sender, err)
			continue
		}
		if head <= lastHead && !forced {
			continue
		}

		if err := m.poll(head); err != nil {
			m.logger.Debugf("%s: poll at block %d: %v", m.sender, head, err)
			continue
		}
		lastHead = head
	}
}

func (m *monitor) idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches) == 0
}

// usedBelow returns the watches whose nonce is below the given one.
func (m *monitor) usedBelow(nonce uint64) []*watch {
	m.mu.Lock()
	defer m.mu.Unlock()

	var used []*watch
	for _, w := range m.watches {
		if w.nonce < nonce {
			used = append(used, w)
		}
	}
	return used
}

func (m *monitor) nonceAt(block uint64) (uint64, error) {
	return m.backend.NonceAt(m.ctx, m.sender, new(big.Int).SetUint64(block))
}

// poll settles the watches whose nonce the sender has used by block head.
func (m *monitor) poll(head uint64) error {
	nonce, err := m.nonceAt(head)
	if err != nil {
		return err
	}
	used := m.usedBelow(nonce)
	if len(used) == 0 {
		return nil
	}

	receipts := make(map[*watch]*types.Receipt)
	var missing []*watch
	for _, w := range used {
		receipt, err := m.backend.TransactionReceipt(m.ctx, w.hash)
		switch {
		case receipt != nil:
			receipts[w] = receipt
		case err == nil || errors.Is(err, ethereum.NotFound):
			// the original transaction can still win after a reorg
			missing = append(missing, w)
		default:
			return fmt.Errorf("receipt %x: %w", w.hash, err)
		}
	}

	var cancelled []*watch
	if len(missing) > 0 {
		var depth uint64
		if head > m.cancellationDepth {
			depth = head - m.cancellationDepth
		}
		final, err := m.nonceAt(depth)
		if err != nil {
			return err
		}
		for _, w := range missing {
			if w.nonce < final {
				cancelled = append(cancelled, w)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for w, receipt := range receipts {
		w.receiptC <- *receipt
		w.done = true
	}
	for _, w := range cancelled {
		m.logger.Debugf("%s: nonce %d of transaction %x used by another transaction", m.sender, w.nonce, w.hash)
		w.errC <- ErrTransactionCancelled
		w.done = true
	}

	open := m.watches[:0]
	for _, w := range m.watches {
		if !w.done {
			open = append(open, w)
		}
	}
	m.watches = open
	return nil
}

func (m *monitor) closeWatches() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, w := range m.watches {
		w.errC <- ErrMonitorClosed
	}
	m.watches = nil
}

func (m *monitor) Close() error {
	m.cancel()
	m.wg.Wait()
	return nil
}
