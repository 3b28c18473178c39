// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raffle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

// DefaultPollInterval is used when a subscription has to poll for logs.
const DefaultPollInterval = time.Second

// ErrUnsubscribed is returned by Wait after Unsubscribe.
var ErrUnsubscribed = errors.New("raffle: unsubscribed")

// Subscription is a one-shot WinnerPicked listener.
type Subscription interface {
	// Wait blocks until the first WinnerPicked event or until ctx is done.
	Wait(ctx context.Context) (WinnerPicked, error)
	Unsubscribe()
}

type subscription struct {
	result chan WinnerPicked
	errc   chan error
	quit   chan struct{}
	once   sync.Once
}

func subscribeWinnerPicked(ctx context.Context, backend transaction.Backend, address common.Address, pollInterval time.Duration) (Subscription, error) {
	head, err := backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscribe WinnerPicked: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	s := &subscription{
		result: make(chan WinnerPicked, 1),
		errc:   make(chan error, 1),
		quit:   make(chan struct{}),
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(head + 1),
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{winnerPickedEvent.ID}},
	}

	logs := make(chan types.Log, 1)
	sub, err := backend.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		// not every backend supports push subscriptions
		go s.poll(backend, query, head+1, pollInterval)
		return s, nil
	}
	go s.listen(sub, logs)
	return s, nil
}

func (s *subscription) listen(sub ethereum.Subscription, logs <-chan types.Log) {
	defer sub.Unsubscribe()
	for {
		select {
		case l := <-logs:
			if l.Removed {
				continue
			}
			s.deliver(l)
			return
		case err := <-sub.Err():
			if err != nil {
				s.errc <- err
			}
			return
		case <-s.quit:
			return
		}
	}
}

func (s *subscription) poll(backend transaction.Backend, query ethereum.FilterQuery, from uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		to, err := backend.BlockNumber(ctx)
		if err == nil && to >= from {
			query.FromBlock = new(big.Int).SetUint64(from)
			query.ToBlock = new(big.Int).SetUint64(to)
			var logs []types.Log
			logs, err = backend.FilterLogs(ctx, query)
			if err == nil {
				for _, l := range logs {
					if l.Removed {
						continue
					}
					s.deliver(l)
					return
				}
				from = to + 1
			}
		}
		if err != nil && ctx.Err() == nil {
			s.errc <- err
			return
		}

		select {
		case <-ticker.C:
		case <-s.quit:
			return
		}
	}
}

func (s *subscription) deliver(l types.Log) {
	wp, err := parseWinnerPicked(l)
	if err != nil {
		s.errc <- err
		return
	}
	s.result <- wp
}

func (s *subscription) Wait(ctx context.Context) (WinnerPicked, error) {
	select {
	case wp := <-s.result:
		return wp, nil
	case err := <-s.errc:
		return WinnerPicked{}, fmt.Errorf("WinnerPicked subscription: %w", err)
	case <-s.quit:
		return WinnerPicked{}, ErrUnsubscribed
	case <-ctx.Done():
		return WinnerPicked{}, ctx.Err()
	}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { close(s.quit) })
}
