// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mock provides in-memory Raffle and VRFCoordinatorV2Mock contracts
// that execute on a devchain mock.Chain.
package mock

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	devchainMock "github.com/rafflekit/rafflekit/pkg/devchain/mock"
	"github.com/rafflekit/rafflekit/pkg/raffle"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

// Gas used by the raffle double's transactions.
const (
	EnterGas         = 60_000
	PerformUpkeepGas = 120_000
)

const (
	numWords              = 1
	requestConfirmations  = 3
	winnerPickedEventName = "WinnerPicked"
)

var winnerPickedTopic = raffle.ABI.Events[winnerPickedEventName].ID

// Config holds the raffle constructor arguments.
type Config struct {
	EntranceFee      *big.Int
	Interval         time.Duration
	KeyHash          common.Hash
	SubscriptionID   uint64
	CallbackGasLimit uint32
}

// Raffle is an in-memory Raffle contract. Its state is guarded by the chain
// lock.
type Raffle struct {
	chain       *devchainMock.Chain
	coordinator *Coordinator
	address     common.Address
	cfg         Config

	state         raffle.State
	players       []common.Address
	lastTimestamp time.Time
	recentWinner  common.Address
}

// New deploys a raffle at address and registers it as a consumer contract
// of the coordinator.
func New(chain *devchainMock.Chain, coordinator *Coordinator, address common.Address, cfg Config) *Raffle {
	r := &Raffle{
		chain:       chain,
		coordinator: coordinator,
		address:     address,
		cfg:         cfg,
	}
	chain.View(func(now time.Time) {
		r.lastTimestamp = now
	})
	coordinator.register(address, r)
	return r
}

func (r *Raffle) Address() common.Address {
	return r.address
}

// Client returns the raffle as seen by account from.
func (r *Raffle) Client(from common.Address) raffle.Interface {
	return &client{r: r, from: from}
}

func (r *Raffle) eligibleLocked(now time.Time) bool {
	return now.Sub(r.lastTimestamp) >= r.cfg.Interval &&
		len(r.players) > 0 &&
		r.chain.BalanceLocked(r.address).Sign() > 0 &&
		r.state == raffle.StateOpen
}

func (r *Raffle) rawFulfillRandomWordsLocked(now time.Time, requestID *big.Int, words []*big.Int) ([]*types.Log, error) {
	if len(words) == 0 || len(r.players) == 0 {
		return nil, errors.New("no random words or players")
	}
	n := big.NewInt(int64(len(r.players)))
	winner := r.players[new(big.Int).Mod(words[0], n).Int64()]
	if err := r.chain.Transfer(r.address, winner, r.chain.BalanceLocked(r.address)); err != nil {
		return nil, fmt.Errorf("%w: %v", raffle.ErrTransferFailed, err)
	}
	r.recentWinner = winner
	r.players = nil
	r.state = raffle.StateOpen
	r.lastTimestamp = now
	return []*types.Log{raffle.WinnerPickedLog(r.address, winner)}, nil
}

type client struct {
	r    *Raffle
	from common.Address
}

func (c *client) Address() common.Address {
	return c.r.address
}

func (c *client) EnterRaffle(ctx context.Context, value *big.Int) (*transaction.Handle, error) {
	r := c.r
	if value == nil {
		value = new(big.Int)
	}
	hash, err := r.chain.Send(devchainMock.Tx{
		From:    c.from,
		To:      r.address,
		Value:   value,
		GasUsed: EnterGas,
		Execute: func(now time.Time) ([]*types.Log, error) {
			if value.Cmp(r.cfg.EntranceFee) < 0 {
				return nil, raffle.ErrInsufficientFee
			}
			if r.state != raffle.StateOpen {
				return nil, raffle.ErrNotOpen
			}
			r.players = append(r.players, c.from)
			return []*types.Log{raffle.RaffleEnterLog(r.address, c.from)}, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("enter raffle: %w", err)
	}
	return transaction.NewHandle(hash, r.chain), nil
}

func (c *client) CheckUpkeep(ctx context.Context) (needed bool, err error) {
	c.r.chain.View(func(now time.Time) {
		needed = c.r.eligibleLocked(now)
	})
	return needed, nil
}

func (c *client) PerformUpkeep(ctx context.Context) (*transaction.Handle, error) {
	r := c.r
	hash, err := r.chain.Send(devchainMock.Tx{
		From:    c.from,
		To:      r.address,
		GasUsed: PerformUpkeepGas,
		Execute: func(now time.Time) ([]*types.Log, error) {
			if !r.eligibleLocked(now) {
				return nil, &raffle.UpkeepNotNeededError{
					Balance: r.chain.BalanceLocked(r.address),
					Players: uint64(len(r.players)),
					State:   r.state,
				}
			}
			requestID, requested, err := r.coordinator.requestRandomWordsLocked(
				r.address, r.cfg.KeyHash, r.cfg.SubscriptionID, requestConfirmations, r.cfg.CallbackGasLimit, numWords,
			)
			if err != nil {
				return nil, err
			}
			r.state = raffle.StateCalculating
			return []*types.Log{requested, raffle.RequestedRaffleWinnerLog(r.address, requestID)}, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("perform upkeep: %w", err)
	}
	return transaction.NewHandle(hash, r.chain), nil
}

func (c *client) RaffleState(ctx context.Context) (s raffle.State, err error) {
	c.r.chain.View(func(time.Time) {
		s = c.r.state
	})
	return s, nil
}

func (c *client) EntranceFee(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.r.cfg.EntranceFee), nil
}

func (c *client) Interval(ctx context.Context) (time.Duration, error) {
	return c.r.cfg.Interval, nil
}

func (c *client) NumberOfPlayers(ctx context.Context) (n uint64, err error) {
	c.r.chain.View(func(time.Time) {
		n = uint64(len(c.r.players))
	})
	return n, nil
}

func (c *client) Player(ctx context.Context, index uint64) (p common.Address, err error) {
	c.r.chain.View(func(time.Time) {
		if index >= uint64(len(c.r.players)) {
			err = fmt.Errorf("player %d: %w", index, &transaction.RevertError{Reason: "array index out of bounds"})
			return
		}
		p = c.r.players[index]
	})
	return p, err
}

func (c *client) RecentWinner(ctx context.Context) (w common.Address, err error) {
	c.r.chain.View(func(time.Time) {
		w = c.r.recentWinner
	})
	return w, nil
}

func (c *client) LatestTimestamp(ctx context.Context) (ts time.Time, err error) {
	c.r.chain.View(func(time.Time) {
		ts = c.r.lastTimestamp
	})
	return ts, nil
}

func (c *client) SubscribeWinnerPicked(ctx context.Context) (raffle.Subscription, error) {
	s := &subscription{
		result: make(chan raffle.WinnerPicked, 1),
		quit:   make(chan struct{}),
	}
	address := c.r.address
	s.cancel = c.r.chain.Watch(func(l types.Log) bool {
		if l.Address != address || len(l.Topics) == 0 || l.Topics[0] != winnerPickedTopic {
			return false
		}
		var e struct {
			Winner common.Address
		}
		if err := transaction.ParseEvent(&raffle.ABI, winnerPickedEventName, &e, l); err != nil {
			return false
		}
		s.result <- raffle.WinnerPicked{Winner: e.Winner, TxHash: l.TxHash, BlockNumber: l.BlockNumber}
		return true
	})
	return s, nil
}

type subscription struct {
	result chan raffle.WinnerPicked
	quit   chan struct{}
	cancel func()
	once   sync.Once
}

func (s *subscription) Wait(ctx context.Context) (raffle.WinnerPicked, error) {
	select {
	case wp := <-s.result:
		return wp, nil
	case <-s.quit:
		return raffle.WinnerPicked{}, raffle.ErrUnsubscribed
	case <-ctx.Done():
		return raffle.WinnerPicked{}, ctx.Err()
	}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		close(s.quit)
	})
}
