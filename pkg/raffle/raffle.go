// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package raffle is the client of the VRF driven Raffle contract.
package raffle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/sctx"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

// State is the raffle state as stored by the contract.
type State uint8

const (
	StateOpen State = iota
	StateCalculating
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateCalculating:
		return "CALCULATING"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Interface is a handle to a deployed raffle, bound to the account that
// sends its transactions.
type Interface interface {
	Address() common.Address
	// EnterRaffle pays value to enter the current round.
	EnterRaffle(ctx context.Context, value *big.Int) (*transaction.Handle, error)
	// CheckUpkeep reports whether performUpkeep would succeed now.
	CheckUpkeep(ctx context.Context) (bool, error)
	// PerformUpkeep closes the round and requests randomness.
	PerformUpkeep(ctx context.Context) (*transaction.Handle, error)
	RaffleState(ctx context.Context) (State, error)
	EntranceFee(ctx context.Context) (*big.Int, error)
	Interval(ctx context.Context) (time.Duration, error)
	NumberOfPlayers(ctx context.Context) (uint64, error)
	Player(ctx context.Context, index uint64) (common.Address, error)
	RecentWinner(ctx context.Context) (common.Address, error)
	LatestTimestamp(ctx context.Context) (time.Time, error)
	// SubscribeWinnerPicked returns a subscription that resolves with the
	// first WinnerPicked event emitted after the call.
	SubscribeWinnerPicked(ctx context.Context) (Subscription, error)
}

// Players reads the full player registry in entry order.
func Players(ctx context.Context, r Interface) ([]common.Address, error) {
	n, err := r.NumberOfPlayers(ctx)
	if err != nil {
		return nil, err
	}
	players := make([]common.Address, 0, n)
	for i := uint64(0); i < n; i++ {
		p, err := r.Player(ctx, i)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, nil
}

// Service talks to a deployed raffle through a transaction service.
type Service struct {
	backend      transaction.Backend
	txService    transaction.Service
	address      common.Address
	pollInterval time.Duration
}

var _ Interface = (*Service)(nil)

func New(backend transaction.Backend, txService transaction.Service, address common.Address, pollInterval time.Duration) *Service {
	return &Service{
		backend:      backend,
		txService:    txService,
		address:      address,
		pollInterval: pollInterval,
	}
}

func (s *Service) Address() common.Address {
	return s.address
}

func (s *Service) EnterRaffle(ctx context.Context, value *big.Int) (*transaction.Handle, error) {
	callData, err := ABI.Pack("enterRaffle")
	if err != nil {
		return nil, err
	}
	h, err := s.send(ctx, &transaction.TxRequest{
		To:          &s.address,
		Data:        callData,
		GasPrice:    sctx.GetGasPrice(ctx),
		GasLimit:    sctx.GetGasLimit(ctx),
		Value:       value,
		Description: "enter raffle",
	})
	if err != nil {
		return nil, fmt.Errorf("enter raffle: %w", err)
	}
	return h, nil
}

func (s *Service) CheckUpkeep(ctx context.Context) (bool, error) {
	results, err := s.call(ctx, "checkUpkeep", []byte{})
	if err != nil {
		return false, fmt.Errorf("check upkeep: %w", err)
	}
	return results[0].(bool), nil
}

func (s *Service) PerformUpkeep(ctx context.Context) (*transaction.Handle, error) {
	callData, err := ABI.Pack("performUpkeep", []byte{})
	if err != nil {
		return nil, err
	}
	h, err := s.send(ctx, &transaction.TxRequest{
		To:          &s.address,
		Data:        callData,
		GasPrice:    sctx.GetGasPrice(ctx),
		GasLimit:    sctx.GetGasLimit(ctx),
		Value:       big.NewInt(0),
		Description: "perform upkeep",
	})
	if err != nil {
		return nil, fmt.Errorf("perform upkeep: %w", err)
	}
	return h, nil
}

func (s *Service) RaffleState(ctx context.Context) (State, error) {
	results, err := s.call(ctx, "getRaffleState")
	if err != nil {
		return 0, fmt.Errorf("raffle state: %w", err)
	}
	return State(results[0].(uint8)), nil
}

func (s *Service) EntranceFee(ctx context.Context) (*big.Int, error) {
	v, err := s.callBigInt(ctx, "getEntranceFee")
	if err != nil {
		return nil, fmt.Errorf("entrance fee: %w", err)
	}
	return v, nil
}

func (s *Service) Interval(ctx context.Context) (time.Duration, error) {
	v, err := s.callBigInt(ctx, "getInterval")
	if err != nil {
		return 0, fmt.Errorf("interval: %w", err)
	}
	return time.Duration(v.Int64()) * time.Second, nil
}

func (s *Service) NumberOfPlayers(ctx context.Context) (uint64, error) {
	v, err := s.callBigInt(ctx, "getNumberOfPlayers")
	if err != nil {
		return 0, fmt.Errorf("number of players: %w", err)
	}
	return v.Uint64(), nil
}

func (s *Service) Player(ctx context.Context, index uint64) (common.Address, error) {
	results, err := s.call(ctx, "getPlayer", new(big.Int).SetUint64(index))
	if err != nil {
		return common.Address{}, fmt.Errorf("player %d: %w", index, err)
	}
	return results[0].(common.Address), nil
}

func (s *Service) RecentWinner(ctx context.Context) (common.Address, error) {
	results, err := s.call(ctx, "getRecentWinner")
	if err != nil {
		return common.Address{}, fmt.Errorf("recent winner: %w", err)
	}
	return results[0].(common.Address), nil
}

func (s *Service) LatestTimestamp(ctx context.Context) (time.Time, error) {
	v, err := s.callBigInt(ctx, "getLatestTimestamp")
	if err != nil {
		return time.Time{}, fmt.Errorf("latest timestamp: %w", err)
	}
	return time.Unix(v.Int64(), 0), nil
}

func (s *Service) SubscribeWinnerPicked(ctx context.Context) (Subscription, error) {
	return subscribeWinnerPicked(ctx, s.backend, s.address, s.pollInterval)
}

func (s *Service) send(ctx context.Context, request *transaction.TxRequest) (*transaction.Handle, error) {
	txHash, err := s.txService.Send(ctx, request)
	if err != nil {
		return nil, mapRevert(err)
	}
	return transaction.NewHandle(txHash, s.txService), nil
}

func (s *Service) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	callData, err := ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	result, err := s.txService.Call(ctx, &transaction.TxRequest{
		To:   &s.address,
		Data: callData,
	})
	if err != nil {
		return nil, mapRevert(err)
	}
	return ABI.Unpack(method, result)
}

func (s *Service) callBigInt(ctx context.Context, method string) (*big.Int, error) {
	results, err := s.call(ctx, method)
	if err != nil {
		return nil, err
	}
	return results[0].(*big.Int), nil
}
