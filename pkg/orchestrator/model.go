// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/raffle"
)

// Model is the expected state of a raffle contract. It has no clock of its
// own: every time dependent transition takes the block time it happened at.
type Model struct {
	EntranceFee   *big.Int
	Interval      time.Duration
	State         raffle.State
	Players       []common.Address
	Balance       *big.Int
	LastTimestamp time.Time
	// PendingRequest is the randomness request of the current round, nil
	// while the raffle is open.
	PendingRequest *big.Int
	RecentWinner   common.Address
}

// NewModel returns the model of a freshly deployed raffle.
func NewModel(entranceFee *big.Int, interval time.Duration, deployedAt time.Time) *Model {
	return &Model{
		EntranceFee:   new(big.Int).Set(entranceFee),
		Interval:      interval,
		State:         raffle.StateOpen,
		Balance:       new(big.Int),
		LastTimestamp: deployedAt,
	}
}

// Clone returns a deep copy of m.
func (m *Model) Clone() *Model {
	c := *m
	c.EntranceFee = new(big.Int).Set(m.EntranceFee)
	c.Balance = new(big.Int).Set(m.Balance)
	c.Players = append([]common.Address(nil), m.Players...)
	if m.PendingRequest != nil {
		c.PendingRequest = new(big.Int).Set(m.PendingRequest)
	}
	return &c
}

// Enter records an entry of amount by player. The fee is checked before
// the state.
func (m *Model) Enter(player common.Address, amount *big.Int) error {
	if amount == nil || amount.Cmp(m.EntranceFee) < 0 {
		return raffle.ErrInsufficientFee
	}
	if m.State != raffle.StateOpen {
		return raffle.ErrNotOpen
	}
	m.Players = append(m.Players, player)
	m.Balance.Add(m.Balance, amount)
	return nil
}

// Eligible reports whether upkeep is needed at block time now.
func (m *Model) Eligible(now time.Time) bool {
	return now.Sub(m.LastTimestamp) >= m.Interval &&
		len(m.Players) > 0 &&
		m.Balance.Sign() > 0 &&
		m.State == raffle.StateOpen
}

// PerformUpkeep moves the raffle to CALCULATING with requestID pending. It
// returns the error the contract reverts with when upkeep is not needed.
func (m *Model) PerformUpkeep(now time.Time, requestID *big.Int) error {
	if !m.Eligible(now) {
		return m.upkeepNotNeeded()
	}
	m.State = raffle.StateCalculating
	m.PendingRequest = new(big.Int).Set(requestID)
	return nil
}

func (m *Model) upkeepNotNeeded() *raffle.UpkeepNotNeededError {
	return &raffle.UpkeepNotNeededError{
		Balance: new(big.Int).Set(m.Balance),
		Players: uint64(len(m.Players)),
		State:   m.State,
	}
}

// Winner returns the entrant picked by word.
func (m *Model) Winner(word *big.Int) (common.Address, error) {
	if len(m.Players) == 0 {
		return common.Address{}, ErrNoPlayers
	}
	i := new(big.Int).Mod(word, big.NewInt(int64(len(m.Players))))
	return m.Players[i.Int64()], nil
}

// Fulfill completes the pending request with word at block time now. It
// returns the winner and the pot paid out to it.
func (m *Model) Fulfill(requestID, word *big.Int, now time.Time) (common.Address, *big.Int, error) {
	if m.PendingRequest == nil || requestID == nil || m.PendingRequest.Cmp(requestID) != 0 {
		return common.Address{}, nil, fmt.Errorf("request %v: %w", requestID, ErrUnknownRequest)
	}
	winner, err := m.Winner(word)
	if err != nil {
		return common.Address{}, nil, err
	}
	pot := m.Balance
	m.Balance = new(big.Int)
	m.Players = nil
	m.State = raffle.StateOpen
	m.LastTimestamp = now
	m.PendingRequest = nil
	m.RecentWinner = winner
	return winner, pot, nil
}
