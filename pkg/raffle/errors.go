// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raffle

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/rafflekit/rafflekit/pkg/transaction"
)

var (
	ErrInsufficientFee = errors.New("raffle: insufficient entrance fee")
	ErrNotOpen         = errors.New("raffle: not open")
	ErrUpkeepNotNeeded = errors.New("raffle: upkeep not needed")
	ErrTransferFailed  = errors.New("raffle: transfer to winner failed")
	ErrNotCoordinator  = errors.New("raffle: only the coordinator can fulfill")
)

// UpkeepNotNeededError carries the contract state reported when upkeep was
// performed while not eligible.
type UpkeepNotNeededError struct {
	Balance *big.Int
	Players uint64
	State   State
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("%v (balance %v, players %d, state %d)", ErrUpkeepNotNeeded, e.Balance, e.Players, e.State)
}

func (e *UpkeepNotNeededError) Is(target error) bool {
	return target == ErrUpkeepNotNeeded
}

// mapRevert translates a reverted call into the package errors. Errors that
// are not reverts are returned unchanged.
func mapRevert(err error) error {
	re, ok := transaction.DecodeRevert(&ABI, err)
	if !ok {
		return err
	}
	switch re.Name {
	case "Raffle__InsufficientFee":
		return fmt.Errorf("%w: %v", ErrInsufficientFee, err)
	case "Raffle__NotOpen":
		return fmt.Errorf("%w: %v", ErrNotOpen, err)
	case "Raffle__TransferFailed":
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	case "OnlyCoordinatorCanFulfill":
		return fmt.Errorf("%w: %v", ErrNotCoordinator, err)
	case "Raffle__UpkeepNotNeeded":
		e := &UpkeepNotNeededError{Balance: new(big.Int)}
		if len(re.Args) == 3 {
			if v, ok := re.Args[0].(*big.Int); ok {
				e.Balance = v
			}
			if v, ok := re.Args[1].(*big.Int); ok {
				e.Players = v.Uint64()
			}
			if v, ok := re.Args[2].(*big.Int); ok {
				e.State = State(v.Uint64())
			}
		}
		return e
	}
	return err
}
