// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raffle

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

var (
	raffleEnterEvent           = ABI.Events["RaffleEnter"]
	requestedRaffleWinnerEvent = ABI.Events["RequestedRaffleWinner"]
	winnerPickedEvent          = ABI.Events["WinnerPicked"]
)

type raffleEnter struct {
	Player common.Address
}

type requestedRaffleWinner struct {
	RequestId *big.Int
}

type winnerPicked struct {
	Winner common.Address
}

// WinnerPicked is a decoded WinnerPicked event.
type WinnerPicked struct {
	Winner      common.Address
	TxHash      common.Hash
	BlockNumber uint64
}

// FindRaffleEnter returns the player of the RaffleEnter event in the receipt.
func FindRaffleEnter(receipt *types.Receipt, address common.Address) (common.Address, error) {
	var e raffleEnter
	if err := transaction.FindSingleEvent(&ABI, receipt, address, raffleEnterEvent, &e); err != nil {
		return common.Address{}, fmt.Errorf("RaffleEnter: %w", err)
	}
	return e.Player, nil
}

// FindRequestedRaffleWinner returns the request id of the
// RequestedRaffleWinner event in the receipt. The receipt must hold
// exactly one such event.
func FindRequestedRaffleWinner(receipt *types.Receipt, address common.Address) (*big.Int, error) {
	if n := transaction.CountEvents(receipt, address, requestedRaffleWinnerEvent); n > 1 {
		return nil, fmt.Errorf("RequestedRaffleWinner: %d events in one transaction", n)
	}
	var e requestedRaffleWinner
	if err := transaction.FindSingleEvent(&ABI, receipt, address, requestedRaffleWinnerEvent, &e); err != nil {
		return nil, fmt.Errorf("RequestedRaffleWinner: %w", err)
	}
	return e.RequestId, nil
}

// FindWinnerPicked returns the winner of the WinnerPicked event in the
// receipt.
func FindWinnerPicked(receipt *types.Receipt, address common.Address) (common.Address, error) {
	var e winnerPicked
	if err := transaction.FindSingleEvent(&ABI, receipt, address, winnerPickedEvent, &e); err != nil {
		return common.Address{}, fmt.Errorf("WinnerPicked: %w", err)
	}
	return e.Winner, nil
}

func parseWinnerPicked(l types.Log) (WinnerPicked, error) {
	var e winnerPicked
	if err := transaction.ParseEvent(&ABI, winnerPickedEvent.Name, &e, l); err != nil {
		return WinnerPicked{}, err
	}
	return WinnerPicked{Winner: e.Winner, TxHash: l.TxHash, BlockNumber: l.BlockNumber}, nil
}

// RaffleEnterLog encodes a RaffleEnter log as the contract emits it.
func RaffleEnterLog(address, player common.Address) *types.Log {
	return &types.Log{
		Address: address,
		Topics:  []common.Hash{raffleEnterEvent.ID, common.BytesToHash(player.Bytes())},
	}
}

// RequestedRaffleWinnerLog encodes a RequestedRaffleWinner log.
func RequestedRaffleWinnerLog(address common.Address, requestID *big.Int) *types.Log {
	return &types.Log{
		Address: address,
		Topics:  []common.Hash{requestedRaffleWinnerEvent.ID, common.BigToHash(requestID)},
	}
}

// WinnerPickedLog encodes a WinnerPicked log.
func WinnerPickedLog(address, winner common.Address) *types.Log {
	return &types.Log{
		Address: address,
		Topics:  []common.Hash{winnerPickedEvent.ID, common.BytesToHash(winner.Bytes())},
	}
}
