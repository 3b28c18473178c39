// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package raffle

import "github.com/rafflekit/rafflekit/pkg/transaction"

// ABI of the Raffle contract.
var ABI = transaction.ParseABIUnchecked(ABIJSON)

// ABIJSON is the Raffle contract interface as exported to the front end.
const ABIJSON = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"vrfCoordinatorV2","type":"address"},
		{"name":"entranceFee","type":"uint256"},
		{"name":"gasLane","type":"bytes32"},
		{"name":"subscriptionId","type":"uint64"},
		{"name":"callbackGasLimit","type":"uint32"},
		{"name":"interval","type":"uint256"}]},
	{"type":"error","name":"OnlyCoordinatorCanFulfill","inputs":[{"name":"have","type":"address"},{"name":"want","type":"address"}]},
	{"type":"error","name":"Raffle__InsufficientFee","inputs":[]},
	{"type":"error","name":"Raffle__NotOpen","inputs":[]},
	{"type":"error","name":"Raffle__TransferFailed","inputs":[]},
	{"type":"error","name":"Raffle__UpkeepNotNeeded","inputs":[
		{"name":"currentBalance","type":"uint256"},
		{"name":"numPlayers","type":"uint256"},
		{"name":"raffleState","type":"uint256"}]},
	{"type":"event","name":"RaffleEnter","anonymous":false,"inputs":[{"indexed":true,"name":"player","type":"address"}]},
	{"type":"event","name":"RequestedRaffleWinner","anonymous":false,"inputs":[{"indexed":true,"name":"requestId","type":"uint256"}]},
	{"type":"event","name":"WinnerPicked","anonymous":false,"inputs":[{"indexed":true,"name":"winner","type":"address"}]},
	{"type":"function","name":"checkUpkeep","stateMutability":"view","inputs":[{"name":"","type":"bytes"}],"outputs":[{"name":"upkeepNeeded","type":"bool"},{"name":"","type":"bytes"}]},
	{"type":"function","name":"enterRaffle","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"getEntranceFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getInterval","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getLatestTimestamp","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getNumWords","stateMutability":"pure","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getNumberOfPlayers","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getPlayer","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getRaffleState","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"getRecentWinner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getRequestConfirmations","stateMutability":"pure","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"performUpkeep","stateMutability":"nonpayable","inputs":[{"name":"","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"rawFulfillRandomWords","stateMutability":"nonpayable","inputs":[{"name":"requestId","type":"uint256"},{"name":"randomWords","type":"uint256[]"}],"outputs":[]}
]`
