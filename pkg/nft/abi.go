// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nft

import "github.com/rafflekit/rafflekit/pkg/transaction"

// ABI of the RefundableERC721 contract.
var ABI = transaction.ParseABIUnchecked(ABIJSON)

const ABIJSON = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"name_","type":"string"},
		{"name":"symbol_","type":"string"},
		{"name":"maxSupply_","type":"uint256"}]},
	{"type":"error","name":"Ownable__NotOwner","inputs":[]},
	{"type":"error","name":"RefundableERC721__AlreadyRefunded","inputs":[]},
	{"type":"error","name":"RefundableERC721__ExceedMaxSupply","inputs":[]},
	{"type":"error","name":"RefundableERC721__InsufficientFunds","inputs":[]},
	{"type":"error","name":"RefundableERC721__InvalidMaxSupply","inputs":[]},
	{"type":"error","name":"RefundableERC721__NotTokenOwner","inputs":[]},
	{"type":"error","name":"RefundableERC721__PastRefundPeriod","inputs":[]},
	{"type":"error","name":"RefundableERC721__StillInRefundPeriod","inputs":[]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"indexed":true,"name":"from","type":"address"},
		{"indexed":true,"name":"to","type":"address"},
		{"indexed":true,"name":"tokenId","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getMaxSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getMintPrice","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getRefund","stateMutability":"nonpayable","inputs":[{"name":"tokenIds","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"isRefundPeriodActive","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"isTokenRefunded","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"mint","stateMutability":"payable","inputs":[{"name":"quantity","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"setMaxSupply","stateMutability":"nonpayable","inputs":[{"name":"maxSupply_","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"withdrawFunds","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`
