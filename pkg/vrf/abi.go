// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vrf

import "github.com/rafflekit/rafflekit/pkg/transaction"

// CoordinatorMockABI is the interface of VRFCoordinatorV2Mock.
var CoordinatorMockABI = transaction.ParseABIUnchecked(CoordinatorMockABIJSON)

const CoordinatorMockABIJSON = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"_baseFee","type":"uint96"},
		{"name":"_gasPriceLink","type":"uint96"}]},
	{"type":"error","name":"InsufficientBalance","inputs":[]},
	{"type":"error","name":"InvalidConsumer","inputs":[]},
	{"type":"error","name":"InvalidRandomWords","inputs":[]},
	{"type":"error","name":"InvalidSubscription","inputs":[]},
	{"type":"error","name":"MustBeSubOwner","inputs":[{"name":"owner","type":"address"}]},
	{"type":"error","name":"TooManyConsumers","inputs":[]},
	{"type":"event","name":"ConsumerAdded","anonymous":false,"inputs":[
		{"indexed":true,"name":"subId","type":"uint64"},
		{"indexed":false,"name":"consumer","type":"address"}]},
	{"type":"event","name":"RandomWordsFulfilled","anonymous":false,"inputs":[
		{"indexed":true,"name":"requestId","type":"uint256"},
		{"indexed":false,"name":"outputSeed","type":"uint256"},
		{"indexed":false,"name":"payment","type":"uint96"},
		{"indexed":false,"name":"success","type":"bool"}]},
	{"type":"event","name":"RandomWordsRequested","anonymous":false,"inputs":[
		{"indexed":true,"name":"keyHash","type":"bytes32"},
		{"indexed":false,"name":"requestId","type":"uint256"},
		{"indexed":false,"name":"preSeed","type":"uint256"},
		{"indexed":true,"name":"subId","type":"uint64"},
		{"indexed":false,"name":"minimumRequestConfirmations","type":"uint16"},
		{"indexed":false,"name":"callbackGasLimit","type":"uint32"},
		{"indexed":false,"name":"numWords","type":"uint32"},
		{"indexed":true,"name":"sender","type":"address"}]},
	{"type":"event","name":"SubscriptionCreated","anonymous":false,"inputs":[
		{"indexed":true,"name":"subId","type":"uint64"},
		{"indexed":false,"name":"owner","type":"address"}]},
	{"type":"event","name":"SubscriptionFunded","anonymous":false,"inputs":[
		{"indexed":true,"name":"subId","type":"uint64"},
		{"indexed":false,"name":"oldBalance","type":"uint256"},
		{"indexed":false,"name":"newBalance","type":"uint256"}]},
	{"type":"function","name":"BASE_FEE","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint96"}]},
	{"type":"function","name":"GAS_PRICE_LINK","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint96"}]},
	{"type":"function","name":"addConsumer","stateMutability":"nonpayable","inputs":[
		{"name":"_subId","type":"uint64"},
		{"name":"_consumer","type":"address"}],"outputs":[]},
	{"type":"function","name":"createSubscription","stateMutability":"nonpayable","inputs":[],"outputs":[{"name":"_subId","type":"uint64"}]},
	{"type":"function","name":"fulfillRandomWords","stateMutability":"nonpayable","inputs":[
		{"name":"_requestId","type":"uint256"},
		{"name":"_consumer","type":"address"}],"outputs":[]},
	{"type":"function","name":"fulfillRandomWordsWithOverride","stateMutability":"nonpayable","inputs":[
		{"name":"_requestId","type":"uint256"},
		{"name":"_consumer","type":"address"},
		{"name":"_words","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"fundSubscription","stateMutability":"nonpayable","inputs":[
		{"name":"_subId","type":"uint64"},
		{"name":"_amount","type":"uint96"}],"outputs":[]},
	{"type":"function","name":"getSubscription","stateMutability":"view","inputs":[{"name":"_subId","type":"uint64"}],"outputs":[
		{"name":"balance","type":"uint96"},
		{"name":"reqCount","type":"uint64"},
		{"name":"owner","type":"address"},
		{"name":"consumers","type":"address[]"}]},
	{"type":"function","name":"removeConsumer","stateMutability":"nonpayable","inputs":[
		{"name":"_subId","type":"uint64"},
		{"name":"_consumer","type":"address"}],"outputs":[]},
	{"type":"function","name":"requestRandomWords","stateMutability":"nonpayable","inputs":[
		{"name":"_keyHash","type":"bytes32"},
		{"name":"_subId","type":"uint64"},
		{"name":"_minimumRequestConfirmations","type":"uint16"},
		{"name":"_callbackGasLimit","type":"uint32"},
		{"name":"_numWords","type":"uint32"}],"outputs":[{"name":"","type":"uint256"}]}
]`
