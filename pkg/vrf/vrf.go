// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vrf drives the VRFCoordinatorV2Mock contract that stands in for
// the Chainlink randomness oracle on development chains.
package vrf

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rafflekit/rafflekit/pkg/sctx"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

var (
	// BaseFee is the flat LINK premium charged per fulfillment (0.25 LINK).
	BaseFee = big.NewInt(250_000_000_000_000_000)
	// GasPriceLink is the LINK price of one unit of callback gas.
	GasPriceLink = big.NewInt(1_000_000_000)
	// FundAmount is what a new development subscription is funded with (10 LINK).
	FundAmount = new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000))
)

const defaultGasLimit = 500_000

var (
	ErrNonexistentRequest  = errors.New("vrf: nonexistent request")
	ErrInvalidSubscription = errors.New("vrf: invalid subscription")
	ErrInsufficientBalance = errors.New("vrf: insufficient subscription balance")
	ErrMustBeSubOwner      = errors.New("vrf: caller is not the subscription owner")
	ErrInvalidConsumer     = errors.New("vrf: invalid consumer")
)

var (
	subscriptionCreatedEvent  = CoordinatorMockABI.Events["SubscriptionCreated"]
	randomWordsRequestedEvent = CoordinatorMockABI.Events["RandomWordsRequested"]
	randomWordsFulfilledEvent = CoordinatorMockABI.Events["RandomWordsFulfilled"]
)

// Subscription is the coordinator's view of a subscription.
type Subscription struct {
	Balance   *big.Int
	ReqCount  uint64
	Owner     common.Address
	Consumers []common.Address
}

// Fulfillment is a decoded RandomWordsFulfilled event.
type Fulfillment struct {
	RequestId  *big.Int
	OutputSeed *big.Int
	Payment    *big.Int
	Success    bool
}

// Interface is the randomness oracle as seen by its subscription owner.
type Interface interface {
	Address() common.Address
	// CreateSubscription creates a subscription owned by the sender and
	// returns its id.
	CreateSubscription(ctx context.Context) (uint64, error)
	FundSubscription(ctx context.Context, subID uint64, amount *big.Int) error
	AddConsumer(ctx context.Context, subID uint64, consumer common.Address) error
	GetSubscription(ctx context.Context, subID uint64) (Subscription, error)
	// FulfillRandomWords delivers the default random words of a pending
	// request to its consumer.
	FulfillRandomWords(ctx context.Context, requestID *big.Int, consumer common.Address) (*transaction.Handle, error)
	// FulfillRandomWordsWithOverride delivers the given words instead of the
	// default ones.
	FulfillRandomWordsWithOverride(ctx context.Context, requestID *big.Int, consumer common.Address, words []*big.Int) (*transaction.Handle, error)
}

// DefaultWords returns the words the coordinator mock derives for a
// request: keccak256(abi.encode(requestId, i)).
func DefaultWords(requestID *big.Int, n int) []*big.Int {
	words := make([]*big.Int, n)
	for i := range words {
		buf := make([]byte, 64)
		requestID.FillBytes(buf[:32])
		big.NewInt(int64(i)).FillBytes(buf[32:])
		words[i] = new(big.Int).SetBytes(crypto.Keccak256(buf))
	}
	return words
}

// Payment returns the LINK charged for a fulfillment that used gasUsed
// callback gas.
func Payment(gasUsed uint64) *big.Int {
	p := new(big.Int).Mul(GasPriceLink, new(big.Int).SetUint64(gasUsed))
	return p.Add(p, BaseFee)
}

type service struct {
	backend   transaction.Backend
	txService transaction.Service
	address   common.Address
}

func New(backend transaction.Backend, txService transaction.Service, address common.Address) Interface {
	return &service{
		backend:   backend,
		txService: txService,
		address:   address,
	}
}

func (s *service) Address() common.Address {
	return s.address
}

func (s *service) CreateSubscription(ctx context.Context) (uint64, error) {
	receipt, err := s.sendAndWait(ctx, "create subscription", "createSubscription")
	if err != nil {
		return 0, err
	}
	var e struct {
		SubId uint64
		Owner common.Address
	}
	if err := transaction.FindSingleEvent(&CoordinatorMockABI, receipt, s.address, subscriptionCreatedEvent, &e); err != nil {
		return 0, fmt.Errorf("SubscriptionCreated: %w", err)
	}
	return e.SubId, nil
}

func (s *service) FundSubscription(ctx context.Context, subID uint64, amount *big.Int) error {
	_, err := s.sendAndWait(ctx, "fund subscription", "fundSubscription", subID, amount)
	return err
}

func (s *service) AddConsumer(ctx context.Context, subID uint64, consumer common.Address) error {
	_, err := s.sendAndWait(ctx, "add consumer", "addConsumer", subID, consumer)
	return err
}

func (s *service) GetSubscription(ctx context.Context, subID uint64) (Subscription, error) {
	callData, err := CoordinatorMockABI.Pack("getSubscription", subID)
	if err != nil {
		return Subscription{}, err
	}
	result, err := s.txService.Call(ctx, &transaction.TxRequest{
		To:   &s.address,
		Data: callData,
	})
	if err != nil {
		return Subscription{}, fmt.Errorf("get subscription %d: %w", subID, mapRevert(err))
	}
	results, err := CoordinatorMockABI.Unpack("getSubscription", result)
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{
		Balance:   results[0].(*big.Int),
		ReqCount:  results[1].(uint64),
		Owner:     results[2].(common.Address),
		Consumers: results[3].([]common.Address),
	}, nil
}

func (s *service) FulfillRandomWords(ctx context.Context, requestID *big.Int, consumer common.Address) (*transaction.Handle, error) {
	return s.send(ctx, "fulfill random words", "fulfillRandomWords", requestID, consumer)
}

func (s *service) FulfillRandomWordsWithOverride(ctx context.Context, requestID *big.Int, consumer common.Address, words []*big.Int) (*transaction.Handle, error) {
	return s.send(ctx, "fulfill random words", "fulfillRandomWordsWithOverride", requestID, consumer, words)
}

func (s *service) send(ctx context.Context, description, method string, args ...interface{}) (*transaction.Handle, error) {
	callData, err := CoordinatorMockABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	txHash, err := s.txService.Send(ctx, &transaction.TxRequest{
		To:          &s.address,
		Data:        callData,
		GasPrice:    sctx.GetGasPrice(ctx),
		GasLimit:    sctx.GetGasLimitWithDefault(ctx, defaultGasLimit),
		Value:       big.NewInt(0),
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", description, mapRevert(err))
	}
	return transaction.NewHandle(txHash, s.txService), nil
}

func (s *service) sendAndWait(ctx context.Context, description, method string, args ...interface{}) (*types.Receipt, error) {
	h, err := s.send(ctx, description, method, args...)
	if err != nil {
		return nil, err
	}
	receipt, err := h.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", description, err)
	}
	return receipt, nil
}

// FindRandomWordsFulfilled returns the RandomWordsFulfilled event of the
// receipt.
func FindRandomWordsFulfilled(receipt *types.Receipt, coordinator common.Address) (Fulfillment, error) {
	var f Fulfillment
	if err := transaction.FindSingleEvent(&CoordinatorMockABI, receipt, coordinator, randomWordsFulfilledEvent, &f); err != nil {
		return Fulfillment{}, fmt.Errorf("RandomWordsFulfilled: %w", err)
	}
	return f, nil
}

// RandomWordsFulfilledLog encodes a RandomWordsFulfilled log.
func RandomWordsFulfilledLog(coordinator common.Address, f Fulfillment) (*types.Log, error) {
	data, err := randomWordsFulfilledEvent.Inputs.NonIndexed().Pack(f.OutputSeed, f.Payment, f.Success)
	if err != nil {
		return nil, err
	}
	return &types.Log{
		Address: coordinator,
		Topics:  []common.Hash{randomWordsFulfilledEvent.ID, common.BigToHash(f.RequestId)},
		Data:    data,
	}, nil
}

// SubscriptionCreatedLog encodes a SubscriptionCreated log.
func SubscriptionCreatedLog(coordinator common.Address, subID uint64, owner common.Address) (*types.Log, error) {
	data, err := subscriptionCreatedEvent.Inputs.NonIndexed().Pack(owner)
	if err != nil {
		return nil, err
	}
	return &types.Log{
		Address: coordinator,
		Topics:  []common.Hash{subscriptionCreatedEvent.ID, common.BigToHash(new(big.Int).SetUint64(subID))},
		Data:    data,
	}, nil
}

// RandomWordsRequestedLog encodes a RandomWordsRequested log.
func RandomWordsRequestedLog(coordinator common.Address, keyHash common.Hash, requestID *big.Int, subID uint64, confirmations uint16, callbackGasLimit, numWords uint32, sender common.Address) (*types.Log, error) {
	data, err := randomWordsRequestedEvent.Inputs.NonIndexed().Pack(requestID, requestID, confirmations, callbackGasLimit, numWords)
	if err != nil {
		return nil, err
	}
	return &types.Log{
		Address: coordinator,
		Topics: []common.Hash{
			randomWordsRequestedEvent.ID,
			keyHash,
			common.BigToHash(new(big.Int).SetUint64(subID)),
			common.BytesToHash(sender.Bytes()),
		},
		Data: data,
	}, nil
}

func mapRevert(err error) error {
	re, ok := transaction.DecodeRevert(&CoordinatorMockABI, err)
	if !ok {
		return err
	}
	switch re.Name {
	case "InvalidSubscription":
		return fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	case "InsufficientBalance":
		return fmt.Errorf("%w: %v", ErrInsufficientBalance, err)
	case "MustBeSubOwner":
		return fmt.Errorf("%w: %v", ErrMustBeSubOwner, err)
	case "InvalidConsumer":
		return fmt.Errorf("%w: %v", ErrInvalidConsumer, err)
	}
	if re.Name == "" && strings.Contains(re.Reason, "nonexistent request") {
		return fmt.Errorf("%w: %v", ErrNonexistentRequest, err)
	}
	return err
}
