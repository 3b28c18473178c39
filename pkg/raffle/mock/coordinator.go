// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	devchainMock "github.com/rafflekit/rafflekit/pkg/devchain/mock"
	"github.com/rafflekit/rafflekit/pkg/transaction"
	"github.com/rafflekit/rafflekit/pkg/vrf"
)

// Gas used by the coordinator double's transactions.
const (
	CreateSubscriptionGas = 70_000
	FundSubscriptionGas   = 30_000
	AddConsumerGas        = 50_000
	FulfillGas            = 150_000
	// CallbackGas is the consumer callback gas billed to the subscription.
	CallbackGas = 60_000
)

var (
	subscriptionFundedEvent = vrf.CoordinatorMockABI.Events["SubscriptionFunded"]
	consumerAddedEvent      = vrf.CoordinatorMockABI.Events["ConsumerAdded"]
)

// consumer receives random words from the coordinator. It runs inside the
// fulfillment transaction and an error fails only the callback.
type consumer interface {
	rawFulfillRandomWordsLocked(now time.Time, requestID *big.Int, words []*big.Int) ([]*types.Log, error)
}

type subAccount struct {
	owner     common.Address
	balance   *big.Int
	reqCount  uint64
	consumers []common.Address
}

type request struct {
	subID            uint64
	sender           common.Address
	callbackGasLimit uint32
	numWords         uint32
}

// Coordinator is an in-memory VRFCoordinatorV2Mock. Its state is guarded by
// the chain lock.
type Coordinator struct {
	chain     *devchainMock.Chain
	address   common.Address
	lastSubID uint64
	lastReqID uint64
	subs      map[uint64]*subAccount
	requests  map[uint64]request
	consumers map[common.Address]consumer
}

func NewCoordinator(chain *devchainMock.Chain, address common.Address) *Coordinator {
	return &Coordinator{
		chain:     chain,
		address:   address,
		subs:      make(map[uint64]*subAccount),
		requests:  make(map[uint64]request),
		consumers: make(map[common.Address]consumer),
	}
}

func (c *Coordinator) Address() common.Address {
	return c.address
}

// Client returns the coordinator as seen by account from.
func (c *Coordinator) Client(from common.Address) vrf.Interface {
	return &coordinatorClient{c: c, from: from}
}

// PendingRequests returns the number of requests not yet fulfilled.
func (c *Coordinator) PendingRequests() (n int) {
	c.chain.View(func(time.Time) {
		n = len(c.requests)
	})
	return n
}

func (c *Coordinator) register(address common.Address, cons consumer) {
	c.chain.View(func(time.Time) {
		c.consumers[address] = cons
	})
}

// requestRandomWordsLocked records a request from a consumer contract.
func (c *Coordinator) requestRandomWordsLocked(sender common.Address, keyHash common.Hash, subID uint64, confirmations uint16, callbackGasLimit, numWords uint32) (*big.Int, *types.Log, error) {
	sub, ok := c.subs[subID]
	if !ok {
		return nil, nil, revert("InvalidSubscription", vrf.ErrInvalidSubscription)
	}
	if !containsAddress(sub.consumers, sender) {
		return nil, nil, revert("InvalidConsumer", vrf.ErrInvalidConsumer)
	}
	c.lastReqID++
	id := new(big.Int).SetUint64(c.lastReqID)
	l, err := vrf.RandomWordsRequestedLog(c.address, keyHash, id, subID, confirmations, callbackGasLimit, numWords, sender)
	if err != nil {
		c.lastReqID--
		return nil, nil, err
	}
	c.requests[c.lastReqID] = request{
		subID:            subID,
		sender:           sender,
		callbackGasLimit: callbackGasLimit,
		numWords:         numWords,
	}
	sub.reqCount++
	return id, l, nil
}

type coordinatorClient struct {
	c    *Coordinator
	from common.Address
}

func (cc *coordinatorClient) Address() common.Address {
	return cc.c.address
}

func (cc *coordinatorClient) CreateSubscription(ctx context.Context) (uint64, error) {
	c := cc.c
	var subID uint64
	_, err := c.chain.Send(devchainMock.Tx{
		From:    cc.from,
		To:      c.address,
		GasUsed: CreateSubscriptionGas,
		Execute: func(now time.Time) ([]*types.Log, error) {
			l, err := vrf.SubscriptionCreatedLog(c.address, c.lastSubID+1, cc.from)
			if err != nil {
				return nil, err
			}
			c.lastSubID++
			subID = c.lastSubID
			c.subs[subID] = &subAccount{owner: cc.from, balance: new(big.Int)}
			return []*types.Log{l}, nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("create subscription: %w", err)
	}
	return subID, nil
}

func (cc *coordinatorClient) FundSubscription(ctx context.Context, subID uint64, amount *big.Int) error {
	c := cc.c
	_, err := c.chain.Send(devchainMock.Tx{
		From:    cc.from,
		To:      c.address,
		GasUsed: FundSubscriptionGas,
		Execute: func(now time.Time) ([]*types.Log, error) {
			sub, ok := c.subs[subID]
			if !ok {
				return nil, revert("InvalidSubscription", vrf.ErrInvalidSubscription)
			}
			newBalance := new(big.Int).Add(sub.balance, amount)
			data, err := subscriptionFundedEvent.Inputs.NonIndexed().Pack(sub.balance, newBalance)
			if err != nil {
				return nil, err
			}
			sub.balance = newBalance
			return []*types.Log{{
				Address: c.address,
				Topics:  []common.Hash{subscriptionFundedEvent.ID, subIDTopic(subID)},
				Data:    data,
			}}, nil
		},
	})
	if err != nil {
		return fmt.Errorf("fund subscription: %w", err)
	}
	return nil
}

func (cc *coordinatorClient) AddConsumer(ctx context.Context, subID uint64, consumer common.Address) error {
	c := cc.c
	_, err := c.chain.Send(devchainMock.Tx{
		From:    cc.from,
		To:      c.address,
		GasUsed: AddConsumerGas,
		Execute: func(now time.Time) ([]*types.Log, error) {
			sub, ok := c.subs[subID]
			if !ok {
				return nil, revert("InvalidSubscription", vrf.ErrInvalidSubscription)
			}
			if sub.owner != cc.from {
				return nil, revert("MustBeSubOwner", vrf.ErrMustBeSubOwner)
			}
			data, err := consumerAddedEvent.Inputs.NonIndexed().Pack(consumer)
			if err != nil {
				return nil, err
			}
			if !containsAddress(sub.consumers, consumer) {
				sub.consumers = append(sub.consumers, consumer)
			}
			return []*types.Log{{
				Address: c.address,
				Topics:  []common.Hash{consumerAddedEvent.ID, subIDTopic(subID)},
				Data:    data,
			}}, nil
		},
	})
	if err != nil {
		return fmt.Errorf("add consumer: %w", err)
	}
	return nil
}

func (cc *coordinatorClient) GetSubscription(ctx context.Context, subID uint64) (s vrf.Subscription, err error) {
	cc.c.chain.View(func(time.Time) {
		sub, ok := cc.c.subs[subID]
		if !ok {
			err = fmt.Errorf("get subscription %d: %w", subID, vrf.ErrInvalidSubscription)
			return
		}
		s = vrf.Subscription{
			Balance:   new(big.Int).Set(sub.balance),
			ReqCount:  sub.reqCount,
			Owner:     sub.owner,
			Consumers: append([]common.Address(nil), sub.consumers...),
		}
	})
	return s, err
}

func (cc *coordinatorClient) FulfillRandomWords(ctx context.Context, requestID *big.Int, consumer common.Address) (*transaction.Handle, error) {
	return cc.fulfill(requestID, consumer, nil)
}

func (cc *coordinatorClient) FulfillRandomWordsWithOverride(ctx context.Context, requestID *big.Int, consumer common.Address, words []*big.Int) (*transaction.Handle, error) {
	return cc.fulfill(requestID, consumer, words)
}

func (cc *coordinatorClient) fulfill(requestID *big.Int, consumerAddress common.Address, words []*big.Int) (*transaction.Handle, error) {
	c := cc.c
	hash, err := c.chain.Send(devchainMock.Tx{
		From:    cc.from,
		To:      c.address,
		GasUsed: FulfillGas,
		Execute: func(now time.Time) ([]*types.Log, error) {
			if !requestID.IsUint64() {
				return nil, vrf.ErrNonexistentRequest
			}
			req, ok := c.requests[requestID.Uint64()]
			if !ok {
				return nil, vrf.ErrNonexistentRequest
			}
			if len(words) == 0 {
				words = vrf.DefaultWords(requestID, int(req.numWords))
			} else if len(words) != int(req.numWords) {
				return nil, revert("InvalidRandomWords", nil)
			}
			sub := c.subs[req.subID]
			payment := vrf.Payment(CallbackGas)
			if sub.balance.Cmp(payment) < 0 {
				return nil, revert("InsufficientBalance", vrf.ErrInsufficientBalance)
			}

			var logs []*types.Log
			success := false
			if cons, ok := c.consumers[consumerAddress]; ok {
				if l, err := cons.rawFulfillRandomWordsLocked(now, requestID, words); err == nil {
					logs = l
					success = true
				}
			}

			l, err := vrf.RandomWordsFulfilledLog(c.address, vrf.Fulfillment{
				RequestId:  requestID,
				OutputSeed: requestID,
				Payment:    payment,
				Success:    success,
			})
			if err != nil {
				return nil, err
			}
			delete(c.requests, requestID.Uint64())
			sub.balance = new(big.Int).Sub(sub.balance, payment)
			return append(logs, l), nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fulfill random words: %w", err)
	}
	return transaction.NewHandle(hash, c.chain), nil
}

// revert builds the error a node reports for a custom error, wrapped in
// the client sentinel when there is one.
func revert(name string, sentinel error) error {
	re := &transaction.RevertError{Name: name}
	if sentinel == nil {
		return re
	}
	return fmt.Errorf("%w: %v", sentinel, re)
}

func subIDTopic(subID uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(subID))
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}
