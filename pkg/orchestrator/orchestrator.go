// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package orchestrator drives a raffle contract through its round
// lifecycle and checks every observed state against a model of the
// contract.
//
// A round is OPEN while players enter, moves to CALCULATING when upkeep
// requests randomness and returns to OPEN when the coordinator delivers the
// random word and the raffle pays the whole balance to the picked entrant.
// Every step waits for its transaction receipt before reading state, and
// the winner is awaited through a one-shot WinnerPicked subscription that
// is opened before the fulfillment is sent and bounded by a timeout.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/rafflekit/rafflekit/pkg/devchain"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/raffle"
	"github.com/rafflekit/rafflekit/pkg/tracing"
	"github.com/rafflekit/rafflekit/pkg/transaction"
	"github.com/rafflekit/rafflekit/pkg/vrf"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPollInterval is how often eligibility is polled on live chains.
	DefaultPollInterval = 5 * time.Second
	// DefaultClockSkew is the window around the interval boundary in which
	// the node and the model may disagree on eligibility.
	DefaultClockSkew = 2 * time.Second
)

// Player is an entrant together with a raffle client that sends from the
// entrant's account.
type Player struct {
	Address common.Address
	Raffle  raffle.Interface
}

// Outcome describes a finished round.
type Outcome struct {
	RoundID     string
	RequestID   *big.Int
	Winner      common.Address
	Pot         *big.Int
	Players     []common.Address
	TxHash      common.Hash
	BlockNumber uint64
	Duration    time.Duration
}

type Options struct {
	Logger logging.Logger
	Tracer *tracing.Tracer
	// Raffle and Oracle send from Operator, the account that performs
	// upkeep and fulfills requests.
	Raffle   raffle.Interface
	Operator common.Address
	// Oracle is the coordinator mock. It is nil on chains served by a live
	// coordinator, where fulfillment is awaited instead of sent.
	Oracle vrf.Interface
	Chain  devchain.Chain
	// TimeTraveler moves the clock on development chains. On live chains it
	// is nil and the interval is awaited by polling.
	TimeTraveler devchain.TimeTraveler
	// FulfillmentTimeout bounds the wait for WinnerPicked. Zero waits until
	// the context is done.
	FulfillmentTimeout time.Duration
	PollInterval       time.Duration
	ClockSkew          time.Duration
}

type Orchestrator struct {
	logger             logging.Logger
	tracer             *tracing.Tracer
	metrics            metrics
	raffle             raffle.Interface
	operator           common.Address
	oracle             vrf.Interface
	chain              devchain.Chain
	timeTraveler       devchain.TimeTraveler
	fulfillmentTimeout time.Duration
	pollInterval       time.Duration
	clockSkew          time.Duration

	mu    sync.Mutex
	model *Model
}

func New(o Options) *Orchestrator {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ClockSkew <= 0 {
		o.ClockSkew = DefaultClockSkew
	}
	return &Orchestrator{
		logger:             o.Logger,
		tracer:             o.Tracer,
		metrics:            newMetrics(),
		raffle:             o.Raffle,
		operator:           o.Operator,
		oracle:             o.Oracle,
		chain:              o.Chain,
		timeTraveler:       o.TimeTraveler,
		fulfillmentTimeout: o.FulfillmentTimeout,
		pollInterval:       o.PollInterval,
		clockSkew:          o.ClockSkew,
	}
}

// Model returns a copy of the current model, loading it from the chain if
// it was never synced.
func (o *Orchestrator) Model(ctx context.Context) (*Model, error) {
	if err := o.ensureModel(ctx); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model.Clone(), nil
}

// Sync replaces the model with the state read from the contract.
func (o *Orchestrator) Sync(ctx context.Context) error {
	fee, err := o.raffle.EntranceFee(ctx)
	if err != nil {
		return fmt.Errorf("entrance fee: %w", err)
	}
	interval, err := o.raffle.Interval(ctx)
	if err != nil {
		return fmt.Errorf("interval: %w", err)
	}
	last, err := o.raffle.LatestTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("latest timestamp: %w", err)
	}
	state, err := o.raffle.RaffleState(ctx)
	if err != nil {
		return fmt.Errorf("raffle state: %w", err)
	}
	players, err := raffle.Players(ctx, o.raffle)
	if err != nil {
		return err
	}
	balance, err := o.chain.BalanceAt(ctx, o.raffle.Address())
	if err != nil {
		return fmt.Errorf("raffle balance: %w", err)
	}
	winner, err := o.raffle.RecentWinner(ctx)
	if err != nil {
		return fmt.Errorf("recent winner: %w", err)
	}

	m := NewModel(fee, interval, last)
	m.State = state
	m.Players = players
	m.Balance = balance
	m.RecentWinner = winner

	o.mu.Lock()
	o.model = m
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) ensureModel(ctx context.Context) error {
	o.mu.Lock()
	synced := o.model != nil
	o.mu.Unlock()
	if synced {
		return nil
	}
	return o.Sync(ctx)
}

func (o *Orchestrator) snapshotModel() *Model {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.model.Clone()
}

// Enter enters p into the raffle with amount and checks that the registry
// grew by exactly p.
func (o *Orchestrator) Enter(ctx context.Context, p Player, amount *big.Int) (err error) {
	span, logger, ctx := o.tracer.StartSpanFromContext(ctx, "raffle-enter", o.logger)
	defer func() { tracing.FinishSpan(span, o.observe(err)) }()

	if err := o.ensureModel(ctx); err != nil {
		return err
	}
	before, err := o.raffle.NumberOfPlayers(ctx)
	if err != nil {
		return fmt.Errorf("number of players: %w", err)
	}
	if err := o.enter(ctx, p, amount); err != nil {
		if errors.Is(err, raffle.ErrInsufficientFee) || errors.Is(err, raffle.ErrNotOpen) {
			return o.checkRegistryUnchanged(ctx, before, err)
		}
		return err
	}
	after, err := o.raffle.NumberOfPlayers(ctx)
	if err != nil {
		return fmt.Errorf("number of players: %w", err)
	}
	if after != before+1 {
		return violation("registry-append", before+1, after)
	}
	last, err := o.raffle.Player(ctx, before)
	if err != nil {
		return fmt.Errorf("player %d: %w", before, err)
	}
	if last != p.Address {
		return violation("registry-append", p.Address, last)
	}
	logger.Debugf("raffle: %s entered with %v wei", p.Address, amount)
	return nil
}

func (o *Orchestrator) checkRegistryUnchanged(ctx context.Context, before uint64, cause error) error {
	after, err := o.raffle.NumberOfPlayers(ctx)
	if err != nil {
		return fmt.Errorf("number of players: %w", err)
	}
	if after != before {
		return multierror.Append(cause, violation("registry-unchanged", before, after))
	}
	return cause
}

// enter sends one entry and checks its outcome against the model. It does
// not read the registry so it can run concurrently with other entries.
func (o *Orchestrator) enter(ctx context.Context, p Player, amount *big.Int) error {
	o.metrics.Entries.Inc()
	predicted := o.snapshotModel().Enter(p.Address, amount)

	h, err := p.Raffle.EnterRaffle(ctx, amount)
	if err != nil {
		o.metrics.EntryErrors.Inc()
		if !errors.Is(err, raffle.ErrInsufficientFee) && !errors.Is(err, raffle.ErrNotOpen) {
			return fmt.Errorf("enter raffle as %s: %w", p.Address, err)
		}
		if predicted == nil || !errors.Is(err, predicted) {
			return violation("enter-outcome", predicted, err)
		}
		return err
	}
	receipt, err := h.Wait(ctx)
	if err != nil {
		return fmt.Errorf("enter raffle as %s: %w", p.Address, err)
	}
	if predicted != nil {
		return violation("enter-outcome", predicted, "entered")
	}
	entrant, err := raffle.FindRaffleEnter(receipt, o.raffle.Address())
	if err != nil {
		return violation("enter-event", p.Address, err)
	}
	if entrant != p.Address {
		return violation("enter-event", p.Address, entrant)
	}

	o.mu.Lock()
	_ = o.model.Enter(p.Address, amount)
	o.mu.Unlock()
	return nil
}

// EnterAll enters every player concurrently and checks that no entry was
// lost. The model takes the registry order chosen by the contract.
func (o *Orchestrator) EnterAll(ctx context.Context, players []Player, amount *big.Int) (err error) {
	span, logger, ctx := o.tracer.StartSpanFromContext(ctx, "raffle-enter-all", o.logger)
	defer func() { tracing.FinishSpan(span, o.observe(err)) }()

	if err := o.ensureModel(ctx); err != nil {
		return err
	}
	before, err := o.raffle.NumberOfPlayers(ctx)
	if err != nil {
		return fmt.Errorf("number of players: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range players {
		p := p
		g.Go(func() error {
			return o.enter(gctx, p, amount)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	registry, err := raffle.Players(ctx, o.raffle)
	if err != nil {
		return err
	}
	if got, want := uint64(len(registry)), before+uint64(len(players)); got != want {
		return violation("no-lost-entry", want, got)
	}
	entered := make(map[common.Address]int)
	for _, a := range registry[before:] {
		entered[a]++
	}
	for _, p := range players {
		if entered[p.Address] == 0 {
			return violation("no-lost-entry", p.Address, "missing")
		}
		entered[p.Address]--
	}

	o.mu.Lock()
	o.model.Players = registry
	o.mu.Unlock()

	logger.Debugf("raffle: %d players entered, %d in registry", len(players), len(registry))
	return nil
}

// CheckEligibility returns whether upkeep is needed. It is a pure read and
// can be called any number of times. The answer is compared with the model
// unless the chain time is within the clock skew of the interval boundary.
func (o *Orchestrator) CheckEligibility(ctx context.Context) (bool, error) {
	if err := o.ensureModel(ctx); err != nil {
		return false, err
	}
	needed, err := o.raffle.CheckUpkeep(ctx)
	if err != nil {
		return false, fmt.Errorf("check upkeep: %w", err)
	}
	now, err := o.chain.Now(ctx)
	if err != nil {
		return false, err
	}
	balance, err := o.chain.BalanceAt(ctx, o.raffle.Address())
	if err != nil {
		return false, fmt.Errorf("raffle balance: %w", err)
	}

	m := o.snapshotModel()
	if balance.Cmp(m.Balance) != 0 {
		return needed, o.observe(violation("balance", m.Balance, balance))
	}
	if o.unambiguous(m, now) {
		if want := m.Eligible(now); want != needed {
			return needed, o.observe(violation("eligibility", want, needed))
		}
	}
	return needed, nil
}

func (o *Orchestrator) unambiguous(m *Model, now time.Time) bool {
	d := now.Sub(m.LastTimestamp) - m.Interval
	if d < 0 {
		d = -d
	}
	return d > o.clockSkew
}

// PerformUpkeep requests a winner. On success the raffle must be
// CALCULATING with exactly one request id, which is returned. When upkeep
// is not needed the *raffle.UpkeepNotNeededError is returned after its
// carried state was checked against the contract.
func (o *Orchestrator) PerformUpkeep(ctx context.Context) (requestID *big.Int, err error) {
	span, logger, ctx := o.tracer.StartSpanFromContext(ctx, "raffle-perform-upkeep", o.logger)
	defer func() { tracing.FinishSpan(span, o.observe(err)) }()

	if err := o.ensureModel(ctx); err != nil {
		return nil, err
	}
	o.metrics.Upkeeps.Inc()

	h, err := o.raffle.PerformUpkeep(ctx)
	if err != nil {
		o.metrics.UpkeepErrors.Inc()
		var notNeeded *raffle.UpkeepNotNeededError
		if errors.As(err, &notNeeded) {
			return nil, o.checkUpkeepNotNeeded(ctx, notNeeded, err)
		}
		return nil, fmt.Errorf("perform upkeep: %w", err)
	}
	receipt, err := h.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("perform upkeep: %w", err)
	}
	requestID, err = raffle.FindRequestedRaffleWinner(receipt, o.raffle.Address())
	if err != nil {
		return nil, violation("single-request", 1, err)
	}
	state, err := o.raffle.RaffleState(ctx)
	if err != nil {
		return nil, fmt.Errorf("raffle state: %w", err)
	}
	if state != raffle.StateCalculating {
		return nil, violation("state-calculating", raffle.StateCalculating, state)
	}
	now, err := o.chain.Now(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	predicted := o.model.PerformUpkeep(now, requestID)
	if predicted != nil {
		o.model.State = raffle.StateCalculating
		o.model.PendingRequest = new(big.Int).Set(requestID)
	}
	o.mu.Unlock()
	if predicted != nil {
		return requestID, violation("upkeep-outcome", predicted, "performed")
	}

	logger.Infof("raffle: upkeep performed, request %v in block %v", requestID, receipt.BlockNumber)
	return requestID, nil
}

func (o *Orchestrator) checkUpkeepNotNeeded(ctx context.Context, e *raffle.UpkeepNotNeededError, cause error) error {
	players, err := o.raffle.NumberOfPlayers(ctx)
	if err != nil {
		return fmt.Errorf("number of players: %w", err)
	}
	state, err := o.raffle.RaffleState(ctx)
	if err != nil {
		return fmt.Errorf("raffle state: %w", err)
	}
	balance, err := o.chain.BalanceAt(ctx, o.raffle.Address())
	if err != nil {
		return fmt.Errorf("raffle balance: %w", err)
	}
	now, err := o.chain.Now(ctx)
	if err != nil {
		return err
	}

	var result *multierror.Error
	result = multierror.Append(result, cause)
	if e.Players != players {
		result = multierror.Append(result, violation("upkeep-not-needed-players", players, e.Players))
	}
	if e.State != state {
		result = multierror.Append(result, violation("upkeep-not-needed-state", state, e.State))
	}
	if e.Balance == nil || e.Balance.Cmp(balance) != 0 {
		result = multierror.Append(result, violation("upkeep-not-needed-balance", balance, e.Balance))
	}
	if m := o.snapshotModel(); o.unambiguous(m, now) && m.Eligible(now) {
		result = multierror.Append(result, violation("eligibility", true, false))
	}
	if len(result.Errors) == 1 {
		return cause
	}
	return result.ErrorOrNil()
}

// AwaitFulfillment has the coordinator mock fulfill requestID with word, or
// with the coordinator's default word when word is nil, and waits for the
// WinnerPicked event. The settled round is checked against the model.
func (o *Orchestrator) AwaitFulfillment(ctx context.Context, requestID, word *big.Int) (outcome Outcome, err error) {
	span, logger, ctx := o.tracer.StartSpanFromContext(ctx, "raffle-await-fulfillment", o.logger)
	defer func() { tracing.FinishSpan(span, o.observe(err)) }()

	if o.oracle == nil {
		return Outcome{}, ErrNoOracle
	}
	if err := o.ensureModel(ctx); err != nil {
		return Outcome{}, err
	}
	m := o.snapshotModel()
	snap, err := o.snapshot(ctx)
	if err != nil {
		return Outcome{}, err
	}

	sub, err := o.raffle.SubscribeWinnerPicked(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	consumer := o.raffle.Address()
	var h *transaction.Handle
	if word != nil {
		h, err = o.oracle.FulfillRandomWordsWithOverride(ctx, requestID, consumer, []*big.Int{word})
	} else {
		word = vrf.DefaultWords(requestID, 1)[0]
		h, err = o.oracle.FulfillRandomWords(ctx, requestID, consumer)
	}
	if err != nil {
		if errors.Is(err, vrf.ErrNonexistentRequest) {
			if m.PendingRequest != nil && m.PendingRequest.Cmp(requestID) == 0 {
				return Outcome{}, violation("pending-request", requestID, err)
			}
			return Outcome{}, fmt.Errorf("fulfill request %v: %w (%v)", requestID, ErrUnknownRequest, err)
		}
		return Outcome{}, fmt.Errorf("fulfill request %v: %w", requestID, err)
	}
	receipt, err := h.Wait(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("fulfill request %v: %w", requestID, err)
	}
	if f, err := vrf.FindRandomWordsFulfilled(receipt, o.oracle.Address()); err == nil && !f.Success {
		return Outcome{}, fmt.Errorf("fulfill request %v: %w", requestID, ErrCallbackFailed)
	}
	o.metrics.Fulfillments.Inc()

	var gasPaid *big.Int
	if _, ok := snap.balances[o.operator]; ok {
		if gasPaid, err = o.chain.GasCost(ctx, receipt); err != nil {
			return Outcome{}, err
		}
	}

	wp, err := o.wait(ctx, sub)
	if err != nil {
		return Outcome{}, err
	}
	settledAt, err := o.raffle.LatestTimestamp(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("latest timestamp: %w", err)
	}

	var result *multierror.Error
	if m.State == raffle.StateCalculating && m.PendingRequest == nil {
		m.PendingRequest = new(big.Int).Set(requestID)
	}
	want, pot, err := m.Fulfill(requestID, word, settledAt)
	switch {
	case err != nil:
		result = multierror.Append(result, violation("pending-request", m.PendingRequest, requestID))
	case want != wp.Winner:
		result = multierror.Append(result, violation("winner-index", want, wp.Winner))
	case pot.Cmp(snap.pot) != 0:
		result = multierror.Append(result, violation("pot", pot, snap.pot))
	}
	if err := o.verifySettled(ctx, snap, wp, settledAt, gasPaid); err != nil {
		result = multierror.Append(result, err)
	}

	o.mu.Lock()
	o.model = m
	o.mu.Unlock()

	outcome = Outcome{
		RequestID:   requestID,
		Winner:      wp.Winner,
		Pot:         snap.pot,
		Players:     snap.players,
		TxHash:      wp.TxHash,
		BlockNumber: wp.BlockNumber,
	}
	if err := result.ErrorOrNil(); err != nil {
		return outcome, err
	}
	logger.Infof("raffle: request %v fulfilled, %s won %v wei", requestID, wp.Winner, snap.pot)
	return outcome, nil
}
