// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rafflekit/rafflekit/pkg/devchain"
	"github.com/rafflekit/rafflekit/pkg/raffle"
	"github.com/rafflekit/rafflekit/pkg/tracing"
)

// roundSnapshot is the state of a round taken before its winner is picked.
type roundSnapshot struct {
	players       []common.Address
	pot           *big.Int
	balances      map[common.Address]*big.Int
	lastTimestamp time.Time
}

func (o *Orchestrator) snapshot(ctx context.Context) (roundSnapshot, error) {
	players, err := raffle.Players(ctx, o.raffle)
	if err != nil {
		return roundSnapshot{}, err
	}
	pot, err := o.chain.BalanceAt(ctx, o.raffle.Address())
	if err != nil {
		return roundSnapshot{}, fmt.Errorf("raffle balance: %w", err)
	}
	last, err := o.raffle.LatestTimestamp(ctx)
	if err != nil {
		return roundSnapshot{}, fmt.Errorf("latest timestamp: %w", err)
	}
	balances := make(map[common.Address]*big.Int, len(players))
	for _, p := range players {
		if _, ok := balances[p]; ok {
			continue
		}
		b, err := o.chain.BalanceAt(ctx, p)
		if err != nil {
			return roundSnapshot{}, fmt.Errorf("balance of %s: %w", p, err)
		}
		balances[p] = b
	}
	return roundSnapshot{
		players:       players,
		pot:           pot,
		balances:      balances,
		lastTimestamp: last,
	}, nil
}

// wait blocks until the subscription delivers, the fulfillment timeout
// passes or ctx is done. Only the timeout yields ErrFulfillmentTimeout.
func (o *Orchestrator) wait(ctx context.Context, sub raffle.Subscription) (raffle.WinnerPicked, error) {
	wctx := ctx
	if o.fulfillmentTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, o.fulfillmentTimeout)
		defer cancel()
	}
	wp, err := sub.Wait(wctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			o.metrics.FulfillmentTimeouts.Inc()
			return wp, fmt.Errorf("after %v: %w", o.fulfillmentTimeout, ErrFulfillmentTimeout)
		}
		return wp, fmt.Errorf("wait for winner: %w", err)
	}
	return wp, nil
}

// verifySettled checks the contract after WinnerPicked. gasPaid is the fee
// the operator paid for the fulfillment, nil when it sent none.
func (o *Orchestrator) verifySettled(ctx context.Context, snap roundSnapshot, wp raffle.WinnerPicked, settledAt time.Time, gasPaid *big.Int) error {
	var result *multierror.Error

	if !containsAddress(snap.players, wp.Winner) {
		result = multierror.Append(result, violation("winner-entrant", snap.players, wp.Winner))
	}
	recent, err := o.raffle.RecentWinner(ctx)
	if err != nil {
		return fmt.Errorf("recent winner: %w", err)
	}
	if recent != wp.Winner {
		result = multierror.Append(result, violation("recent-winner", wp.Winner, recent))
	}

	if before, ok := snap.balances[wp.Winner]; ok {
		after, err := o.chain.BalanceAt(ctx, wp.Winner)
		if err != nil {
			return fmt.Errorf("balance of %s: %w", wp.Winner, err)
		}
		delta := new(big.Int).Sub(after, before)
		if wp.Winner == o.operator && gasPaid != nil {
			delta.Add(delta, gasPaid)
		}
		if delta.Cmp(snap.pot) != 0 {
			result = multierror.Append(result, violation("payout", snap.pot, delta))
		}
	}

	players, err := o.raffle.NumberOfPlayers(ctx)
	if err != nil {
		return fmt.Errorf("number of players: %w", err)
	}
	if players != 0 {
		result = multierror.Append(result, violation("registry-reset", 0, players))
	}
	state, err := o.raffle.RaffleState(ctx)
	if err != nil {
		return fmt.Errorf("raffle state: %w", err)
	}
	if state != raffle.StateOpen {
		result = multierror.Append(result, violation("state-open", raffle.StateOpen, state))
	}
	if !settledAt.After(snap.lastTimestamp) {
		result = multierror.Append(result, violation("timestamp-advanced", snap.lastTimestamp, settledAt))
	}
	balance, err := o.chain.BalanceAt(ctx, o.raffle.Address())
	if err != nil {
		return fmt.Errorf("raffle balance: %w", err)
	}
	if balance.Sign() != 0 {
		result = multierror.Append(result, violation("balance-zero", 0, balance))
	}
	return result.ErrorOrNil()
}

// AwaitWinner waits for a winner picked by the live keepers and
// coordinator, then checks the settled round.
func (o *Orchestrator) AwaitWinner(ctx context.Context) (outcome Outcome, err error) {
	span, _, ctx := o.tracer.StartSpanFromContext(ctx, "raffle-await-winner", o.logger)
	defer func() { tracing.FinishSpan(span, o.observe(err)) }()

	snap, err := o.snapshot(ctx)
	if err != nil {
		return Outcome{}, err
	}
	sub, err := o.raffle.SubscribeWinnerPicked(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	return o.awaitWinner(ctx, sub, snap)
}

func (o *Orchestrator) awaitWinner(ctx context.Context, sub raffle.Subscription, snap roundSnapshot) (Outcome, error) {
	wp, err := o.wait(ctx, sub)
	if err != nil {
		return Outcome{}, err
	}
	settledAt, err := o.raffle.LatestTimestamp(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("latest timestamp: %w", err)
	}
	outcome := Outcome{
		Winner:      wp.Winner,
		Pot:         snap.pot,
		Players:     snap.players,
		TxHash:      wp.TxHash,
		BlockNumber: wp.BlockNumber,
	}
	verr := o.verifySettled(ctx, snap, wp, settledAt, nil)
	if err := o.Sync(ctx); err != nil {
		return outcome, multierror.Append(verr, err)
	}
	return outcome, verr
}

// WaitForInterval returns once the interval since the last pick has
// passed. Development chains are moved forward in time, live chains are
// polled until upkeep is needed.
func (o *Orchestrator) WaitForInterval(ctx context.Context) error {
	if err := o.ensureModel(ctx); err != nil {
		return err
	}
	if o.timeTraveler != nil {
		now, err := o.chain.Now(ctx)
		if err != nil {
			return err
		}
		m := o.snapshotModel()
		remaining := m.Interval - now.Sub(m.LastTimestamp)
		if remaining < 0 {
			remaining = 0
		}
		return devchain.Advance(ctx, o.timeTraveler, remaining+o.clockSkew)
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	for {
		needed, err := o.raffle.CheckUpkeep(ctx)
		if err != nil {
			return fmt.Errorf("check upkeep: %w", err)
		}
		if needed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunRound plays a full round: all players enter with the entrance fee,
// the interval passes, upkeep requests a winner and the request is
// fulfilled with word. Without coordinator access the winner picked by the
// live services is awaited instead and word is ignored.
func (o *Orchestrator) RunRound(ctx context.Context, players []Player, word *big.Int) (outcome Outcome, err error) {
	if len(players) == 0 {
		return Outcome{}, ErrNoPlayers
	}
	roundID := uuid.New().String()
	span, logger, ctx := o.tracer.StartSpanFromContext(ctx, "raffle-round", o.logger)
	span.SetTag("round", roundID)
	defer func() { tracing.FinishSpan(span, err) }()
	logger = logger.WithField("round", roundID)

	start := time.Now()
	if err := o.Sync(ctx); err != nil {
		return Outcome{}, err
	}
	fee := o.snapshotModel().EntranceFee

	if o.oracle == nil {
		sub, err := o.raffle.SubscribeWinnerPicked(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("subscribe: %w", err)
		}
		defer sub.Unsubscribe()

		if err := o.EnterAll(ctx, players, fee); err != nil {
			return Outcome{}, err
		}
		logger.Infof("raffle: %d players entered, waiting for the winner", len(players))
		snap, err := o.snapshot(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if outcome, err = o.awaitWinner(ctx, sub, snap); err != nil {
			return outcome, o.observe(err)
		}
	} else {
		if err := o.EnterAll(ctx, players, fee); err != nil {
			return Outcome{}, err
		}
		if err := o.WaitForInterval(ctx); err != nil {
			return Outcome{}, fmt.Errorf("wait for interval: %w", err)
		}
		needed, err := o.CheckEligibility(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if !needed {
			return Outcome{}, o.observe(violation("eligibility", true, false))
		}
		requestID, err := o.PerformUpkeep(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if outcome, err = o.AwaitFulfillment(ctx, requestID, word); err != nil {
			return outcome, err
		}
	}

	outcome.RoundID = roundID
	outcome.Duration = time.Since(start)
	o.metrics.Rounds.Inc()
	o.metrics.RoundDuration.Observe(outcome.Duration.Seconds())
	pot, _ := new(big.Float).SetInt(outcome.Pot).Float64()
	o.metrics.LastPot.Set(pot)

	logger.Infof("raffle: round won by %s, pot %v wei, %d players", outcome.Winner, outcome.Pot, len(outcome.Players))
	return outcome, nil
}

// observe counts invariant violations and returns err unchanged.
func (o *Orchestrator) observe(err error) error {
	if err != nil && KindOf(err) == KindInvariant {
		o.metrics.InvariantViolations.Inc()
	}
	return err
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, v := range list {
		if v == a {
			return true
		}
	}
	return false
}
