// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rafflekit/rafflekit/pkg/orchestrator"
	"github.com/rafflekit/rafflekit/pkg/raffle"
)

// eligibilityReads is how often eligibility is read to show it does not
// change between reads.
const eligibilityReads = 3

// RaffleScenarios returns the raffle scenarios.
func RaffleScenarios() []Scenario {
	dev := []Tag{TagDevelopment, TagRaffle}
	return []Scenario{
		{Name: "raffle/constructor", Tags: dev, Run: raffleConstructor},
		{Name: "raffle/enter-insufficient-fee", Tags: dev, Run: raffleEnterInsufficientFee},
		{Name: "raffle/enter-records-player", Tags: dev, Run: raffleEnterRecordsPlayer},
		{Name: "raffle/enter-not-open", Tags: dev, Run: raffleEnterNotOpen},
		{Name: "raffle/check-upkeep-no-players", Tags: dev, Run: raffleCheckUpkeepNoPlayers},
		{Name: "raffle/check-upkeep-interval-not-passed", Tags: dev, Run: raffleCheckUpkeepIntervalNotPassed},
		{Name: "raffle/check-upkeep-not-open", Tags: dev, Run: raffleCheckUpkeepNotOpen},
		{Name: "raffle/check-upkeep-eligible", Tags: dev, Run: raffleCheckUpkeepEligible},
		{Name: "raffle/perform-upkeep-not-needed", Tags: dev, Run: rafflePerformUpkeepNotNeeded},
		{Name: "raffle/perform-upkeep-requests-winner", Tags: dev, Run: rafflePerformUpkeepRequestsWinner},
		{Name: "raffle/fulfill-unknown-request", Tags: dev, Run: raffleFulfillUnknownRequest},
		{Name: "raffle/fulfill-replayed-request", Tags: dev, Run: raffleFulfillReplayedRequest},
		{Name: "raffle/full-round", Tags: dev, Run: raffleFullRound},
		{Name: "raffle/live-round", Tags: []Tag{TagStaging, TagRaffle}, Run: raffleLiveRound},
	}
}

func expectError(err, target error) error {
	if err == nil {
		return fmt.Errorf("got no error, want %v", target)
	}
	if !errors.Is(err, target) {
		return fmt.Errorf("got error %v, want %v", err, target)
	}
	return nil
}

func raffleConstructor(ctx context.Context, env *Env) error {
	r := env.Raffle(env.Deployer)
	state, err := r.RaffleState(ctx)
	if err != nil {
		return err
	}
	if state != raffle.StateOpen {
		return fmt.Errorf("got state %v, want %v", state, raffle.StateOpen)
	}
	interval, err := r.Interval(ctx)
	if err != nil {
		return err
	}
	if interval != env.Config.Interval {
		return fmt.Errorf("got interval %v, want %v", interval, env.Config.Interval)
	}
	fee, err := r.EntranceFee(ctx)
	if err != nil {
		return err
	}
	if fee.Cmp(env.Config.EntranceFee) != 0 {
		return fmt.Errorf("got entrance fee %v, want %v", fee, env.Config.EntranceFee)
	}
	return nil
}

func raffleEnterInsufficientFee(ctx context.Context, env *Env) error {
	o := env.Orchestrator()
	fee := env.Config.EntranceFee
	for _, amount := range []*big.Int{
		new(big.Int),
		new(big.Int).Sub(fee, big.NewInt(100)),
	} {
		err := o.Enter(ctx, env.Player(env.Deployer), amount)
		if err := expectError(err, raffle.ErrInsufficientFee); err != nil {
			return fmt.Errorf("enter with %v: %w", amount, err)
		}
	}
	return nil
}

func raffleEnterRecordsPlayer(ctx context.Context, env *Env) error {
	o := env.Orchestrator()
	if err := o.Enter(ctx, env.Player(env.Deployer), env.Config.EntranceFee); err != nil {
		return err
	}
	r := env.Raffle(env.Deployer)
	n, err := r.NumberOfPlayers(ctx)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("got %d players, want 1", n)
	}
	p, err := r.Player(ctx, 0)
	if err != nil {
		return err
	}
	if p != env.Deployer {
		return fmt.Errorf("got player %s, want %s", p, env.Deployer)
	}
	return nil
}

// enterAndUpkeep enters the deployer, lets the interval pass and performs
// upkeep.
func enterAndUpkeep(ctx context.Context, env *Env, o *orchestrator.Orchestrator) (*big.Int, error) {
	if err := o.Enter(ctx, env.Player(env.Deployer), env.Config.EntranceFee); err != nil {
		return nil, err
	}
	if err := o.WaitForInterval(ctx); err != nil {
		return nil, err
	}
	return o.PerformUpkeep(ctx)
}

func raffleEnterNotOpen(ctx context.Context, env *Env) error {
	o := env.Orchestrator()
	if _, err := enterAndUpkeep(ctx, env, o); err != nil {
		return err
	}
	err := o.Enter(ctx, env.Player(env.Deployer), env.Config.EntranceFee)
	return expectError(err, raffle.ErrNotOpen)
}

func expectEligibility(ctx context.Context, o *orchestrator.Orchestrator, want bool) error {
	for i := 0; i < eligibilityReads; i++ {
		got, err := o.CheckEligibility(ctx)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("read %d: got upkeep needed %v, want %v", i, got, want)
		}
	}
	return nil
}

func raffleCheckUpkeepNoPlayers(ctx context.Context, env *Env) error {
	o := env.Orchestrator()
	if err := o.WaitForInterval(ctx); err != nil {
		return err
	}
	return expectEligibility(ctx, o, false)
}

func raffleCheckUpkeepIntervalNotPassed(ctx context.Context, env *Env) error {
	o := env.Orchestrator()
	if err := o.Enter(ctx, env.Player(env.Deployer), env.Config.EntranceFee); err != nil {
		return err
	}
	return expectEligibility(ctx, o, false)
}

func raffleCheckUpkeepNotOpen(ctx context.Context, env *Env) error {
	o := env.Orchestrator()
	if _, err := enterAndUpkeep(ctx, env, o); err != nil {
		return err
	}
	state, err := env.Raffle(env.Deployer).RaffleState(ctx)
	if err != nil {
		return err
	}
	if state != raffle.StateCalculating {
		return fmt.Errorf("got state %v, want %v", state, raffle.StateCalculating)
	}
	return expectEligibility(ctx, o, false)
}

func raffleCheckUpkeepEligible(ctx context.Context, env *Env) error {
	o := env.Orchestrator()
	if err := o.Enter(ctx, env.Player(env.Deployer), env.Config.EntranceFee); err != nil {
		return err
	}
	if err := o.WaitForInterval(ctx); err != nil {
		return err
	}
	return expectEligibility(ctx, o, true)
}

func rafflePerformUpkeepNotNeeded(ctx context.Context, env *Env) error {
	_, err := env.Orchestrator().PerformUpkeep(ctx)
	var notNeeded *raffle.UpkeepNotNeededError
	if !errors.As(err, &notNeeded) {
		return fmt.Errorf("got error %v, want %v", err, raffle.ErrUpkeepNotNeeded)
	}
	if notNeeded.Balance.Sign() != 0 || notNeeded.Players != 0 || notNeeded.State != raffle.StateOpen {
		return fmt.Errorf("got %v, want (0, 0, 0)", notNeeded)
	}
	return nil
}

func rafflePerformUpkeepRequestsWinner(ctx context.Context, env *Env) error {
	requestID, err := enterAndUpkeep(ctx, env, env.Orchestrator())
	if err != nil {
		return err
	}
	if requestID.Sign() <= 0 {
		return fmt.Errorf("got request id %v, want a positive id", requestID)
	}
	return nil
}

func raffleFulfillUnknownRequest(ctx context.Context, env *Env) error {
	o := env.Orchestrator()
	if err := o.Enter(ctx, env.Player(env.Deployer), env.Config.EntranceFee); err != nil {
		return err
	}
	if err := o.WaitForInterval(ctx); err != nil {
		return err
	}
	for _, id := range []int64{0, 1} {
		_, err := o.AwaitFulfillment(ctx, big.NewInt(id), nil)
		if err := expectError(err, orchestrator.ErrUnknownRequest); err != nil {
			return fmt.Errorf("request %d: %w", id, err)
		}
	}
	return nil
}

func raffleFulfillReplayedRequest(ctx context.Context, env *Env) error {
	o := env.Orchestrator()
	requestID, err := enterAndUpkeep(ctx, env, o)
	if err != nil {
		return err
	}
	if _, err := o.AwaitFulfillment(ctx, requestID, nil); err != nil {
		return err
	}
	_, err = o.AwaitFulfillment(ctx, requestID, nil)
	return expectError(err, orchestrator.ErrUnknownRequest)
}

func raffleFullRound(ctx context.Context, env *Env) error {
	const entrants = 4
	if len(env.Accounts) < entrants-1 {
		return fmt.Errorf("full round needs %d accounts besides the deployer, got %d", entrants-1, len(env.Accounts))
	}
	players := []orchestrator.Player{env.Player(env.Deployer)}
	for _, a := range env.Accounts[:entrants-1] {
		players = append(players, env.Player(a))
	}

	outcome, err := env.Orchestrator().RunRound(ctx, players, nil)
	if err != nil {
		return err
	}
	if want := new(big.Int).Mul(env.Config.EntranceFee, big.NewInt(entrants)); outcome.Pot.Cmp(want) != 0 {
		return fmt.Errorf("got pot %v, want %v", outcome.Pot, want)
	}
	env.Logger.Infof("raffle: round %s won by %s", outcome.RoundID, outcome.Winner)
	return nil
}

func raffleLiveRound(ctx context.Context, env *Env) error {
	outcome, err := env.Orchestrator().RunRound(ctx, []orchestrator.Player{env.Player(env.Deployer)}, nil)
	if err != nil {
		return err
	}
	if outcome.Winner != env.Deployer {
		return fmt.Errorf("got winner %s, want %s", outcome.Winner, env.Deployer)
	}
	if _, err := env.Raffle(env.Deployer).Player(ctx, 0); err == nil {
		return errors.New("player registry not reset after the round")
	}
	return nil
}
