// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/config"
	devchainMock "github.com/rafflekit/rafflekit/pkg/devchain/mock"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/orchestrator"
	"github.com/rafflekit/rafflekit/pkg/raffle"
	raffleMock "github.com/rafflekit/rafflekit/pkg/raffle/mock"
	"github.com/rafflekit/rafflekit/pkg/vrf"
	"github.com/sirupsen/logrus"
)

var (
	deployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	alice    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob      = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	carol    = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	dave     = common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")

	coordinatorAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	raffleAddress      = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")

	ether = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	fee   = new(big.Int).Div(ether, big.NewInt(2))
)

type fixture struct {
	chain        *devchainMock.Chain
	raffle       *raffleMock.Raffle
	coordinator  *raffleMock.Coordinator
	orchestrator *orchestrator.Orchestrator
}

type fixtureOption func(*orchestrator.Options)

func withRaffle(f func(raffle.Interface) raffle.Interface) fixtureOption {
	return func(o *orchestrator.Options) {
		o.Raffle = f(o.Raffle)
	}
}

func withFulfillmentTimeout(d time.Duration) fixtureOption {
	return func(o *orchestrator.Options) {
		o.FulfillmentTimeout = d
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) fixture {
	t.Helper()
	ctx := context.Background()

	funds := new(big.Int).Mul(ether, big.NewInt(100))
	chain := devchainMock.New(
		devchainMock.WithBalance(deployer, funds),
		devchainMock.WithBalance(alice, funds),
		devchainMock.WithBalance(bob, funds),
		devchainMock.WithBalance(carol, funds),
		devchainMock.WithBalance(dave, funds),
	)
	coordinator := raffleMock.NewCoordinator(chain, coordinatorAddress)
	owner := coordinator.Client(deployer)
	subID, err := owner.CreateSubscription(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := owner.FundSubscription(ctx, subID, vrf.FundAmount); err != nil {
		t.Fatal(err)
	}
	r := raffleMock.New(chain, coordinator, raffleAddress, raffleMock.Config{
		EntranceFee:      fee,
		Interval:         30 * time.Second,
		SubscriptionID:   subID,
		CallbackGasLimit: 500_000,
	})
	if err := owner.AddConsumer(ctx, subID, raffleAddress); err != nil {
		t.Fatal(err)
	}

	o := orchestrator.Options{
		Logger:             logging.New(io.Discard, logrus.ErrorLevel),
		Raffle:             r.Client(deployer),
		Operator:           deployer,
		Oracle:             owner,
		Chain:              chain,
		TimeTraveler:       chain,
		FulfillmentTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return fixture{
		chain:        chain,
		raffle:       r,
		coordinator:  coordinator,
		orchestrator: orchestrator.New(o),
	}
}

func (f fixture) player(a common.Address) orchestrator.Player {
	return orchestrator.Player{Address: a, Raffle: f.raffle.Client(a)}
}

func (f fixture) players(as ...common.Address) []orchestrator.Player {
	ps := make([]orchestrator.Player, 0, len(as))
	for _, a := range as {
		ps = append(ps, f.player(a))
	}
	return ps
}

func (f fixture) enter(t *testing.T, as ...common.Address) {
	t.Helper()
	for _, a := range as {
		if err := f.orchestrator.Enter(context.Background(), f.player(a), fee); err != nil {
			t.Fatal(err)
		}
	}
}

func (f fixture) upkeep(t *testing.T) *big.Int {
	t.Helper()
	ctx := context.Background()
	if err := f.orchestrator.WaitForInterval(ctx); err != nil {
		t.Fatal(err)
	}
	requestID, err := f.orchestrator.PerformUpkeep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return requestID
}

func TestEnterInsufficientFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, amount := range []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		new(big.Int).Sub(fee, big.NewInt(1)),
	} {
		t.Run(amount.String(), func(t *testing.T) {
			err := f.orchestrator.Enter(ctx, f.player(alice), amount)
			if !errors.Is(err, raffle.ErrInsufficientFee) {
				t.Fatalf("got error %v, want %v", err, raffle.ErrInsufficientFee)
			}
			if kind := orchestrator.KindOf(err); kind != orchestrator.KindPrecondition {
				t.Fatalf("got kind %v, want %v", kind, orchestrator.KindPrecondition)
			}
			n, err := f.raffle.Client(deployer).NumberOfPlayers(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if n != 0 {
				t.Fatalf("got %d players, want 0", n)
			}
		})
	}
}

func TestEnterRecordsPlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	overpaid := new(big.Int).Add(fee, big.NewInt(1))
	if err := f.orchestrator.Enter(ctx, f.player(alice), overpaid); err != nil {
		t.Fatal(err)
	}
	client := f.raffle.Client(deployer)
	p, err := client.Player(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if p != alice {
		t.Fatalf("got player %s, want %s", p, alice)
	}
	m, err := f.orchestrator.Model(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m.Balance.Cmp(overpaid) != 0 {
		t.Fatalf("got model balance %v, want %v", m.Balance, overpaid)
	}
}

func TestEnterNotOpenWhileCalculating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.enter(t, alice)
	requestID := f.upkeep(t)

	err := f.orchestrator.Enter(ctx, f.player(bob), fee)
	if !errors.Is(err, raffle.ErrNotOpen) {
		t.Fatalf("got error %v, want %v", err, raffle.ErrNotOpen)
	}
	if kind := orchestrator.KindOf(err); kind != orchestrator.KindPrecondition {
		t.Fatalf("got kind %v, want %v", kind, orchestrator.KindPrecondition)
	}

	if _, err := f.orchestrator.AwaitFulfillment(ctx, requestID, big.NewInt(0)); err != nil {
		t.Fatal(err)
	}
	if err := f.orchestrator.Enter(ctx, f.player(bob), fee); err != nil {
		t.Fatalf("enter after the winner was picked: %v", err)
	}
}

func TestCheckEligibility(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name    string
		prepare func(t *testing.T, f fixture)
		want    bool
	}{
		{
			name: "no players",
			prepare: func(t *testing.T, f fixture) {
				if err := f.orchestrator.WaitForInterval(ctx); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "interval not passed",
			prepare: func(t *testing.T, f fixture) {
				f.enter(t, alice)
			},
		},
		{
			name: "calculating",
			prepare: func(t *testing.T, f fixture) {
				f.enter(t, alice)
				f.upkeep(t)
				if err := f.orchestrator.WaitForInterval(ctx); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "eligible",
			prepare: func(t *testing.T, f fixture) {
				f.enter(t, alice, bob)
				if err := f.orchestrator.WaitForInterval(ctx); err != nil {
					t.Fatal(err)
				}
			},
			want: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.prepare(t, f)

			for i := 0; i < 5; i++ {
				got, err := f.orchestrator.CheckEligibility(ctx)
				if err != nil {
					t.Fatal(err)
				}
				if got != tc.want {
					t.Fatalf("call %d: got eligible %v, want %v", i, got, tc.want)
				}
			}
		})
	}
}

func TestPerformUpkeepNotNeeded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enter(t, alice)

	_, err := f.orchestrator.PerformUpkeep(ctx)
	var notNeeded *raffle.UpkeepNotNeededError
	if !errors.As(err, &notNeeded) {
		t.Fatalf("got error %v, want upkeep not needed", err)
	}
	if notNeeded.Balance.Cmp(fee) != 0 {
		t.Fatalf("got balance %v, want %v", notNeeded.Balance, fee)
	}
	if notNeeded.Players != 1 {
		t.Fatalf("got %d players, want 1", notNeeded.Players)
	}
	if notNeeded.State != raffle.StateOpen {
		t.Fatalf("got state %v, want %v", notNeeded.State, raffle.StateOpen)
	}
	if kind := orchestrator.KindOf(err); kind != orchestrator.KindPrecondition {
		t.Fatalf("got kind %v, want %v", kind, orchestrator.KindPrecondition)
	}
}

func TestAwaitFulfillmentUnknownRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("never created", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orchestrator.AwaitFulfillment(ctx, big.NewInt(99), nil)
		if !errors.Is(err, orchestrator.ErrUnknownRequest) {
			t.Fatalf("got error %v, want %v", err, orchestrator.ErrUnknownRequest)
		}
		if kind := orchestrator.KindOf(err); kind != orchestrator.KindPrecondition {
			t.Fatalf("got kind %v, want %v", kind, orchestrator.KindPrecondition)
		}
	})

	t.Run("already fulfilled", func(t *testing.T) {
		f := newFixture(t)
		f.enter(t, alice, bob)
		requestID := f.upkeep(t)
		if _, err := f.orchestrator.AwaitFulfillment(ctx, requestID, nil); err != nil {
			t.Fatal(err)
		}
		_, err := f.orchestrator.AwaitFulfillment(ctx, requestID, nil)
		if !errors.Is(err, orchestrator.ErrUnknownRequest) {
			t.Fatalf("got error %v, want %v", err, orchestrator.ErrUnknownRequest)
		}
	})
}

func TestRunRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	client := f.raffle.Client(deployer)

	startedAt, err := client.LatestTimestamp(ctx)
	if err != nil {
		t.Fatal(err)
	}

	outcome, err := f.orchestrator.RunRound(ctx, f.players(alice, bob, carol, dave), big.NewInt(3))
	if err != nil {
		t.Fatal(err)
	}

	if len(outcome.Players) != 4 {
		t.Fatalf("got %d players, want 4", len(outcome.Players))
	}
	if want := outcome.Players[3]; outcome.Winner != want {
		t.Fatalf("got winner %s, want %s", outcome.Winner, want)
	}
	if want := new(big.Int).Mul(fee, big.NewInt(4)); outcome.Pot.Cmp(want) != 0 {
		t.Fatalf("got pot %v, want %v", outcome.Pot, want)
	}
	if outcome.RoundID == "" || outcome.RequestID == nil {
		t.Fatalf("incomplete outcome %+v", outcome)
	}

	funds := new(big.Int).Mul(ether, big.NewInt(100))
	entryCost := new(big.Int).Add(fee, new(big.Int).Mul(devchainMock.GasPrice, big.NewInt(raffleMock.EnterGas)))
	wantBalance := new(big.Int).Add(new(big.Int).Sub(funds, entryCost), outcome.Pot)
	balance, err := f.chain.BalanceAt(ctx, outcome.Winner)
	if err != nil {
		t.Fatal(err)
	}
	if balance.Cmp(wantBalance) != 0 {
		t.Fatalf("got winner balance %v, want %v", balance, wantBalance)
	}

	if n, _ := client.NumberOfPlayers(ctx); n != 0 {
		t.Fatalf("got %d players, want 0", n)
	}
	if state, _ := client.RaffleState(ctx); state != raffle.StateOpen {
		t.Fatalf("got state %v, want %v", state, raffle.StateOpen)
	}
	if ts, _ := client.LatestTimestamp(ctx); !ts.After(startedAt) {
		t.Fatalf("timestamp %v not after %v", ts, startedAt)
	}
	if f.coordinator.PendingRequests() != 0 {
		t.Fatalf("got %d pending requests, want 0", f.coordinator.PendingRequests())
	}

	// a second round on the same deployment
	if _, err := f.orchestrator.RunRound(ctx, f.players(bob, carol), nil); err != nil {
		t.Fatal(err)
	}
}

func TestRunRoundNoPlayers(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orchestrator.RunRound(context.Background(), nil, nil); !errors.Is(err, orchestrator.ErrNoPlayers) {
		t.Fatalf("got error %v, want %v", err, orchestrator.ErrNoPlayers)
	}
}

func TestOperatorWinsRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.enter(t, alice, deployer)
	requestID := f.upkeep(t)

	outcome, err := f.orchestrator.AwaitFulfillment(ctx, requestID, big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Winner != deployer {
		t.Fatalf("got winner %s, want %s", outcome.Winner, deployer)
	}
}

// silentRaffle never delivers the WinnerPicked event.
type silentRaffle struct {
	raffle.Interface
}

func (silentRaffle) SubscribeWinnerPicked(ctx context.Context) (raffle.Subscription, error) {
	return silentSubscription{}, nil
}

type silentSubscription struct{}

func (silentSubscription) Wait(ctx context.Context) (raffle.WinnerPicked, error) {
	<-ctx.Done()
	return raffle.WinnerPicked{}, ctx.Err()
}

func (silentSubscription) Unsubscribe() {}

func TestFulfillmentTimeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		withRaffle(func(r raffle.Interface) raffle.Interface { return silentRaffle{r} }),
		withFulfillmentTimeout(50*time.Millisecond),
	)
	f.enter(t, alice)
	requestID := f.upkeep(t)

	_, err := f.orchestrator.AwaitFulfillment(ctx, requestID, nil)
	if !errors.Is(err, orchestrator.ErrFulfillmentTimeout) {
		t.Fatalf("got error %v, want %v", err, orchestrator.ErrFulfillmentTimeout)
	}
	if kind := orchestrator.KindOf(err); kind != orchestrator.KindTimeout {
		t.Fatalf("got kind %v, want %v", kind, orchestrator.KindTimeout)
	}
}

func TestFulfillmentCanceled(t *testing.T) {
	f := newFixture(t,
		withRaffle(func(r raffle.Interface) raffle.Interface { return silentRaffle{r} }),
		withFulfillmentTimeout(time.Minute),
	)
	f.enter(t, alice)
	requestID := f.upkeep(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.orchestrator.AwaitFulfillment(ctx, requestID, nil)
	if errors.Is(err, orchestrator.ErrFulfillmentTimeout) {
		t.Fatal("context deadline reported as fulfillment timeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got error %v, want %v", err, context.DeadlineExceeded)
	}
}

// eagerRaffle claims upkeep is always needed.
type eagerRaffle struct {
	raffle.Interface
}

func (eagerRaffle) CheckUpkeep(ctx context.Context) (bool, error) {
	return true, nil
}

func TestCheckEligibilityInvariant(t *testing.T) {
	f := newFixture(t, withRaffle(func(r raffle.Interface) raffle.Interface { return eagerRaffle{r} }))

	_, err := f.orchestrator.CheckEligibility(context.Background())
	var ie *orchestrator.InvariantError
	if !errors.As(err, &ie) {
		t.Fatalf("got error %v, want invariant violation", err)
	}
	if ie.Invariant != "eligibility" {
		t.Fatalf("got invariant %q, want eligibility", ie.Invariant)
	}
}

func TestKindOf(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want orchestrator.Kind
	}{
		{err: nil, want: orchestrator.KindOther},
		{err: errors.New("boom"), want: orchestrator.KindOther},
		{err: fmt.Errorf("enter: %w", raffle.ErrInsufficientFee), want: orchestrator.KindPrecondition},
		{err: fmt.Errorf("enter: %w", raffle.ErrNotOpen), want: orchestrator.KindPrecondition},
		{err: &raffle.UpkeepNotNeededError{Balance: new(big.Int)}, want: orchestrator.KindPrecondition},
		{err: vrf.ErrNonexistentRequest, want: orchestrator.KindPrecondition},
		{err: fmt.Errorf("wait: %w", orchestrator.ErrFulfillmentTimeout), want: orchestrator.KindTimeout},
		{err: &orchestrator.InvariantError{Invariant: "payout"}, want: orchestrator.KindInvariant},
		{err: fmt.Errorf("chain 7: %w", config.ErrUnknownChain), want: orchestrator.KindConfig},
		{err: &config.MissingFieldError{ChainID: 5, Field: "subscriptionId"}, want: orchestrator.KindConfig},
	} {
		if got := orchestrator.KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v): got %v, want %v", tc.err, got, tc.want)
		}
	}
}
