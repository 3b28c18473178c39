// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scenario holds the raffle and NFT scenarios run against a
// deployment. Scenarios are tagged with the kind of chain they need and
// are selected with filters before a Suite is built, so a suite only ever
// contains scenarios that can run on its chain.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/rafflekit/rafflekit/pkg/config"
	"github.com/rafflekit/rafflekit/pkg/devchain"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/nft"
	"github.com/rafflekit/rafflekit/pkg/orchestrator"
	"github.com/rafflekit/rafflekit/pkg/raffle"
	"github.com/rafflekit/rafflekit/pkg/vrf"
)

type Tag string

const (
	// TagDevelopment scenarios control the clock and the coordinator.
	TagDevelopment Tag = "development"
	// TagStaging scenarios rely on live keepers and a live coordinator.
	TagStaging Tag = "staging"
	TagRaffle  Tag = "raffle"
	TagNFT     Tag = "nft"
)

var errNoTimeTravel = errors.New("chain cannot advance time")

// Env is the deployment a scenario runs against.
type Env struct {
	Logger logging.Logger
	Config config.ChainConfig
	Chain  devchain.Chain
	// TimeTraveler is nil on live chains.
	TimeTraveler devchain.TimeTraveler
	Deployer     common.Address
	// Accounts are the funded accounts other than the deployer.
	Accounts []common.Address
	Raffle   func(from common.Address) raffle.Interface
	// Oracle is the coordinator mock as seen by the deployer. It is nil on
	// live chains.
	Oracle             vrf.Interface
	NFT                func(from common.Address) nft.Interface
	FulfillmentTimeout time.Duration
}

// Orchestrator returns a new orchestrator operated by the deployer.
func (e *Env) Orchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		Logger:             e.Logger,
		Raffle:             e.Raffle(e.Deployer),
		Operator:           e.Deployer,
		Oracle:             e.Oracle,
		Chain:              e.Chain,
		TimeTraveler:       e.TimeTraveler,
		FulfillmentTimeout: e.FulfillmentTimeout,
	})
}

// Player returns the entrant for account.
func (e *Env) Player(account common.Address) orchestrator.Player {
	return orchestrator.Player{Address: account, Raffle: e.Raffle(account)}
}

// Account returns the i-th non deployer account.
func (e *Env) Account(i int) (common.Address, error) {
	if i >= len(e.Accounts) {
		return common.Address{}, fmt.Errorf("account %d: only %d accounts configured", i, len(e.Accounts))
	}
	return e.Accounts[i], nil
}

type Scenario struct {
	Name string
	Tags []Tag
	Run  func(ctx context.Context, env *Env) error
}

// HasTag reports whether s carries tag.
func (s Scenario) HasTag(tag Tag) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Filter selects scenarios.
type Filter func(Scenario) bool

// FilterFor selects the scenarios that can run on chain: development
// scenarios on development chains and staging scenarios elsewhere.
func FilterFor(chain config.ChainConfig) Filter {
	want := TagStaging
	if chain.Development {
		want = TagDevelopment
	}
	return func(s Scenario) bool {
		return s.HasTag(want)
	}
}

// WithAnyTag selects scenarios carrying at least one of tags. Without tags
// it selects everything.
func WithAnyTag(tags ...Tag) Filter {
	return func(s Scenario) bool {
		if len(tags) == 0 {
			return true
		}
		for _, t := range tags {
			if s.HasTag(t) {
				return true
			}
		}
		return false
	}
}

// Select returns the scenarios accepted by every filter, in order.
func Select(scenarios []Scenario, filters ...Filter) []Scenario {
	var selected []Scenario
next:
	for _, s := range scenarios {
		for _, f := range filters {
			if !f(s) {
				continue next
			}
		}
		selected = append(selected, s)
	}
	return selected
}

// All returns every known scenario.
func All() []Scenario {
	return append(RaffleScenarios(), NFTScenarios()...)
}

// Fixture provides a fresh environment for every scenario.
type Fixture interface {
	Setup(ctx context.Context) (*Env, error)
	Teardown(ctx context.Context, env *Env) error
}

// Result is the outcome of a single scenario.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

type Suite struct {
	logger    logging.Logger
	fixture   Fixture
	scenarios []Scenario
}

// NewSuite builds a suite of already selected scenarios.
func NewSuite(logger logging.Logger, fixture Fixture, scenarios []Scenario) *Suite {
	return &Suite{
		logger:    logger,
		fixture:   fixture,
		scenarios: scenarios,
	}
}

func (s *Suite) Len() int {
	return len(s.scenarios)
}

// Run runs every scenario in its own environment. It returns the results
// and the failures aggregated into one error.
func (s *Suite) Run(ctx context.Context) ([]Result, error) {
	var (
		results []Result
		result  *multierror.Error
	)
	for _, sc := range s.scenarios {
		if err := ctx.Err(); err != nil {
			return results, multierror.Append(result, err)
		}
		start := time.Now()
		err := s.run(ctx, sc)
		results = append(results, Result{Name: sc.Name, Err: err, Duration: time.Since(start)})
		if err != nil {
			s.logger.Errorf("scenario %s: FAIL: %v", sc.Name, err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", sc.Name, err))
			continue
		}
		s.logger.Infof("scenario %s: ok (%v)", sc.Name, time.Since(start).Round(time.Millisecond))
	}
	return results, result.ErrorOrNil()
}

func (s *Suite) run(ctx context.Context, sc Scenario) (err error) {
	env, err := s.fixture.Setup(ctx)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer func() {
		if terr := s.fixture.Teardown(ctx, env); terr != nil {
			err = multierror.Append(err, fmt.Errorf("teardown: %w", terr))
		}
	}()
	return sc.Run(ctx, env)
}
