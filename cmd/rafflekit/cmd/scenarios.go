// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/config"
	"github.com/rafflekit/rafflekit/pkg/deploy"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/nft"
	"github.com/rafflekit/rafflekit/pkg/raffle"
	"github.com/rafflekit/rafflekit/pkg/scenario"
	"github.com/spf13/cobra"
)

const (
	optionNameInMemory     = "in-memory"
	optionNameScenarioTags = "scenario-tags"
)

// hardhatChainID selects the in-memory chain configuration.
const hardhatChainID = 31337

func (c *command) initScenariosCmd() {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Run the raffle and NFT scenarios against a chain",
		Long: `Scenarios runs the development scenarios on development chains, resetting
the chain with a snapshot between scenarios, and the staging scenarios on live
chains. With --in-memory the development scenarios run against in-memory
contracts without a node.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}
			logger, err := c.newLogger(cmd)
			if err != nil {
				return err
			}
			var tags []scenario.Tag
			for _, t := range c.config.GetStringSlice(optionNameScenarioTags) {
				tags = append(tags, scenario.Tag(t))
			}

			if c.config.GetBool(optionNameInMemory) {
				networks, err := c.networks()
				if err != nil {
					return err
				}
				cfg, err := networks.Get(hardhatChainID)
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				if ctx == nil {
					ctx = context.Background()
				}
				return runScenarios(ctx, cmd, logger, cfg, scenario.NewInMemoryFixture(logger, cfg), tags)
			}

			s, err := c.connect(cmd, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := s.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			env, err := s.scenarioEnv(c.config.GetDuration(optionNameFulfillmentTimeout))
			if err != nil {
				return err
			}
			var fixture scenario.Fixture = scenario.NewStaticFixture(env)
			if s.config.Development {
				fixture = scenario.NewSnapshotFixture(env, s.chain.Dev)
			}
			return runScenarios(s.ctx, cmd, logger, s.config, fixture, tags)
		},
		PreRunE: c.bindFlags,
	}

	c.setAllFlags(cmd)
	cmd.Flags().Bool(optionNameInMemory, false, "run against in-memory contracts instead of a node")
	cmd.Flags().StringSlice(optionNameScenarioTags, nil, "run only scenarios with any of these tags (raffle, nft)")
	cmd.Flags().Duration(optionNameFulfillmentTimeout, defaultFulfillmentTimeout, "maximum wait for a winner")

	c.root.AddCommand(cmd)
}

func runScenarios(ctx context.Context, cmd *cobra.Command, logger logging.Logger, cfg config.ChainConfig, fixture scenario.Fixture, tags []scenario.Tag) error {
	selected := scenario.Select(scenario.All(), scenario.FilterFor(cfg), scenario.WithAnyTag(tags...))
	suite := scenario.NewSuite(logger, fixture, selected)
	logger.Infof("running %d scenarios on %s", suite.Len(), cfg.Name)

	results, err := suite.Run(ctx)
	passed := 0
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = "FAIL"
		} else {
			passed++
		}
		cmd.Printf("%-4s %s (%v)\n", status, r.Name, r.Duration.Round(time.Millisecond))
	}
	cmd.Printf("%d/%d scenarios passed\n", passed, suite.Len())
	return err
}

// scenarioEnv describes the deployments of the connected chain.
func (s *session) scenarioEnv(fulfillmentTimeout time.Duration) (scenario.Env, error) {
	raffleAddress, err := s.registry.Address(deploy.RaffleContract)
	if err != nil {
		return scenario.Env{}, err
	}
	nftAddress, err := s.registry.Address(deploy.NFTContract)
	if err != nil {
		return scenario.Env{}, err
	}
	oracle, err := s.oracle()
	if err != nil {
		return scenario.Env{}, err
	}
	env := scenario.Env{
		Logger:   s.logger,
		Config:   s.config,
		Chain:    s.chain.Dev,
		Deployer: s.chain.Deployer().Address,
		Accounts: s.chain.Addresses(),
		Raffle: func(from common.Address) raffle.Interface {
			return raffle.New(s.chain.Backend, s.sender(from).TxService, raffleAddress, s.pollingInterval)
		},
		Oracle: oracle,
		NFT: func(from common.Address) nft.Interface {
			return nft.New(s.sender(from).TxService, nftAddress)
		},
		FulfillmentTimeout: fulfillmentTimeout,
	}
	if s.config.Development {
		env.TimeTraveler = s.chain.Dev
	}
	return env, nil
}
