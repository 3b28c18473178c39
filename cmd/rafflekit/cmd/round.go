// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"math/big"
	"time"

	"github.com/rafflekit/rafflekit/pkg/bigint"
	"github.com/rafflekit/rafflekit/pkg/orchestrator"
	"github.com/spf13/cobra"
)

const (
	optionNamePlayers            = "players"
	optionNameFulfillmentTimeout = "fulfillment-timeout"
	optionNameRandomWord         = "random-word"
)

const defaultFulfillmentTimeout = 500 * time.Second

func (c *command) initRoundCmd() {
	cmd := &cobra.Command{
		Use:   "round",
		Short: "Play a raffle round with the configured accounts",
		Long: `Round enters the player accounts into the raffle, waits for the interval,
performs upkeep and waits for the winner. On development chains the interval is
skipped and the request is fulfilled through the coordinator mock. On live
chains the keepers and the VRF coordinator are awaited.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}
			var word *big.Int
			if v := c.config.GetString(optionNameRandomWord); v != "" {
				var ok bool
				if word, ok = new(big.Int).SetString(v, 10); !ok {
					return fmt.Errorf("invalid %s %q", optionNameRandomWord, v)
				}
			}
			logger, err := c.newLogger(cmd)
			if err != nil {
				return err
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

			o, err := s.orchestrator(c.config.GetDuration(optionNameFulfillmentTimeout))
			if err != nil {
				return err
			}

			addresses := s.chain.Addresses()
			if n := c.config.GetInt(optionNamePlayers); n > 0 && n < len(addresses) {
				addresses = addresses[:n]
			}
			players := make([]orchestrator.Player, 0, len(addresses))
			for _, a := range addresses {
				r, err := s.raffle(a)
				if err != nil {
					return err
				}
				players = append(players, orchestrator.Player{Address: a, Raffle: r})
			}

			outcome, err := o.RunRound(s.ctx, players, word)
			if err != nil {
				return fmt.Errorf("round (%s): %w", orchestrator.KindOf(err), err)
			}
			cmd.Printf("Winner: %s\n", outcome.Winner)
			cmd.Printf("Pot: %s ether from %d players\n", bigint.Ether(outcome.Pot), len(outcome.Players))
			cmd.Printf("Request %v settled in tx %s (block %d) after %v\n", outcome.RequestID, outcome.TxHash, outcome.BlockNumber, outcome.Duration.Round(time.Millisecond))
			return nil
		},
		PreRunE: c.bindFlags,
	}

	c.setAllFlags(cmd)
	cmd.Flags().Int(optionNamePlayers, 0, "number of player accounts to enter, all but the deployer when 0")
	cmd.Flags().Duration(optionNameFulfillmentTimeout, defaultFulfillmentTimeout, "maximum wait for the winner, 0 waits until interrupted")
	cmd.Flags().String(optionNameRandomWord, "", "random word the coordinator mock fulfills with, its default word when empty")

	c.root.AddCommand(cmd)
}

// orchestrator returns an orchestrator operated by the deployer. The clock is
// moved and requests fulfilled directly on development chains only.
func (s *session) orchestrator(fulfillmentTimeout time.Duration) (*orchestrator.Orchestrator, error) {
	deployer := s.chain.Deployer().Address
	r, err := s.raffle(deployer)
	if err != nil {
		return nil, err
	}
	oracle, err := s.oracle()
	if err != nil {
		return nil, err
	}
	o := orchestrator.Options{
		Logger:             s.logger,
		Tracer:             s.tracer,
		Raffle:             r,
		Operator:           deployer,
		Oracle:             oracle,
		Chain:              s.chain.Dev,
		FulfillmentTimeout: fulfillmentTimeout,
		PollInterval:       s.pollingInterval,
	}
	if s.config.Development {
		o.TimeTraveler = s.chain.Dev
	}
	return orchestrator.New(o), nil
}
