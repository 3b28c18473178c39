// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"net/http"
	"os"
	"time"

	"github.com/rafflekit/rafflekit/pkg/deploy"
	"github.com/spf13/cobra"
)

const (
	optionNameTags            = "tags"
	optionNameArtifactsDir    = "artifacts-dir"
	optionNameUpdateFrontEnd  = "update-front-end"
	optionNameFrontEndDir     = "front-end-dir"
	optionNameEtherscanAPIKey = "etherscan-api-key"
)

const verifyTimeout = 30 * time.Second

func (c *command) initDeployCmd() {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the VRF coordinator mock, the raffle and the NFT",
		Long: `Deploy runs the deployment steps selected by --tags in order: the VRF
coordinator mock on development chains, the raffle, the NFT and the front end
export. Live chain deployments are verified on Etherscan when an api key is set.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
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

			account := s.chain.Deployer()
			o := deploy.Options{
				Logger:    logger,
				Chain:     s.config,
				Deployer:  deploy.NewDeployer(logger, account.TxService, account.Monitor, s.registry, s.config.BlockConfirmations, s.config.GasLimit),
				Artifacts: deploy.NewArtifacts(c.fs, c.config.GetString(optionNameArtifactsDir)),
				Backend:   s.chain.Backend,
				TxService: account.TxService,
			}
			if c.config.GetBool(optionNameUpdateFrontEnd) || os.Getenv("UPDATE_FRONT_END") != "" {
				o.FrontEnd = deploy.NewFrontEnd(c.fs, c.config.GetString(optionNameFrontEndDir))
			}
			if !s.config.Development {
				key := c.config.GetString(optionNameEtherscanAPIKey)
				if key == "" {
					key = os.Getenv("ETHERSCAN_API_KEY")
				}
				if key == "" {
					logger.Warning("no etherscan api key, skipping verification")
				} else if apiURL, err := deploy.EtherscanAPIURL(s.config.ChainID); err != nil {
					logger.Warningf("skipping verification: %v", err)
				} else {
					o.Verifier = deploy.NewVerifier(logger, s.tracer, &http.Client{Timeout: verifyTimeout}, apiURL, key)
				}
			}

			res, err := deploy.NewFlow(o).Run(s.ctx, c.config.GetStringSlice(optionNameTags)...)
			if err != nil {
				return err
			}
			if res.Coordinator != nil {
				cmd.Printf("%s deployed at %s\n", deploy.CoordinatorMockContract, res.Coordinator.Address)
			}
			if res.Raffle != nil {
				cmd.Printf("%s deployed at %s (subscription %d)\n", deploy.RaffleContract, res.Raffle.Address, res.SubscriptionID)
			}
			if res.NFT != nil {
				cmd.Printf("%s deployed at %s\n", deploy.NFTContract, res.NFT.Address)
			}
			return nil
		},
		PreRunE: c.bindFlags,
	}

	c.setAllFlags(cmd)
	cmd.Flags().StringSlice(optionNameTags, nil, "deployment steps to run (all, mocks, raffle, nft, frontend), every step when empty")
	cmd.Flags().String(optionNameArtifactsDir, "artifacts", "directory of the compiled contract artifacts")
	cmd.Flags().Bool(optionNameUpdateFrontEnd, false, "export the raffle address and abi to the front end, also enabled by $UPDATE_FRONT_END")
	cmd.Flags().String(optionNameFrontEndDir, "../frontend_hardhat_raffle/constants", "front end constants directory")
	cmd.Flags().String(optionNameEtherscanAPIKey, "", "etherscan api key, defaults to $ETHERSCAN_API_KEY")

	c.root.AddCommand(cmd)
}
