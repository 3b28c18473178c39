// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"math/big"

	"github.com/rafflekit/rafflekit/pkg/bigint"
	"github.com/rafflekit/rafflekit/pkg/nft"
	"github.com/spf13/cobra"
)

const optionNameQuantity = "quantity"

func (c *command) initMintCmd() {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint NFTs from the deployer account at the mint price",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}
			quantity := c.config.GetUint64(optionNameQuantity)
			if quantity == 0 {
				return fmt.Errorf("invalid %s: must be positive", optionNameQuantity)
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

			owner := s.chain.Deployer().Address
			n, err := s.nft(owner)
			if err != nil {
				return err
			}
			price, err := n.MintPrice(s.ctx)
			if err != nil {
				return err
			}
			value := new(big.Int).Mul(price, new(big.Int).SetUint64(quantity))

			cmd.Println("Minting NFT...")
			h, err := n.Mint(s.ctx, quantity, value)
			if err != nil {
				return err
			}
			receipt, err := h.Wait(s.ctx)
			if err != nil {
				return err
			}
			ids, err := nft.MintedTokens(receipt, n.Address(), owner)
			if err != nil {
				return err
			}
			logger.Infof("minted tokens %v for %s ether in tx %s", ids, bigint.Ether(value), receipt.TxHash)
			cmd.Println("Minted!")
			return nil
		},
		PreRunE: c.bindFlags,
	}

	c.setAllFlags(cmd)
	cmd.Flags().Uint64(optionNameQuantity, 1, "number of tokens to mint")

	c.root.AddCommand(cmd)
}

func (c *command) initWithdrawCmd() {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw the NFT sale proceeds to the owner",
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

			n, err := s.nft(s.chain.Deployer().Address)
			if err != nil {
				return err
			}

			cmd.Println("Withdraw from contract...")
			h, err := n.WithdrawFunds(s.ctx)
			if err != nil {
				return err
			}
			receipt, err := h.Wait(s.ctx)
			if err != nil {
				return err
			}
			logger.Infof("withdrawn in tx %s", receipt.TxHash)
			cmd.Println("Withdrawn!")
			return nil
		},
		PreRunE: c.bindFlags,
	}

	c.setAllFlags(cmd)

	c.root.AddCommand(cmd)
}
