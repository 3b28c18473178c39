// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/rafflekit/rafflekit/pkg/bigint"
	"github.com/spf13/cobra"
)

func (c *command) initNetworksCmd() {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "Print the chain configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			networks, err := c.networks()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN\tNAME\tDEVELOPMENT\tENTRANCE FEE\tINTERVAL\tCOORDINATOR\tSUBSCRIPTION\tMAX SUPPLY\tCONFIRMATIONS")
			for _, id := range networks.ChainIDs() {
				n, err := networks.Get(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%t\t%s\t%v\t%s\t%d\t%v\t%d\n", n.ChainID, n.Name, n.Development, bigint.Ether(n.EntranceFee), n.Interval, n.VRFCoordinator, n.SubscriptionID, n.MaxSupply, n.BlockConfirmations)
			}
			return w.Flush()
		},
		PreRunE: c.bindFlags,
	}

	cmd.Flags().String(optionNameNetworksFile, "", "YAML file with per chain configuration overrides")

	c.root.AddCommand(cmd)
}
