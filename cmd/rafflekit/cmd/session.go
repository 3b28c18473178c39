// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/rafflekit/rafflekit/pkg/config"
	"github.com/rafflekit/rafflekit/pkg/crypto"
	"github.com/rafflekit/rafflekit/pkg/deploy"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/nft"
	"github.com/rafflekit/rafflekit/pkg/node"
	"github.com/rafflekit/rafflekit/pkg/raffle"
	"github.com/rafflekit/rafflekit/pkg/sctx"
	"github.com/rafflekit/rafflekit/pkg/tracing"
	"github.com/rafflekit/rafflekit/pkg/vrf"
	"github.com/spf13/cobra"
)

// hardhatKeys are the well known keys of the default hardhat node accounts.
var hardhatKeys = []string{
	"0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"0x5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"0x7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"0x47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
}

// liveKeyVars are read in account order for live networks.
var liveKeyVars = []string{
	"DEV01_PRIVATE_KEY",
	"DEV02_PRIVATE_KEY",
	"DEV03_PRIVATE_KEY",
	"DEV00_PRIVATE_KEY",
}

// session is a connection to a node with the accounts, the chain
// configuration and the deployment registry of the connected chain.
type session struct {
	ctx      context.Context
	logger   logging.Logger
	tracer   *tracing.Tracer
	chain    *node.Chain
	config   config.ChainConfig
	registry *deploy.Registry

	pollingInterval time.Duration
	closers         []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func (c *command) networks() (*config.Networks, error) {
	path := c.config.GetString(optionNameNetworksFile)
	if path == "" {
		return config.NewNetworks()
	}
	overrides, err := config.ReadOverrides(c.fs, path)
	if err != nil {
		return nil, err
	}
	return config.NewNetworks(overrides...)
}

func (c *command) rpcEndpoint() string {
	if e := c.config.GetString(optionNameRPCEndpoint); e != "" {
		return e
	}
	if strings.EqualFold(c.config.GetString(optionNameNetwork), "goerli") {
		if e := os.Getenv("GOERLI_RPC_URL"); e != "" {
			return e
		}
	}
	return defaultRPCEndpoint
}

// privateKeys returns the configured keys, the DEVxx_PRIVATE_KEY variables
// on live networks or the hardhat default keys on development networks.
func (c *command) privateKeys(logger logging.Logger) ([]*ecdsa.PrivateKey, error) {
	var values []string
	for _, v := range c.config.GetStringSlice(optionNamePrivateKeys) {
		values = append(values, strings.Split(v, ",")...)
	}
	if len(values) > 0 {
		return crypto.DecodeHexKeys(values...)
	}

	network := c.config.GetString(optionNameNetwork)
	if config.IsDevelopmentChain(network) {
		logger.Debugf("using default %s accounts", network)
		return crypto.DecodeHexKeys(hardhatKeys...)
	}
	for _, name := range liveKeyVars {
		values = append(values, os.Getenv(name))
	}
	keys, err := crypto.DecodeHexKeys(values...)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("network %s: set --%s or %s: %w", network, optionNamePrivateKeys, strings.Join(liveKeyVars, ", "), node.ErrNoAccounts)
	}
	return keys, nil
}

// connect opens the state store, dials the node and resolves the chain
// configuration. Live chains are waited on until synced.
func (c *command) connect(cmd *cobra.Command, logger logging.Logger) (_ *session, err error) {
	s := &session{logger: logger}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if v := c.config.GetString(optionNameGasPrice); v != "" {
		price, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return nil, fmt.Errorf("invalid gas price %q", v)
		}
		ctx = sctx.SetGasPrice(ctx, price)
	}
	s.ctx = ctx

	tracer, tracerCloser, err := tracing.NewTracer(&tracing.Options{
		Enabled:     c.config.GetBool(optionNameTracingEnabled),
		Endpoint:    c.config.GetString(optionNameTracingEndpoint),
		ServiceName: c.config.GetString(optionNameTracingServiceName),
	})
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}
	s.tracer = tracer
	s.closers = append(s.closers, tracerCloser)

	networks, err := c.networks()
	if err != nil {
		return nil, err
	}
	keys, err := c.privateKeys(logger)
	if err != nil {
		return nil, err
	}

	stateStore, err := node.InitStateStore(logger, c.config.GetString(optionNameDataDir))
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}
	s.closers = append(s.closers, stateStore)

	pollingInterval := c.config.GetDuration(optionNamePollingInterval)
	chain, err := node.InitChain(ctx, logger, stateStore, c.rpcEndpoint(), keys, pollingInterval)
	if err != nil {
		return nil, err
	}
	s.chain = chain
	s.closers = append(s.closers, closerFunc(chain.Close))
	s.pollingInterval = pollingInterval

	if s.config, err = networks.Get(chain.ChainID); err != nil {
		return nil, err
	}
	logger.Infof("connected to %s (chain %d), deployer %s", s.config.Name, chain.ChainID, chain.Deployer().Address)

	if !s.config.Development {
		if err := chain.WaitSynced(ctx, logger); err != nil {
			return nil, err
		}
	}
	s.registry = deploy.NewRegistry(stateStore, chain.ChainID)
	return s, nil
}

// sender returns the account of from. Unknown senders fall back to the
// deployer.
func (s *session) sender(from common.Address) node.Account {
	account, ok := s.chain.Account(from)
	if !ok {
		return s.chain.Deployer()
	}
	return account
}

// raffle returns a client of the deployed raffle sending from account from.
func (s *session) raffle(from common.Address) (raffle.Interface, error) {
	address, err := s.registry.Address(deploy.RaffleContract)
	if err != nil {
		return nil, err
	}
	return raffle.New(s.chain.Backend, s.sender(from).TxService, address, s.pollingInterval), nil
}

// nft returns a client of the deployed NFT sending from account from.
func (s *session) nft(from common.Address) (nft.Interface, error) {
	address, err := s.registry.Address(deploy.NFTContract)
	if err != nil {
		return nil, err
	}
	return nft.New(s.sender(from).TxService, address), nil
}

// oracle returns the deployer's client of the coordinator mock on
// development chains and nil on live chains.
func (s *session) oracle() (vrf.Interface, error) {
	if !s.config.Development {
		return nil, nil
	}
	address, err := s.registry.Address(deploy.CoordinatorMockContract)
	if err != nil {
		return nil, err
	}
	return vrf.New(s.chain.Backend, s.chain.Deployer().TxService, address), nil
}

// Close releases the node connection and the state store in reverse order.
func (s *session) Close() error {
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	s.closers = nil
	return result.ErrorOrNil()
}
