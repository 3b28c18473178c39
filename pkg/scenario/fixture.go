// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/config"
	"github.com/rafflekit/rafflekit/pkg/devchain"
	devchainMock "github.com/rafflekit/rafflekit/pkg/devchain/mock"
	"github.com/rafflekit/rafflekit/pkg/logging"
	nftMock "github.com/rafflekit/rafflekit/pkg/nft/mock"
	raffleMock "github.com/rafflekit/rafflekit/pkg/raffle/mock"
	"github.com/rafflekit/rafflekit/pkg/vrf"
)

// HardhatAccounts are the first default accounts of a hardhat node. The
// first one deploys.
var HardhatAccounts = []common.Address{
	common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
	common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
	common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"),
	common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906"),
	common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65"),
}

// Deterministic addresses of the first deployments by the hardhat deployer.
var (
	coordinatorAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	raffleAddress      = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	nftAddress         = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
)

var accountFunds = new(big.Int).Mul(big.NewInt(10_000), big.NewInt(1e18))

// InMemoryFixture deploys the contracts on a fresh in-memory chain for every
// scenario.
type InMemoryFixture struct {
	logger logging.Logger
	config config.ChainConfig
}

func NewInMemoryFixture(logger logging.Logger, cfg config.ChainConfig) *InMemoryFixture {
	return &InMemoryFixture{logger: logger, config: cfg}
}

func (f *InMemoryFixture) Setup(ctx context.Context) (*Env, error) {
	opts := make([]devchainMock.Option, 0, len(HardhatAccounts))
	for _, a := range HardhatAccounts {
		opts = append(opts, devchainMock.WithBalance(a, accountFunds))
	}
	chain := devchainMock.New(opts...)
	deployer := HardhatAccounts[0]

	coordinator := raffleMock.NewCoordinator(chain, coordinatorAddress)
	oracle := coordinator.Client(deployer)
	subID, err := oracle.CreateSubscription(ctx)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	if err := oracle.FundSubscription(ctx, subID, vrf.FundAmount); err != nil {
		return nil, fmt.Errorf("fund subscription %d: %w", subID, err)
	}
	r := raffleMock.New(chain, coordinator, raffleAddress, raffleMock.Config{
		EntranceFee:      f.config.EntranceFee,
		Interval:         f.config.Interval,
		KeyHash:          f.config.KeyHash,
		SubscriptionID:   subID,
		CallbackGasLimit: f.config.CallbackGasLimit,
	})
	if err := oracle.AddConsumer(ctx, subID, r.Address()); err != nil {
		return nil, fmt.Errorf("add consumer: %w", err)
	}
	n := nftMock.New(chain, nftAddress, deployer, f.config.MaxSupply)

	cfg := f.config
	cfg.SubscriptionID = subID
	return &Env{
		Logger:       f.logger,
		Config:       cfg,
		Chain:        chain,
		TimeTraveler: chain,
		Deployer:     deployer,
		Accounts:     HardhatAccounts[1:],
		Raffle:       r.Client,
		Oracle:       oracle,
		NFT:          n.Client,
	}, nil
}

func (f *InMemoryFixture) Teardown(context.Context, *Env) error {
	return nil
}

// SnapshotFixture runs every scenario against the same deployment on a
// development node, reverting the node to a snapshot taken before the
// scenario.
type SnapshotFixture struct {
	env         Env
	snapshotter devchain.Snapshotter
	snapshot    string
}

func NewSnapshotFixture(env Env, snapshotter devchain.Snapshotter) *SnapshotFixture {
	return &SnapshotFixture{env: env, snapshotter: snapshotter}
}

func (f *SnapshotFixture) Setup(ctx context.Context) (*Env, error) {
	id, err := f.snapshotter.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	f.snapshot = id
	env := f.env
	return &env, nil
}

func (f *SnapshotFixture) Teardown(ctx context.Context, _ *Env) error {
	if f.snapshot == "" {
		return nil
	}
	id := f.snapshot
	f.snapshot = ""
	if err := f.snapshotter.Revert(ctx, id); err != nil {
		return fmt.Errorf("revert to snapshot %s: %w", id, err)
	}
	return nil
}

// StaticFixture hands out the same deployment for every scenario. It is
// used on live chains where state cannot be reset.
type StaticFixture struct {
	env Env
}

func NewStaticFixture(env Env) *StaticFixture {
	return &StaticFixture{env: env}
}

func (f *StaticFixture) Setup(context.Context) (*Env, error) {
	env := f.env
	return &env, nil
}

func (f *StaticFixture) Teardown(context.Context, *Env) error {
	return nil
}
