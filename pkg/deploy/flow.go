// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deploy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/config"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/nft"
	"github.com/rafflekit/rafflekit/pkg/transaction"
	"github.com/rafflekit/rafflekit/pkg/vrf"
)

// Contract names as compiled.
const (
	CoordinatorMockContract = "VRFCoordinatorV2Mock"
	RaffleContract          = "Raffle"
	NFTContract             = "RefundableERC721"
)

// Deployment tags. TagAll selects every step.
const (
	TagAll      = "all"
	TagMocks    = "mocks"
	TagRaffle   = "raffle"
	TagNFT      = "nft"
	TagFrontEnd = "frontend"
)

// Options configure a Flow. Verifier and FrontEnd are optional.
type Options struct {
	Logger    logging.Logger
	Chain     config.ChainConfig
	Deployer  *Deployer
	Artifacts *Artifacts
	Backend   transaction.Backend
	TxService transaction.Service
	Verifier  *Verifier
	FrontEnd  *FrontEnd
	// NewCoordinator binds a coordinator client, vrf.New by default.
	NewCoordinator func(address common.Address) vrf.Interface
}

// Flow runs the deployment steps of a chain in order: mocks, raffle, nft,
// front end.
type Flow struct {
	Options
}

// Result holds what a run deployed.
type Result struct {
	Coordinator    *Deployment
	Raffle         *Deployment
	NFT            *Deployment
	SubscriptionID uint64
}

func NewFlow(o Options) *Flow {
	if o.NewCoordinator == nil {
		o.NewCoordinator = func(address common.Address) vrf.Interface {
			return vrf.New(o.Backend, o.TxService, address)
		}
	}
	return &Flow{Options: o}
}

// Run executes the steps selected by tags, all steps without tags.
func (f *Flow) Run(ctx context.Context, tags ...string) (Result, error) {
	selected := func(tag string) bool {
		if len(tags) == 0 {
			return true
		}
		for _, t := range tags {
			if t == tag || t == TagAll {
				return true
			}
		}
		return false
	}

	var res Result
	if f.Chain.Development && selected(TagMocks) {
		d, err := f.DeployMocks(ctx)
		if err != nil {
			return res, err
		}
		res.Coordinator = &d
	}
	if selected(TagRaffle) {
		d, subID, err := f.DeployRaffle(ctx)
		if err != nil {
			return res, err
		}
		res.Raffle, res.SubscriptionID = &d, subID
	}
	if selected(TagNFT) {
		d, err := f.DeployNFT(ctx)
		if err != nil {
			return res, err
		}
		res.NFT = &d
	}
	if f.FrontEnd != nil && selected(TagFrontEnd) {
		if err := f.UpdateFrontEnd(ctx); err != nil {
			return res, err
		}
	}
	return res, nil
}

// DeployMocks deploys the VRF coordinator mock. It is a no-op on live
// chains.
func (f *Flow) DeployMocks(ctx context.Context) (Deployment, error) {
	if !f.Chain.Development {
		return Deployment{}, nil
	}
	f.Logger.Infof("development chain %s detected, deploying mocks", f.Chain.Name)
	a, err := f.Artifacts.Get(CoordinatorMockContract)
	if err != nil {
		return Deployment{}, err
	}
	return f.Deployer.Deploy(ctx, a, vrf.BaseFee, vrf.GasPriceLink)
}

// DeployRaffle deploys the raffle. On development chains it creates and
// funds a subscription on the coordinator mock and adds the raffle as its
// consumer, on live chains the coordinator and subscription come from the
// chain configuration.
func (f *Flow) DeployRaffle(ctx context.Context) (Deployment, uint64, error) {
	cfg := f.Chain
	var (
		coordinator vrf.Interface
		subID       uint64
	)
	if cfg.Development {
		address, err := f.Deployer.Registry().Address(CoordinatorMockContract)
		if err != nil {
			return Deployment{}, 0, err
		}
		coordinator = f.NewCoordinator(address)
		if subID, err = coordinator.CreateSubscription(ctx); err != nil {
			return Deployment{}, 0, err
		}
		if err := coordinator.FundSubscription(ctx, subID, vrf.FundAmount); err != nil {
			return Deployment{}, 0, err
		}
		f.Logger.Infof("created subscription %d on %s", subID, address)
		cfg.VRFCoordinator = address
		cfg.SubscriptionID = subID
	} else {
		if err := cfg.Validate(); err != nil {
			return Deployment{}, 0, err
		}
		subID = cfg.SubscriptionID
	}

	a, err := f.Artifacts.Get(RaffleContract)
	if err != nil {
		return Deployment{}, 0, err
	}
	args := RaffleArgs(cfg)
	d, err := f.Deployer.Deploy(ctx, a, args...)
	if err != nil {
		return Deployment{}, 0, err
	}

	if coordinator != nil {
		if err := coordinator.AddConsumer(ctx, subID, d.Address); err != nil {
			return Deployment{}, 0, fmt.Errorf("add raffle as consumer: %w", err)
		}
	}
	if err := f.verify(ctx, a, d.Address, args); err != nil {
		return Deployment{}, 0, err
	}
	return d, subID, nil
}

// DeployNFT deploys the refundable NFT.
func (f *Flow) DeployNFT(ctx context.Context) (Deployment, error) {
	a, err := f.Artifacts.Get(NFTContract)
	if err != nil {
		return Deployment{}, err
	}
	args := NFTArgs(f.Chain)
	d, err := f.Deployer.Deploy(ctx, a, args...)
	if err != nil {
		return Deployment{}, err
	}
	if err := f.verify(ctx, a, d.Address, args); err != nil {
		return Deployment{}, err
	}
	return d, nil
}

// UpdateFrontEnd exports the raffle address and abi.
func (f *Flow) UpdateFrontEnd(ctx context.Context) error {
	d, err := f.Deployer.Registry().Get(RaffleContract)
	if err != nil {
		return err
	}
	f.Logger.Info("updating front end")
	return f.FrontEnd.Update(f.Chain.ChainID, d.Address, d.ABI)
}

func (f *Flow) verify(ctx context.Context, a *Artifact, address common.Address, args []interface{}) error {
	if f.Verifier == nil || f.Chain.Development {
		return nil
	}
	info, err := f.Artifacts.BuildInfo(a)
	if err != nil {
		return err
	}
	packed, err := a.ConstructorArgs(args...)
	if err != nil {
		return err
	}
	return f.Verifier.Verify(ctx, a, info, address, packed)
}

// RaffleArgs are the raffle constructor arguments: coordinator, entrance
// fee, key hash, subscription id, callback gas limit and interval in
// seconds.
func RaffleArgs(cfg config.ChainConfig) []interface{} {
	return []interface{}{
		cfg.VRFCoordinator,
		cfg.EntranceFee,
		[32]byte(cfg.KeyHash),
		cfg.SubscriptionID,
		cfg.CallbackGasLimit,
		big.NewInt(int64(cfg.Interval.Seconds())),
	}
}

// NFTArgs are the NFT constructor arguments: name, symbol and max supply.
func NFTArgs(cfg config.ChainConfig) []interface{} {
	return []interface{}{nft.Name, nft.Symbol, cfg.MaxSupply}
}
