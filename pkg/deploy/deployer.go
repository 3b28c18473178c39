// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package deploy deploys the raffle, its VRF coordinator mock and the
// refundable NFT, records the deployments per chain and exports them to a
// front end and to etherscan.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/sctx"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

var ErrNoContractAddress = errors.New("deploy: receipt has no contract address")

// Deployer creates contracts from their artifacts and records them.
type Deployer struct {
	logger        logging.Logger
	txService     transaction.Service
	monitor       transaction.Monitor
	registry      *Registry
	confirmations uint64
	gasLimit      uint64
	now           func() time.Time
}

// NewDeployer returns a deployer that waits for confirmations blocks on
// top of every deployment. A zero gasLimit estimates the gas.
func NewDeployer(logger logging.Logger, txService transaction.Service, monitor transaction.Monitor, registry *Registry, confirmations, gasLimit uint64) *Deployer {
	return &Deployer{
		logger:        logger,
		txService:     txService,
		monitor:       monitor,
		registry:      registry,
		confirmations: confirmations,
		gasLimit:      gasLimit,
		now:           time.Now,
	}
}

func (d *Deployer) Registry() *Registry {
	return d.registry
}

// Deploy sends the creation transaction of the artifact, waits until it is
// confirmed and records the deployment.
func (d *Deployer) Deploy(ctx context.Context, a *Artifact, args ...interface{}) (Deployment, error) {
	data, err := a.DeployData(args...)
	if err != nil {
		return Deployment{}, err
	}

	d.logger.Infof("deploying %s", a.ContractName)

	txHash, err := d.txService.Send(ctx, &transaction.TxRequest{
		To:          nil,
		Data:        data,
		GasPrice:    sctx.GetGasPrice(ctx),
		GasLimit:    sctx.GetGasLimitWithDefault(ctx, d.gasLimit),
		Value:       big.NewInt(0),
		Description: "deploy " + a.ContractName,
	})
	if err != nil {
		return Deployment{}, fmt.Errorf("deploy %s: %w", a.ContractName, err)
	}
	d.logger.Infof("deploying %s in transaction %x", a.ContractName, txHash)

	receipt, err := d.txService.WaitForReceipt(ctx, txHash)
	if err != nil {
		return Deployment{}, fmt.Errorf("deploy %s: %w", a.ContractName, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Deployment{}, fmt.Errorf("deploy %s: %w", a.ContractName, transaction.ErrTransactionReverted)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return Deployment{}, fmt.Errorf("deploy %s: %w", a.ContractName, ErrNoContractAddress)
	}
	if d.confirmations > 1 {
		d.logger.Infof("waiting for %d confirmations of %s", d.confirmations, a.ContractName)
		if err := transaction.WaitConfirmations(ctx, d.monitor, receipt, d.confirmations); err != nil {
			return Deployment{}, fmt.Errorf("deploy %s: %w", a.ContractName, err)
		}
	}

	dep := Deployment{
		Name:        a.ContractName,
		Address:     receipt.ContractAddress,
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		Args:        formatArgs(args),
		ABI:         a.ABIJSON,
		DeployedAt:  d.now(),
	}
	if err := d.registry.Put(dep); err != nil {
		return Deployment{}, fmt.Errorf("record %s deployment: %w", a.ContractName, err)
	}

	d.logger.Infof("deployed %s at %s (gas used %d)", a.ContractName, dep.Address, receipt.GasUsed)
	return dep, nil
}

func formatArgs(args []interface{}) []string {
	out := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case common.Address:
			out[i] = v.Hex()
		case common.Hash:
			out[i] = v.Hex()
		case [32]byte:
			out[i] = common.Hash(v).Hex()
		default:
			out[i] = fmt.Sprint(v)
		}
	}
	return out
}
