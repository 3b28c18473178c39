// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// Override replaces selected fields of a chain entry. Nil fields are left
// untouched.
type Override struct {
	ChainID            int64   `yaml:"chainId"`
	Name               *string `yaml:"name,omitempty"`
	EntranceFee        *string `yaml:"entranceFee,omitempty"` // wei, base 10
	Interval           *string `yaml:"interval,omitempty"`    // time.ParseDuration format
	VRFCoordinator     *string `yaml:"vrfCoordinator,omitempty"`
	KeyHash            *string `yaml:"keyHash,omitempty"`
	SubscriptionID     *uint64 `yaml:"subscriptionId,omitempty"`
	CallbackGasLimit   *uint32 `yaml:"callbackGasLimit,omitempty"`
	MaxSupply          *string `yaml:"maxSupply,omitempty"`
	BlockConfirmations *uint64 `yaml:"blockConfirmations,omitempty"`
	GasLimit           *uint64 `yaml:"gasLimit,omitempty"`
}

type overridesFile struct {
	Networks []Override `yaml:"networks"`
}

func (o Override) apply(c ChainConfig) (ChainConfig, error) {
	if o.Name != nil {
		c.Name = *o.Name
	}
	if o.EntranceFee != nil {
		v, ok := new(big.Int).SetString(*o.EntranceFee, 10)
		if !ok {
			return c, fmt.Errorf("invalid entranceFee %q", *o.EntranceFee)
		}
		c.EntranceFee = v
	}
	if o.Interval != nil {
		d, err := time.ParseDuration(*o.Interval)
		if err != nil {
			return c, fmt.Errorf("invalid interval: %w", err)
		}
		c.Interval = d
	}
	if o.VRFCoordinator != nil {
		if !common.IsHexAddress(*o.VRFCoordinator) {
			return c, fmt.Errorf("invalid vrfCoordinator %q", *o.VRFCoordinator)
		}
		c.VRFCoordinator = common.HexToAddress(*o.VRFCoordinator)
	}
	if o.KeyHash != nil {
		b := common.FromHex(*o.KeyHash)
		if len(b) != common.HashLength {
			return c, fmt.Errorf("invalid keyHash %q", *o.KeyHash)
		}
		c.KeyHash = common.BytesToHash(b)
	}
	if o.SubscriptionID != nil {
		c.SubscriptionID = *o.SubscriptionID
	}
	if o.CallbackGasLimit != nil {
		c.CallbackGasLimit = *o.CallbackGasLimit
	}
	if o.MaxSupply != nil {
		v, ok := new(big.Int).SetString(*o.MaxSupply, 10)
		if !ok {
			return c, fmt.Errorf("invalid maxSupply %q", *o.MaxSupply)
		}
		c.MaxSupply = v
	}
	if o.BlockConfirmations != nil {
		c.BlockConfirmations = *o.BlockConfirmations
	}
	if o.GasLimit != nil {
		c.GasLimit = *o.GasLimit
	}
	return c, nil
}

// ReadOverrides parses a yaml networks file. A missing file yields no
// overrides.
func ReadOverrides(fs afero.Fs, path string) ([]Override, error) {
	if path == "" {
		return nil, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read networks file: %w", err)
	}
	var f overridesFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse networks file %s: %w", path, err)
	}
	return f.Networks, nil
}
