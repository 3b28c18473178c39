// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the per-chain parameters used to deploy and drive
// the raffle and NFT contracts.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// chain ID
	goerliChainID  = int64(5)
	hardhatChainID = int64(31337)
	// vrf
	goerliVRFCoordinator = common.HexToAddress("0x2Ca8E0C643bDe4C2E08ab1fA0da3401AdAD7734D")
	goerliKeyHash        = common.HexToHash("0x79d3d8832d904592c0bf9818b621522c988bb8b0c05cdc3b15aea1b6e8db0c15")
	// defaults
	defaultEntranceFee        = big.NewInt(1e16) // 0.01 ether
	defaultCallbackGasLimit   = uint32(500000)
	defaultInterval           = 60 * time.Second
	defaultMaxSupply          = big.NewInt(1000)
	defaultBlockConfirmations = uint64(1)
)

// DevelopmentChains are the network names served by a local development node.
var DevelopmentChains = []string{"hardhat", "localhost"}

var (
	// ErrUnknownChain is returned when no configuration exists for a chain id.
	ErrUnknownChain = errors.New("config: unknown chain")
)

// MissingFieldError is returned when a chain entry lacks a required field.
type MissingFieldError struct {
	ChainID int64
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("config: chain %d: missing %s", e.ChainID, e.Field)
}

// ChainConfig is the set of parameters for a single chain.
type ChainConfig struct {
	ChainID            int64
	Name               string
	Development        bool
	EntranceFee        *big.Int
	Interval           time.Duration
	VRFCoordinator     common.Address // zero on development chains, a mock is deployed
	KeyHash            common.Hash
	SubscriptionID     uint64 // derived on development chains
	CallbackGasLimit   uint32
	MaxSupply          *big.Int
	BlockConfirmations uint64
	GasLimit           uint64 // 0 means estimate
}

// IsDevelopmentChain reports whether name is one of DevelopmentChains.
func IsDevelopmentChain(name string) bool {
	for _, n := range DevelopmentChains {
		if n == name {
			return true
		}
	}
	return false
}

// Validate checks that every field needed to deploy on the chain is set.
func (c ChainConfig) Validate() error {
	missing := func(field string) error {
		return &MissingFieldError{ChainID: c.ChainID, Field: field}
	}
	if c.EntranceFee == nil || c.EntranceFee.Sign() <= 0 {
		return missing("entranceFee")
	}
	if c.Interval <= 0 {
		return missing("interval")
	}
	if c.KeyHash == (common.Hash{}) {
		return missing("keyHash")
	}
	if c.CallbackGasLimit == 0 {
		return missing("callbackGasLimit")
	}
	if c.Development {
		return nil
	}
	if c.VRFCoordinator == (common.Address{}) {
		return missing("vrfCoordinator")
	}
	if c.SubscriptionID == 0 {
		return missing("subscriptionId")
	}
	return nil
}

func (c ChainConfig) clone() ChainConfig {
	if c.EntranceFee != nil {
		c.EntranceFee = new(big.Int).Set(c.EntranceFee)
	}
	if c.MaxSupply != nil {
		c.MaxSupply = new(big.Int).Set(c.MaxSupply)
	}
	return c
}

func (c ChainConfig) withDefaults() ChainConfig {
	if c.EntranceFee == nil {
		c.EntranceFee = new(big.Int).Set(defaultEntranceFee)
	}
	if c.CallbackGasLimit == 0 {
		c.CallbackGasLimit = defaultCallbackGasLimit
	}
	if c.Interval == 0 {
		c.Interval = defaultInterval
	}
	if c.MaxSupply == nil {
		c.MaxSupply = new(big.Int).Set(defaultMaxSupply)
	}
	if c.BlockConfirmations == 0 {
		c.BlockConfirmations = defaultBlockConfirmations
	}
	return c
}

func builtinChains() []ChainConfig {
	return []ChainConfig{
		{
			ChainID:            goerliChainID,
			Name:               "goerli",
			VRFCoordinator:     goerliVRFCoordinator,
			KeyHash:            goerliKeyHash,
			Interval:           60 * time.Second,
			MaxSupply:          big.NewInt(1000),
			BlockConfirmations: 6,
			GasLimit:           6000000,
		},
		{
			ChainID:     hardhatChainID,
			Name:        "hardhat",
			Development: true,
			EntranceFee: new(big.Int).Mul(big.NewInt(5), big.NewInt(1e17)), // 0.5 ether
			KeyHash:     goerliKeyHash,
			Interval:    30 * time.Second,
			MaxSupply:   big.NewInt(10),
		},
	}
}

// Networks is the immutable table of chain configurations. It is built once
// at start up and shared by reference.
type Networks struct {
	chains map[int64]ChainConfig
}

// NewNetworks builds the table from the built-in chains with the overrides
// applied in order.
func NewNetworks(overrides ...Override) (*Networks, error) {
	chains := make(map[int64]ChainConfig)
	for _, c := range builtinChains() {
		chains[c.ChainID] = c
	}
	for _, o := range overrides {
		c, ok := chains[o.ChainID]
		if !ok {
			if o.Name == nil {
				return nil, fmt.Errorf("override chain %d: %w", o.ChainID, &MissingFieldError{ChainID: o.ChainID, Field: "name"})
			}
			c = ChainConfig{ChainID: o.ChainID}
		}
		c, err := o.apply(c)
		if err != nil {
			return nil, fmt.Errorf("override chain %d: %w", o.ChainID, err)
		}
		chains[o.ChainID] = c
	}
	for id, c := range chains {
		c = c.withDefaults()
		if IsDevelopmentChain(c.Name) {
			c.Development = true
		}
		chains[id] = c
	}
	return &Networks{chains: chains}, nil
}

// Get returns a copy of the configuration for chainID.
func (n *Networks) Get(chainID int64) (ChainConfig, error) {
	c, ok := n.chains[chainID]
	if !ok {
		return ChainConfig{}, fmt.Errorf("chain %d: %w", chainID, ErrUnknownChain)
	}
	return c.clone(), nil
}

// GetValid returns the configuration for chainID if it passes Validate.
func (n *Networks) GetValid(chainID int64) (ChainConfig, error) {
	c, err := n.Get(chainID)
	if err != nil {
		return ChainConfig{}, err
	}
	if err := c.Validate(); err != nil {
		return ChainConfig{}, err
	}
	return c, nil
}

// ChainIDs returns the configured chain ids in ascending order.
func (n *Networks) ChainIDs() []int64 {
	ids := make([]int64, 0, len(n.chains))
	for id := range n.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
