// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/config"
	"github.com/spf13/afero"
)

func TestBuiltinNetworks(t *testing.T) {
	networks, err := config.NewNetworks()
	if err != nil {
		t.Fatal(err)
	}

	hardhat, err := networks.GetValid(31337)
	if err != nil {
		t.Fatal(err)
	}
	if !hardhat.Development {
		t.Fatal("hardhat is not a development chain")
	}
	if want := big.NewInt(5e17); hardhat.EntranceFee.Cmp(want) != 0 {
		t.Fatalf("got entrance fee %v, want %v", hardhat.EntranceFee, want)
	}
	if hardhat.Interval != 30*time.Second {
		t.Fatalf("got interval %v, want 30s", hardhat.Interval)
	}
	if hardhat.CallbackGasLimit != 500000 {
		t.Fatalf("got callback gas limit %d, want default", hardhat.CallbackGasLimit)
	}
	if hardhat.MaxSupply.Int64() != 10 {
		t.Fatalf("got max supply %v, want 10", hardhat.MaxSupply)
	}

	goerli, err := networks.Get(5)
	if err != nil {
		t.Fatal(err)
	}
	if goerli.Development {
		t.Fatal("goerli is a development chain")
	}
	if goerli.BlockConfirmations != 6 {
		t.Fatalf("got block confirmations %d, want 6", goerli.BlockConfirmations)
	}
	if want := big.NewInt(1e16); goerli.EntranceFee.Cmp(want) != 0 {
		t.Fatalf("got entrance fee %v, want default %v", goerli.EntranceFee, want)
	}

	var mfe *config.MissingFieldError
	if _, err := networks.GetValid(5); !errors.As(err, &mfe) || mfe.Field != "subscriptionId" {
		t.Fatalf("got error %v, want missing subscriptionId", err)
	}

	if _, err := networks.Get(1); !errors.Is(err, config.ErrUnknownChain) {
		t.Fatalf("got error %v, want %v", err, config.ErrUnknownChain)
	}
}

func TestNetworksImmutable(t *testing.T) {
	networks, err := config.NewNetworks()
	if err != nil {
		t.Fatal(err)
	}

	c, err := networks.Get(31337)
	if err != nil {
		t.Fatal(err)
	}
	c.EntranceFee.SetInt64(1)
	c.Interval = time.Hour

	again, err := networks.Get(31337)
	if err != nil {
		t.Fatal(err)
	}
	if again.EntranceFee.Int64() == 1 || again.Interval == time.Hour {
		t.Fatal("configuration table was mutated through a returned copy")
	}
}

func TestOverrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := []byte(`networks:
  - chainId: 5
    subscriptionId: 1234
    entranceFee: "20000000000000000"
  - chainId: 1337
    name: localhost
    keyHash: "0x79d3d8832d904592c0bf9818b621522c988bb8b0c05cdc3b15aea1b6e8db0c15"
    interval: 45s
`)
	if err := afero.WriteFile(fs, "networks.yaml", data, 0644); err != nil {
		t.Fatal(err)
	}

	overrides, err := config.ReadOverrides(fs, "networks.yaml")
	if err != nil {
		t.Fatal(err)
	}
	networks, err := config.NewNetworks(overrides...)
	if err != nil {
		t.Fatal(err)
	}

	goerli, err := networks.GetValid(5)
	if err != nil {
		t.Fatal(err)
	}
	if goerli.SubscriptionID != 1234 {
		t.Fatalf("got subscription id %d, want 1234", goerli.SubscriptionID)
	}
	if goerli.VRFCoordinator != common.HexToAddress("0x2Ca8E0C643bDe4C2E08ab1fA0da3401AdAD7734D") {
		t.Fatalf("override dropped coordinator %s", goerli.VRFCoordinator)
	}

	local, err := networks.GetValid(1337)
	if err != nil {
		t.Fatal(err)
	}
	if !local.Development || local.Interval != 45*time.Second {
		t.Fatalf("got %+v", local)
	}

	if got := networks.ChainIDs(); len(got) != 3 || got[0] != 5 || got[2] != 31337 {
		t.Fatalf("got chain ids %v", got)
	}
}

func TestOverridesErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	overrides, err := config.ReadOverrides(fs, "missing.yaml")
	if err != nil || overrides != nil {
		t.Fatalf("got %v %v for a missing file", overrides, err)
	}

	if err := afero.WriteFile(fs, "bad.yaml", []byte("networks:\n  - chainId: 5\n    bogus: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.ReadOverrides(fs, "bad.yaml"); err == nil {
		t.Fatal("expected error for unknown field")
	}

	fee := "abc"
	if _, err := config.NewNetworks(config.Override{ChainID: 5, EntranceFee: &fee}); err == nil {
		t.Fatal("expected error for invalid entrance fee")
	}

	var mfe *config.MissingFieldError
	if _, err := config.NewNetworks(config.Override{ChainID: 42}); !errors.As(err, &mfe) {
		t.Fatalf("got error %v, want missing name", err)
	}
}
