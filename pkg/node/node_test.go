// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/crypto"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/storage"
	"github.com/rafflekit/rafflekit/pkg/transaction/backendmock"
	"github.com/sirupsen/logrus"
)

var logger = logging.New(io.Discard, logrus.ErrorLevel)

func TestInitStateStore(t *testing.T) {
	for _, tc := range []struct {
		name    string
		dataDir string
	}{
		{name: "in memory"},
		{name: "persistent", dataDir: t.TempDir()},
	} {
		t.Run(tc.name, func(t *testing.T) {
			store, err := InitStateStore(logger, tc.dataDir)
			if err != nil {
				t.Fatal(err)
			}
			defer store.Close()

			if err := store.Put("deployment_31337_Raffle", "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"); err != nil {
				t.Fatal(err)
			}
			var got string
			if err := store.Get("deployment_31337_Raffle", &got); err != nil {
				t.Fatal(err)
			}
			if got != "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512" {
				t.Fatalf("got %q", got)
			}
			if err := store.Get("missing", &got); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("got error %v, want %v", err, storage.ErrNotFound)
			}
		})
	}
}

func TestInitAccounts(t *testing.T) {
	store, err := InitStateStore(logger, "")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	var keys []*ecdsa.PrivateKey
	for i := 0; i < 3; i++ {
		key, err := crypto.GenerateSecp256k1Key()
		if err != nil {
			t.Fatal(err)
		}
		keys = append(keys, key)
	}
	backend := backendmock.New(
		backendmock.WithChainIDFunc(func(context.Context) (*big.Int, error) {
			return big.NewInt(31337), nil
		}),
	)

	accounts, closers, err := initAccounts(logger, backend, store, big.NewInt(31337), keys, time.Second)
	c := &Chain{Backend: backend, ChainID: 31337, Accounts: accounts, closers: closers}
	defer func() {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}()
	if err != nil {
		t.Fatal(err)
	}

	if len(c.Accounts) != len(keys) {
		t.Fatalf("got %d accounts, want %d", len(c.Accounts), len(keys))
	}
	for i, key := range keys {
		want, err := crypto.NewEthereumAddress(key.PublicKey)
		if err != nil {
			t.Fatal(err)
		}
		if c.Accounts[i].Address != want {
			t.Fatalf("account %d: got %s, want %s", i, c.Accounts[i].Address, want)
		}
		if c.Accounts[i].TxService.Sender() != want {
			t.Fatalf("account %d: got sender %s, want %s", i, c.Accounts[i].TxService.Sender(), want)
		}
	}
	if got := c.Deployer().Address; got != c.Accounts[0].Address {
		t.Fatalf("got deployer %s, want %s", got, c.Accounts[0].Address)
	}
	if got := c.Addresses(); len(got) != 2 || got[0] != c.Accounts[1].Address {
		t.Fatalf("got addresses %v", got)
	}
	if _, ok := c.Account(common.HexToAddress("0x01")); ok {
		t.Fatal("found an unknown account")
	}
}

func TestCloseAggregatesErrors(t *testing.T) {
	errFirst := errors.New("first")
	errSecond := errors.New("second")
	var order []int
	c := &Chain{closers: []func() error{
		func() error { order = append(order, 1); return errFirst },
		func() error { order = append(order, 2); return nil },
		func() error { order = append(order, 3); return errSecond },
	}}

	err := c.Close()
	if !errors.Is(err, errFirst) || !errors.Is(err, errSecond) {
		t.Fatalf("got error %v, want both close errors", err)
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Fatalf("got close order %v, want reverse order", order)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
