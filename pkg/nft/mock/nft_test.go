// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/devchain"
	devchainMock "github.com/rafflekit/rafflekit/pkg/devchain/mock"
	"github.com/rafflekit/rafflekit/pkg/nft"
	"github.com/rafflekit/rafflekit/pkg/nft/mock"
)

var (
	deployer   = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	alice      = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	nftAddress = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	ether      = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func newNFT(t *testing.T) (*devchainMock.Chain, *mock.NFT) {
	t.Helper()
	chain := devchainMock.New(
		devchainMock.WithBalance(deployer, ether),
		devchainMock.WithBalance(alice, ether),
	)
	return chain, mock.New(chain, nftAddress, deployer, big.NewInt(10))
}

func price(n int64) *big.Int {
	return new(big.Int).Mul(nft.MintPrice, big.NewInt(n))
}

func TestMint(t *testing.T) {
	ctx := context.Background()
	_, n := newNFT(t)
	c := n.Client(alice)

	if _, err := c.Mint(ctx, 1, new(big.Int).Sub(nft.MintPrice, big.NewInt(100))); !errors.Is(err, nft.ErrInsufficientFunds) {
		t.Fatalf("got error %v, want %v", err, nft.ErrInsufficientFunds)
	}

	h, err := c.Mint(ctx, 2, price(2))
	if err != nil {
		t.Fatal(err)
	}
	receipt, err := h.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ids, err := nft.MintedTokens(receipt, nftAddress, alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0].Int64() != 0 || ids[1].Int64() != 1 {
		t.Fatalf("got minted tokens %v", ids)
	}
	if b, _ := c.BalanceOf(ctx, alice); b.Int64() != 2 {
		t.Fatalf("got balance %v, want 2", b)
	}

	if _, err := c.Mint(ctx, 9, price(9)); !errors.Is(err, nft.ErrExceedMaxSupply) {
		t.Fatalf("got error %v, want %v", err, nft.ErrExceedMaxSupply)
	}
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	chain, n := newNFT(t)
	c := n.Client(alice)

	if _, err := c.Mint(ctx, 1, nft.MintPrice); err != nil {
		t.Fatal(err)
	}

	if _, err := n.Client(deployer).GetRefund(ctx, []*big.Int{big.NewInt(0)}); !errors.Is(err, nft.ErrNotTokenOwner) {
		t.Fatalf("got error %v, want %v", err, nft.ErrNotTokenOwner)
	}

	before, _ := chain.BalanceAt(ctx, alice)
	h, err := c.GetRefund(ctx, []*big.Int{big.NewInt(0)})
	if err != nil {
		t.Fatal(err)
	}
	receipt, err := h.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	gas, _ := chain.GasCost(ctx, receipt)
	after, _ := chain.BalanceAt(ctx, alice)
	want := new(big.Int).Add(new(big.Int).Sub(before, gas), nft.MintPrice)
	if after.Cmp(want) != 0 {
		t.Fatalf("got balance %v, want %v", after, want)
	}
	if refunded, _ := c.IsTokenRefunded(ctx, big.NewInt(0)); !refunded {
		t.Fatal("token not refunded")
	}
	if b, _ := c.BalanceOf(ctx, alice); b.Sign() != 0 {
		t.Fatalf("got balance %v, want 0", b)
	}

	if _, err := n.Client(deployer).GetRefund(ctx, []*big.Int{big.NewInt(0)}); !errors.Is(err, nft.ErrAlreadyRefunded) {
		t.Fatalf("got error %v, want %v", err, nft.ErrAlreadyRefunded)
	}
}

func TestRefundPeriod(t *testing.T) {
	ctx := context.Background()
	chain, n := newNFT(t)
	c := n.Client(alice)

	if _, err := c.Mint(ctx, 5, price(5)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.WithdrawFunds(ctx); !errors.Is(err, nft.ErrStillInRefundPeriod) {
		t.Fatalf("got error %v, want %v", err, nft.ErrStillInRefundPeriod)
	}

	if err := devchain.Advance(ctx, chain, nft.RefundPeriod+time.Second); err != nil {
		t.Fatal(err)
	}
	if active, _ := c.IsRefundPeriodActive(ctx); active {
		t.Fatal("refund period still active")
	}
	if _, err := c.GetRefund(ctx, []*big.Int{big.NewInt(0)}); !errors.Is(err, nft.ErrPastRefundPeriod) {
		t.Fatalf("got error %v, want %v", err, nft.ErrPastRefundPeriod)
	}

	// anyone may withdraw, the funds go to the owner
	before, _ := chain.BalanceAt(ctx, deployer)
	h, err := c.WithdrawFunds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	after, _ := chain.BalanceAt(ctx, deployer)
	if got := new(big.Int).Sub(after, before); got.Cmp(price(5)) != 0 {
		t.Fatalf("got withdrawn %v, want %v", got, price(5))
	}
}

func TestSetMaxSupply(t *testing.T) {
	ctx := context.Background()
	_, n := newNFT(t)

	if _, err := n.Client(alice).SetMaxSupply(ctx, big.NewInt(12)); !errors.Is(err, nft.ErrNotOwner) {
		t.Fatalf("got error %v, want %v", err, nft.ErrNotOwner)
	}

	owner := n.Client(deployer)
	if _, err := owner.SetMaxSupply(ctx, big.NewInt(12)); err != nil {
		t.Fatal(err)
	}
	if m, _ := owner.MaxSupply(ctx); m.Int64() != 12 {
		t.Fatalf("got max supply %v, want 12", m)
	}

	if _, err := n.Client(alice).Mint(ctx, 8, price(8)); err != nil {
		t.Fatal(err)
	}
	if _, err := owner.SetMaxSupply(ctx, big.NewInt(7)); !errors.Is(err, nft.ErrInvalidMaxSupply) {
		t.Fatalf("got error %v, want %v", err, nft.ErrInvalidMaxSupply)
	}
}
