// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/devchain"
	"github.com/rafflekit/rafflekit/pkg/nft"
)

// NFTScenarios returns the refundable NFT scenarios.
func NFTScenarios() []Scenario {
	dev := []Tag{TagDevelopment, TagNFT}
	return []Scenario{
		{Name: "nft/constructor", Tags: dev, Run: nftConstructor},
		{Name: "nft/mint-insufficient-funds", Tags: dev, Run: nftMintInsufficientFunds},
		{Name: "nft/mint-exceeds-max-supply", Tags: dev, Run: nftMintExceedsMaxSupply},
		{Name: "nft/mint", Tags: dev, Run: nftMint},
		{Name: "nft/refund", Tags: dev, Run: nftRefund},
		{Name: "nft/refund-after-period", Tags: dev, Run: nftRefundAfterPeriod},
		{Name: "nft/refund-not-token-owner", Tags: dev, Run: nftRefundNotTokenOwner},
		{Name: "nft/refund-already-refunded", Tags: dev, Run: nftRefundAlreadyRefunded},
		{Name: "nft/set-max-supply", Tags: dev, Run: nftSetMaxSupply},
		{Name: "nft/set-max-supply-not-owner", Tags: dev, Run: nftSetMaxSupplyNotOwner},
		{Name: "nft/set-max-supply-below-minted", Tags: dev, Run: nftSetMaxSupplyBelowMinted},
		{Name: "nft/withdraw", Tags: dev, Run: nftWithdraw},
		{Name: "nft/withdraw-to-owner", Tags: dev, Run: nftWithdrawToOwner},
		{Name: "nft/withdraw-in-refund-period", Tags: dev, Run: nftWithdrawInRefundPeriod},
		{Name: "nft/live-mint-and-refund", Tags: []Tag{TagStaging, TagNFT}, Run: nftLiveMintAndRefund},
	}
}

// mint mints quantity tokens as from, paying the mint price for each, and
// returns the minted token ids.
func mint(ctx context.Context, env *Env, from common.Address, quantity int64) ([]*big.Int, error) {
	n := env.NFT(from)
	price, err := n.MintPrice(ctx)
	if err != nil {
		return nil, err
	}
	h, err := n.Mint(ctx, uint64(quantity), new(big.Int).Mul(price, big.NewInt(quantity)))
	if err != nil {
		return nil, err
	}
	receipt, err := h.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return nft.MintedTokens(receipt, n.Address(), from)
}

func wait(ctx context.Context, h interface {
	Wait(context.Context) (*types.Receipt, error)
}, err error) (*types.Receipt, error) {
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

func passRefundPeriod(ctx context.Context, env *Env) error {
	if env.TimeTraveler == nil {
		return fmt.Errorf("refund period: %w", errNoTimeTravel)
	}
	return devchain.Advance(ctx, env.TimeTraveler, nft.RefundPeriod+time.Second)
}

func nftConstructor(ctx context.Context, env *Env) error {
	maxSupply, err := env.NFT(env.Deployer).MaxSupply(ctx)
	if err != nil {
		return err
	}
	if maxSupply.Cmp(env.Config.MaxSupply) != 0 {
		return fmt.Errorf("got max supply %v, want %v", maxSupply, env.Config.MaxSupply)
	}
	return nil
}

func nftMintInsufficientFunds(ctx context.Context, env *Env) error {
	n := env.NFT(env.Deployer)
	price, err := n.MintPrice(ctx)
	if err != nil {
		return err
	}
	_, err = n.Mint(ctx, 1, new(big.Int).Sub(price, big.NewInt(100)))
	return expectError(err, nft.ErrInsufficientFunds)
}

func nftMintExceedsMaxSupply(ctx context.Context, env *Env) error {
	n := env.NFT(env.Deployer)
	maxSupply, err := n.MaxSupply(ctx)
	if err != nil {
		return err
	}
	if _, err := mint(ctx, env, env.Deployer, maxSupply.Int64()); err != nil {
		return err
	}
	_, err = mint(ctx, env, env.Deployer, 1)
	return expectError(err, nft.ErrExceedMaxSupply)
}

func nftMint(ctx context.Context, env *Env) error {
	if _, err := mint(ctx, env, env.Deployer, 1); err != nil {
		return err
	}
	count, err := env.NFT(env.Deployer).BalanceOf(ctx, env.Deployer)
	if err != nil {
		return err
	}
	if count.Cmp(big.NewInt(1)) != 0 {
		return fmt.Errorf("got %v tokens, want 1", count)
	}
	return nil
}

// mintedByAccount mints a single token as the first non deployer account.
func mintedByAccount(ctx context.Context, env *Env) (common.Address, *big.Int, error) {
	holder, err := env.Account(0)
	if err != nil {
		return common.Address{}, nil, err
	}
	ids, err := mint(ctx, env, holder, 1)
	if err != nil {
		return common.Address{}, nil, err
	}
	return holder, ids[0], nil
}

func nftRefund(ctx context.Context, env *Env) error {
	holder, id, err := mintedByAccount(ctx, env)
	if err != nil {
		return err
	}
	n := env.NFT(holder)
	refunded, err := n.IsTokenRefunded(ctx, id)
	if err != nil {
		return err
	}
	if refunded {
		return fmt.Errorf("token %v refunded before refund", id)
	}
	active, err := n.IsRefundPeriodActive(ctx)
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("refund period not active after deployment")
	}
	price, err := n.MintPrice(ctx)
	if err != nil {
		return err
	}
	before, err := env.Chain.BalanceAt(ctx, holder)
	if err != nil {
		return err
	}

	h, err := n.GetRefund(ctx, []*big.Int{id})
	receipt, err := wait(ctx, h, err)
	if err != nil {
		return err
	}
	gas, err := env.Chain.GasCost(ctx, receipt)
	if err != nil {
		return err
	}
	after, err := env.Chain.BalanceAt(ctx, holder)
	if err != nil {
		return err
	}
	if want := new(big.Int).Add(new(big.Int).Sub(before, gas), price); after.Cmp(want) != 0 {
		return fmt.Errorf("got holder balance %v, want %v", after, want)
	}
	if refunded, err = n.IsTokenRefunded(ctx, id); err != nil {
		return err
	}
	if !refunded {
		return fmt.Errorf("token %v not refunded", id)
	}
	count, err := n.BalanceOf(ctx, holder)
	if err != nil {
		return err
	}
	if count.Sign() != 0 {
		return fmt.Errorf("got %v tokens after refund, want 0", count)
	}
	return nil
}

func nftRefundAfterPeriod(ctx context.Context, env *Env) error {
	holder, id, err := mintedByAccount(ctx, env)
	if err != nil {
		return err
	}
	if err := passRefundPeriod(ctx, env); err != nil {
		return err
	}
	n := env.NFT(holder)
	active, err := n.IsRefundPeriodActive(ctx)
	if err != nil {
		return err
	}
	if active {
		return fmt.Errorf("refund period active after %v", nft.RefundPeriod)
	}
	_, err = n.GetRefund(ctx, []*big.Int{id})
	return expectError(err, nft.ErrPastRefundPeriod)
}

func nftRefundNotTokenOwner(ctx context.Context, env *Env) error {
	_, id, err := mintedByAccount(ctx, env)
	if err != nil {
		return err
	}
	_, err = env.NFT(env.Deployer).GetRefund(ctx, []*big.Int{id})
	return expectError(err, nft.ErrNotTokenOwner)
}

func nftRefundAlreadyRefunded(ctx context.Context, env *Env) error {
	holder, id, err := mintedByAccount(ctx, env)
	if err != nil {
		return err
	}
	h, err := env.NFT(holder).GetRefund(ctx, []*big.Int{id})
	if _, err := wait(ctx, h, err); err != nil {
		return err
	}
	_, err = env.NFT(env.Deployer).GetRefund(ctx, []*big.Int{id})
	return expectError(err, nft.ErrAlreadyRefunded)
}

func nftSetMaxSupply(ctx context.Context, env *Env) error {
	n := env.NFT(env.Deployer)
	want := big.NewInt(12)
	h, err := n.SetMaxSupply(ctx, want)
	if _, err := wait(ctx, h, err); err != nil {
		return err
	}
	got, err := n.MaxSupply(ctx)
	if err != nil {
		return err
	}
	if got.Cmp(want) != 0 {
		return fmt.Errorf("got max supply %v, want %v", got, want)
	}
	return nil
}

func nftSetMaxSupplyNotOwner(ctx context.Context, env *Env) error {
	account, err := env.Account(0)
	if err != nil {
		return err
	}
	_, err = env.NFT(account).SetMaxSupply(ctx, big.NewInt(12))
	return expectError(err, nft.ErrNotOwner)
}

func nftSetMaxSupplyBelowMinted(ctx context.Context, env *Env) error {
	const minted = 8
	account, err := env.Account(0)
	if err != nil {
		return err
	}
	if _, err := mint(ctx, env, account, minted); err != nil {
		return err
	}
	_, err = env.NFT(env.Deployer).SetMaxSupply(ctx, big.NewInt(minted-1))
	return expectError(err, nft.ErrInvalidMaxSupply)
}

// mintForWithdraw mints five tokens as the first account and returns the
// amount paid.
func mintForWithdraw(ctx context.Context, env *Env) (common.Address, *big.Int, error) {
	const quantity = 5
	account, err := env.Account(0)
	if err != nil {
		return common.Address{}, nil, err
	}
	price, err := env.NFT(account).MintPrice(ctx)
	if err != nil {
		return common.Address{}, nil, err
	}
	if _, err := mint(ctx, env, account, quantity); err != nil {
		return common.Address{}, nil, err
	}
	return account, new(big.Int).Mul(price, big.NewInt(quantity)), nil
}

func nftWithdraw(ctx context.Context, env *Env) error {
	_, paid, err := mintForWithdraw(ctx, env)
	if err != nil {
		return err
	}
	if err := passRefundPeriod(ctx, env); err != nil {
		return err
	}
	before, err := env.Chain.BalanceAt(ctx, env.Deployer)
	if err != nil {
		return err
	}
	h, err := env.NFT(env.Deployer).WithdrawFunds(ctx)
	receipt, err := wait(ctx, h, err)
	if err != nil {
		return err
	}
	gas, err := env.Chain.GasCost(ctx, receipt)
	if err != nil {
		return err
	}
	after, err := env.Chain.BalanceAt(ctx, env.Deployer)
	if err != nil {
		return err
	}
	if want := new(big.Int).Add(new(big.Int).Sub(before, gas), paid); after.Cmp(want) != 0 {
		return fmt.Errorf("got owner balance %v, want %v", after, want)
	}
	return nil
}

func nftWithdrawToOwner(ctx context.Context, env *Env) error {
	account, paid, err := mintForWithdraw(ctx, env)
	if err != nil {
		return err
	}
	if err := passRefundPeriod(ctx, env); err != nil {
		return err
	}
	before, err := env.Chain.BalanceAt(ctx, env.Deployer)
	if err != nil {
		return err
	}
	h, err := env.NFT(account).WithdrawFunds(ctx)
	if _, err := wait(ctx, h, err); err != nil {
		return err
	}
	after, err := env.Chain.BalanceAt(ctx, env.Deployer)
	if err != nil {
		return err
	}
	if want := new(big.Int).Add(before, paid); after.Cmp(want) != 0 {
		return fmt.Errorf("got owner balance %v, want %v", after, want)
	}
	return nil
}

func nftWithdrawInRefundPeriod(ctx context.Context, env *Env) error {
	_, err := env.NFT(env.Deployer).WithdrawFunds(ctx)
	return expectError(err, nft.ErrStillInRefundPeriod)
}

func nftLiveMintAndRefund(ctx context.Context, env *Env) error {
	holder, err := env.Account(0)
	if err != nil {
		return err
	}
	ids, err := mint(ctx, env, holder, 2)
	if err != nil {
		return err
	}
	n := env.NFT(holder)
	count, err := n.BalanceOf(ctx, holder)
	if err != nil {
		return err
	}
	if count.Cmp(big.NewInt(2)) < 0 {
		return fmt.Errorf("got %v tokens, want at least 2", count)
	}
	h, err := n.GetRefund(ctx, ids)
	if _, err := wait(ctx, h, err); err != nil {
		return err
	}
	for _, id := range ids {
		refunded, err := n.IsTokenRefunded(ctx, id)
		if err != nil {
			return err
		}
		if !refunded {
			return fmt.Errorf("token %v not refunded", id)
		}
	}
	return nil
}
