// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mock provides an in-memory RefundableERC721 that executes on a
// devchain mock.Chain.
package mock

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	devchainMock "github.com/rafflekit/rafflekit/pkg/devchain/mock"
	"github.com/rafflekit/rafflekit/pkg/nft"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

const (
	MintGas          = 80_000
	RefundGas        = 60_000
	WithdrawGas      = 35_000
	SetMaxSupplyGas  = 30_000
	mintGasPerToken  = 25_000
	refundGasPerItem = 20_000
)

// NFT is an in-memory RefundableERC721. Its state is guarded by the chain
// lock.
type NFT struct {
	chain     *devchainMock.Chain
	address   common.Address
	owner     common.Address
	maxSupply *big.Int
	refundEnd time.Time

	minted   uint64
	owners   map[uint64]common.Address
	refunded map[uint64]bool
}

// New deploys the contract at address, owned by owner.
func New(chain *devchainMock.Chain, address, owner common.Address, maxSupply *big.Int) *NFT {
	n := &NFT{
		chain:     chain,
		address:   address,
		owner:     owner,
		maxSupply: new(big.Int).Set(maxSupply),
		owners:    make(map[uint64]common.Address),
		refunded:  make(map[uint64]bool),
	}
	chain.View(func(now time.Time) {
		n.refundEnd = now.Add(nft.RefundPeriod)
	})
	return n
}

func (n *NFT) Address() common.Address {
	return n.address
}

// Client returns the contract as seen by account from.
func (n *NFT) Client(from common.Address) nft.Interface {
	return &client{n: n, from: from}
}

func (n *NFT) refundActiveLocked(now time.Time) bool {
	return !now.After(n.refundEnd)
}

func (n *NFT) balanceOfLocked(owner common.Address) int64 {
	var c int64
	for _, o := range n.owners {
		if o == owner {
			c++
		}
	}
	return c
}

type client struct {
	n    *NFT
	from common.Address
}

func (c *client) Address() common.Address {
	return c.n.address
}

func (c *client) Mint(ctx context.Context, quantity uint64, value *big.Int) (*transaction.Handle, error) {
	n := c.n
	if value == nil {
		value = new(big.Int)
	}
	return c.send("mint", value, MintGas+mintGasPerToken*quantity, func(now time.Time) ([]*types.Log, error) {
		price := new(big.Int).Mul(nft.MintPrice, new(big.Int).SetUint64(quantity))
		if value.Cmp(price) < 0 {
			return nil, nft.ErrInsufficientFunds
		}
		total := new(big.Int).SetUint64(n.minted + quantity)
		if total.Cmp(n.maxSupply) > 0 {
			return nil, nft.ErrExceedMaxSupply
		}
		logs := make([]*types.Log, 0, quantity)
		for i := uint64(0); i < quantity; i++ {
			id := n.minted
			n.owners[id] = c.from
			n.minted++
			logs = append(logs, nft.TransferLog(n.address, common.Address{}, c.from, new(big.Int).SetUint64(id)))
		}
		return logs, nil
	})
}

func (c *client) GetRefund(ctx context.Context, tokenIDs []*big.Int) (*transaction.Handle, error) {
	n := c.n
	return c.send("get refund", nil, RefundGas+refundGasPerItem*uint64(len(tokenIDs)), func(now time.Time) ([]*types.Log, error) {
		if !n.refundActiveLocked(now) {
			return nil, nft.ErrPastRefundPeriod
		}
		seen := make(map[uint64]bool, len(tokenIDs))
		for _, id := range tokenIDs {
			if !id.IsUint64() {
				return nil, nft.ErrNotTokenOwner
			}
			if n.refunded[id.Uint64()] || seen[id.Uint64()] {
				return nil, nft.ErrAlreadyRefunded
			}
			if owner, ok := n.owners[id.Uint64()]; !ok || owner != c.from {
				return nil, nft.ErrNotTokenOwner
			}
			seen[id.Uint64()] = true
		}
		amount := new(big.Int).Mul(nft.MintPrice, big.NewInt(int64(len(tokenIDs))))
		if err := n.chain.Transfer(n.address, c.from, amount); err != nil {
			return nil, err
		}
		logs := make([]*types.Log, 0, len(tokenIDs))
		for _, id := range tokenIDs {
			delete(n.owners, id.Uint64())
			n.refunded[id.Uint64()] = true
			logs = append(logs, nft.TransferLog(n.address, c.from, common.Address{}, id))
		}
		return logs, nil
	})
}

func (c *client) WithdrawFunds(ctx context.Context) (*transaction.Handle, error) {
	n := c.n
	return c.send("withdraw funds", nil, WithdrawGas, func(now time.Time) ([]*types.Log, error) {
		if n.refundActiveLocked(now) {
			return nil, nft.ErrStillInRefundPeriod
		}
		return nil, n.chain.Transfer(n.address, n.owner, n.chain.BalanceLocked(n.address))
	})
}

func (c *client) SetMaxSupply(ctx context.Context, maxSupply *big.Int) (*transaction.Handle, error) {
	n := c.n
	return c.send("set max supply", nil, SetMaxSupplyGas, func(now time.Time) ([]*types.Log, error) {
		if c.from != n.owner {
			return nil, nft.ErrNotOwner
		}
		if maxSupply.Cmp(new(big.Int).SetUint64(n.minted)) < 0 {
			return nil, nft.ErrInvalidMaxSupply
		}
		n.maxSupply = new(big.Int).Set(maxSupply)
		return nil, nil
	})
}

func (c *client) MintPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(nft.MintPrice), nil
}

func (c *client) MaxSupply(ctx context.Context) (m *big.Int, err error) {
	c.n.chain.View(func(time.Time) {
		m = new(big.Int).Set(c.n.maxSupply)
	})
	return m, nil
}

func (c *client) BalanceOf(ctx context.Context, owner common.Address) (b *big.Int, err error) {
	c.n.chain.View(func(time.Time) {
		b = big.NewInt(c.n.balanceOfLocked(owner))
	})
	return b, nil
}

func (c *client) IsTokenRefunded(ctx context.Context, tokenID *big.Int) (r bool, err error) {
	c.n.chain.View(func(time.Time) {
		r = tokenID.IsUint64() && c.n.refunded[tokenID.Uint64()]
	})
	return r, nil
}

func (c *client) IsRefundPeriodActive(ctx context.Context) (active bool, err error) {
	c.n.chain.View(func(now time.Time) {
		active = c.n.refundActiveLocked(now)
	})
	return active, nil
}

func (c *client) Owner(ctx context.Context) (common.Address, error) {
	return c.n.owner, nil
}

func (c *client) send(description string, value *big.Int, gas uint64, execute func(now time.Time) ([]*types.Log, error)) (*transaction.Handle, error) {
	hash, err := c.n.chain.Send(devchainMock.Tx{
		From:    c.from,
		To:      c.n.address,
		Value:   value,
		GasUsed: gas,
		Execute: execute,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", description, err)
	}
	return transaction.NewHandle(hash, c.n.chain), nil
}
