// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nft is the client of the RefundableERC721 contract, an ERC721
// whose mints can be refunded for a fixed period after deployment.
package nft

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rafflekit/rafflekit/pkg/sctx"
	"github.com/rafflekit/rafflekit/pkg/transaction"
)

const (
	Name   = "Refundable NFT"
	Symbol = "RNFT"
	// RefundPeriod starts when the contract is deployed.
	RefundPeriod = 30 * 24 * time.Hour
)

// MintPrice is the price of a single token (0.01 ether).
var MintPrice = big.NewInt(10_000_000_000_000_000)

var (
	ErrInsufficientFunds   = errors.New("nft: insufficient funds")
	ErrExceedMaxSupply     = errors.New("nft: exceeds max supply")
	ErrPastRefundPeriod    = errors.New("nft: refund period is over")
	ErrNotTokenOwner       = errors.New("nft: not token owner")
	ErrAlreadyRefunded     = errors.New("nft: token already refunded")
	ErrInvalidMaxSupply    = errors.New("nft: max supply below minted amount")
	ErrStillInRefundPeriod = errors.New("nft: still in refund period")
	ErrNotOwner            = errors.New("nft: caller is not the owner")
)

var revertErrors = map[string]error{
	"RefundableERC721__InsufficientFunds":   ErrInsufficientFunds,
	"RefundableERC721__ExceedMaxSupply":     ErrExceedMaxSupply,
	"RefundableERC721__PastRefundPeriod":    ErrPastRefundPeriod,
	"RefundableERC721__NotTokenOwner":       ErrNotTokenOwner,
	"RefundableERC721__AlreadyRefunded":     ErrAlreadyRefunded,
	"RefundableERC721__InvalidMaxSupply":    ErrInvalidMaxSupply,
	"RefundableERC721__StillInRefundPeriod": ErrStillInRefundPeriod,
	"Ownable__NotOwner":                     ErrNotOwner,
}

var transferEvent = ABI.Events["Transfer"]

// Interface is a handle to a deployed RefundableERC721 bound to the
// account that sends its transactions.
type Interface interface {
	Address() common.Address
	Mint(ctx context.Context, quantity uint64, value *big.Int) (*transaction.Handle, error)
	GetRefund(ctx context.Context, tokenIDs []*big.Int) (*transaction.Handle, error)
	// WithdrawFunds sends the contract balance to the owner once the refund
	// period is over. Anyone may call it.
	WithdrawFunds(ctx context.Context) (*transaction.Handle, error)
	SetMaxSupply(ctx context.Context, maxSupply *big.Int) (*transaction.Handle, error)
	MintPrice(ctx context.Context) (*big.Int, error)
	MaxSupply(ctx context.Context) (*big.Int, error)
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	IsTokenRefunded(ctx context.Context, tokenID *big.Int) (bool, error)
	IsRefundPeriodActive(ctx context.Context) (bool, error)
	Owner(ctx context.Context) (common.Address, error)
}

type service struct {
	txService transaction.Service
	address   common.Address
}

func New(txService transaction.Service, address common.Address) Interface {
	return &service{
		txService: txService,
		address:   address,
	}
}

func (s *service) Address() common.Address {
	return s.address
}

func (s *service) Mint(ctx context.Context, quantity uint64, value *big.Int) (*transaction.Handle, error) {
	return s.send(ctx, "mint", value, "mint", new(big.Int).SetUint64(quantity))
}

func (s *service) GetRefund(ctx context.Context, tokenIDs []*big.Int) (*transaction.Handle, error) {
	return s.send(ctx, "get refund", nil, "getRefund", tokenIDs)
}

func (s *service) WithdrawFunds(ctx context.Context) (*transaction.Handle, error) {
	return s.send(ctx, "withdraw funds", nil, "withdrawFunds")
}

func (s *service) SetMaxSupply(ctx context.Context, maxSupply *big.Int) (*transaction.Handle, error) {
	return s.send(ctx, "set max supply", nil, "setMaxSupply", maxSupply)
}

func (s *service) MintPrice(ctx context.Context) (*big.Int, error) {
	results, err := s.call(ctx, "getMintPrice")
	if err != nil {
		return nil, err
	}
	return results[0].(*big.Int), nil
}

func (s *service) MaxSupply(ctx context.Context) (*big.Int, error) {
	results, err := s.call(ctx, "getMaxSupply")
	if err != nil {
		return nil, err
	}
	return results[0].(*big.Int), nil
}

func (s *service) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	results, err := s.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return results[0].(*big.Int), nil
}

func (s *service) IsTokenRefunded(ctx context.Context, tokenID *big.Int) (bool, error) {
	results, err := s.call(ctx, "isTokenRefunded", tokenID)
	if err != nil {
		return false, err
	}
	return results[0].(bool), nil
}

func (s *service) IsRefundPeriodActive(ctx context.Context) (bool, error) {
	results, err := s.call(ctx, "isRefundPeriodActive")
	if err != nil {
		return false, err
	}
	return results[0].(bool), nil
}

func (s *service) Owner(ctx context.Context) (common.Address, error) {
	results, err := s.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return results[0].(common.Address), nil
}

func (s *service) send(ctx context.Context, description string, value *big.Int, method string, args ...interface{}) (*transaction.Handle, error) {
	callData, err := ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = big.NewInt(0)
	}
	txHash, err := s.txService.Send(ctx, &transaction.TxRequest{
		To:          &s.address,
		Data:        callData,
		GasPrice:    sctx.GetGasPrice(ctx),
		GasLimit:    sctx.GetGasLimit(ctx),
		Value:       value,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", description, mapRevert(err))
	}
	return transaction.NewHandle(txHash, s.txService), nil
}

func (s *service) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	callData, err := ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	result, err := s.txService.Call(ctx, &transaction.TxRequest{
		To:   &s.address,
		Data: callData,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, mapRevert(err))
	}
	return ABI.Unpack(method, result)
}

// MintedTokens returns the ids of the tokens minted to owner in the
// receipt.
func MintedTokens(receipt *types.Receipt, address, owner common.Address) ([]*big.Int, error) {
	var ids []*big.Int
	for _, l := range receipt.Logs {
		if l.Address != address || len(l.Topics) != 4 || l.Topics[0] != transferEvent.ID {
			continue
		}
		var e struct {
			From    common.Address
			To      common.Address
			TokenId *big.Int
		}
		if err := transaction.ParseEvent(&ABI, transferEvent.Name, &e, *l); err != nil {
			return nil, err
		}
		if e.From == (common.Address{}) && e.To == owner {
			ids = append(ids, e.TokenId)
		}
	}
	return ids, nil
}

// TransferLog encodes an ERC721 Transfer log.
func TransferLog(address, from, to common.Address, tokenID *big.Int) *types.Log {
	return &types.Log{
		Address: address,
		Topics: []common.Hash{
			transferEvent.ID,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(tokenID),
		},
	}
}

func mapRevert(err error) error {
	re, ok := transaction.DecodeRevert(&ABI, err)
	if !ok {
		return err
	}
	if sentinel, ok := revertErrors[re.Name]; ok {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return err
}
