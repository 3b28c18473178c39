// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sctx carries per-call transaction settings through a context.
// Commands set them once from flags and every contract client sending with
// that context picks them up.
package sctx

import (
	"context"
	"math/big"
)

type gasKey struct{}

// gas holds the overrides set on a context. The zero value means estimate
// the limit and use the suggested price.
type gas struct {
	limit uint64
	price *big.Int
}

func gasFrom(ctx context.Context) gas {
	g, _ := ctx.Value(gasKey{}).(gas)
	return g
}

// SetGasLimit sets the gas limit used by transactions sent with ctx.
func SetGasLimit(ctx context.Context, limit uint64) context.Context {
	g := gasFrom(ctx)
	g.limit = limit
	return context.WithValue(ctx, gasKey{}, g)
}

// GetGasLimit returns the gas limit set on ctx or 0 if it should be
// estimated.
func GetGasLimit(ctx context.Context) uint64 {
	return gasFrom(ctx).limit
}

// GetGasLimitWithDefault returns the gas limit set on ctx or defaultLimit.
func GetGasLimitWithDefault(ctx context.Context, defaultLimit uint64) uint64 {
	if limit := GetGasLimit(ctx); limit != 0 {
		return limit
	}
	return defaultLimit
}

// SetGasPrice sets the gas price in wei used by transactions sent with ctx.
func SetGasPrice(ctx context.Context, price *big.Int) context.Context {
	g := gasFrom(ctx)
	g.price = price
	return context.WithValue(ctx, gasKey{}, g)
}

// GetGasPrice returns the gas price set on ctx or nil if the suggested gas
// price should be used.
func GetGasPrice(ctx context.Context) *big.Int {
	return gasFrom(ctx).price
}
