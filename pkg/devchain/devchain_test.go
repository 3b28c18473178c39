// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package devchain_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/go-cmp/cmp"
	"github.com/rafflekit/rafflekit/pkg/devchain"
	"github.com/rafflekit/rafflekit/pkg/transaction/backendmock"
)

type call struct {
	Method string
	Args   []interface{}
}

// recorder answers node calls with canned JSON results.
type recorder struct {
	calls   []call
	results map[string]string
}

func (r *recorder) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	r.calls = append(r.calls, call{Method: method, Args: args})
	res, ok := r.results[method]
	if !ok {
		res = "null"
	}
	return json.Unmarshal([]byte(res), result)
}

func TestNodeTimeTravel(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{results: map[string]string{
		"evm_increaseTime": "31",
		"evm_mine":         `"0x0"`,
	}}
	node := devchain.New(backendmock.New(), rec)

	if err := devchain.Advance(ctx, node, 31*time.Second); err != nil {
		t.Fatal(err)
	}

	want := []call{
		{Method: "evm_increaseTime", Args: []interface{}{int64(31)}},
		{Method: "evm_mine", Args: nil},
	}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestNodeSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("revert", func(t *testing.T) {
		rec := &recorder{results: map[string]string{
			"evm_snapshot": `"0x1"`,
			"evm_revert":   "true",
		}}
		node := devchain.New(backendmock.New(), rec)

		id, err := node.Snapshot(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if id != "0x1" {
			t.Fatalf("got snapshot id %q, want 0x1", id)
		}
		if err := node.Revert(ctx, id); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("unknown snapshot", func(t *testing.T) {
		rec := &recorder{results: map[string]string{"evm_revert": "false"}}
		node := devchain.New(backendmock.New(), rec)

		if err := node.Revert(ctx, "0x9"); !errors.Is(err, devchain.ErrSnapshotNotFound) {
			t.Fatalf("got error %v, want %v", err, devchain.ErrSnapshotNotFound)
		}
	})
}

func TestNodeNow(t *testing.T) {
	node := devchain.New(backendmock.New(
		backendmock.WithHeaderByNumberFunc(func(ctx context.Context, number *big.Int) (*types.Header, error) {
			if number != nil {
				t.Fatalf("requested block %v, want latest", number)
			}
			return &types.Header{Time: 1_700_000_000}, nil
		}),
	), nil)

	now, err := node.Now(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if now.Unix() != 1_700_000_000 {
		t.Fatalf("got time %v", now)
	}
}
