// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bigint carries wei amounts and request ids through JSON as
// decimal strings.
package bigint

import (
	"encoding/json"
	"fmt"
	"math/big"
)

type BigInt struct {
	big.Int
}

func (i BigInt) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, i.String())), nil
}

func (i *BigInt) UnmarshalJSON(b []byte) error {
	var val string
	if err := json.Unmarshal(b, &val); err != nil {
		return err
	}
	if _, ok := i.SetString(val, 10); !ok {
		return fmt.Errorf("bigint: invalid decimal %q", val)
	}
	return nil
}

// Wrap returns i as a BigInt. A nil i stays nil so that optional amounts
// are omitted.
func Wrap(i *big.Int) *BigInt {
	if i == nil {
		return nil
	}
	return &BigInt{*i}
}

var weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// Ether formats a wei amount in ether.
func Ether(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Text('f', -1)
}
