// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crypto loads the secp256k1 account keys and signs transactions
// with them.
package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrEmptyKey is returned when a private key value is empty.
var ErrEmptyKey = errors.New("empty private key")

// GenerateSecp256k1Key generates an ECDSA private key using
// secp256k1 elliptic curve.
func GenerateSecp256k1Key() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// DecodeHexKey decodes a hex encoded private key as found in DEVxx_PRIVATE_KEY
// environment variables. The 0x prefix is optional.
func DecodeHexKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, ErrEmptyKey
	}
	k, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return k, nil
}

// DecodeHexKeys decodes keys in order, skipping empty values.
func DecodeHexKeys(values ...string) ([]*ecdsa.PrivateKey, error) {
	keys := make([]*ecdsa.PrivateKey, 0, len(values))
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		k, err := DecodeHexKey(v)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// NewEthereumAddress returns the account address of the public key.
func NewEthereumAddress(p ecdsa.PublicKey) (common.Address, error) {
	if p.X == nil || p.Y == nil {
		return common.Address{}, errors.New("invalid public key")
	}
	return crypto.PubkeyToAddress(p), nil
}
