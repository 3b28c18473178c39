// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
)

const (
	ContractAddressesFile = "contractAddresses.json"
	ABIFile               = "abi.json"
)

// FrontEnd writes the raffle address book and abi into a front end's
// constants directory.
type FrontEnd struct {
	fs  afero.Fs
	dir string
}

func NewFrontEnd(fs afero.Fs, dir string) *FrontEnd {
	return &FrontEnd{fs: fs, dir: dir}
}

// Update adds address to the addresses of the chain unless it is already
// listed and replaces the abi file.
func (f *FrontEnd) Update(chainID int64, address common.Address, abiJSON []byte) error {
	if err := f.fs.MkdirAll(f.dir, 0755); err != nil {
		return err
	}

	addresses, err := f.Addresses()
	if err != nil {
		return err
	}
	key := strconv.FormatInt(chainID, 10)
	if !containsHex(addresses[key], address) {
		addresses[key] = append(addresses[key], address.Hex())
	}
	b, err := json.Marshal(addresses)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(f.fs, filepath.Join(f.dir, ContractAddressesFile), b, 0644); err != nil {
		return fmt.Errorf("write contract addresses: %w", err)
	}
	if err := afero.WriteFile(f.fs, filepath.Join(f.dir, ABIFile), abiJSON, 0644); err != nil {
		return fmt.Errorf("write abi: %w", err)
	}
	return nil
}

// Addresses reads the address book. A missing file is an empty book.
func (f *FrontEnd) Addresses() (map[string][]string, error) {
	addresses := make(map[string][]string)
	b, err := afero.ReadFile(f.fs, filepath.Join(f.dir, ContractAddressesFile))
	if errors.Is(err, os.ErrNotExist) {
		return addresses, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read contract addresses: %w", err)
	}
	if len(b) == 0 {
		return addresses, nil
	}
	if err := json.Unmarshal(b, &addresses); err != nil {
		return nil, fmt.Errorf("decode contract addresses: %w", err)
	}
	return addresses, nil
}

func containsHex(list []string, address common.Address) bool {
	for _, a := range list {
		if common.HexToAddress(a) == address {
			return true
		}
	}
	return false
}
