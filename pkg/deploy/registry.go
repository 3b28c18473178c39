// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package deploy

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/storage"
)

// ErrNotDeployed is returned for contracts without a deployment record on
// the chain.
var ErrNotDeployed = errors.New("deploy: contract not deployed")

// Deployment is the record of a deployed contract.
type Deployment struct {
	Name        string          `json:"name"`
	ChainID     int64           `json:"chainId"`
	Address     common.Address  `json:"address"`
	TxHash      common.Hash     `json:"transactionHash"`
	BlockNumber uint64          `json:"blockNumber"`
	Args        []string        `json:"args"`
	ABI         json.RawMessage `json:"abi"`
	DeployedAt  time.Time       `json:"deployedAt"`
}

// Registry keeps the deployments of one chain in the state store.
type Registry struct {
	store   storage.StateStorer
	chainID int64
}

func NewRegistry(store storage.StateStorer, chainID int64) *Registry {
	return &Registry{store: store, chainID: chainID}
}

func (r *Registry) prefix() string {
	return fmt.Sprintf("deployment_%d_", r.chainID)
}

func (r *Registry) key(name string) string {
	return r.prefix() + name
}

func (r *Registry) Put(d Deployment) error {
	d.ChainID = r.chainID
	return r.store.Put(r.key(d.Name), d)
}

// Get returns the deployment of the named contract.
func (r *Registry) Get(name string) (Deployment, error) {
	var d Deployment
	err := r.store.Get(r.key(name), &d)
	if errors.Is(err, storage.ErrNotFound) {
		return Deployment{}, fmt.Errorf("%s on chain %d: %w", name, r.chainID, ErrNotDeployed)
	}
	if err != nil {
		return Deployment{}, err
	}
	return d, nil
}

// Address returns the address of the named contract.
func (r *Registry) Address(name string) (common.Address, error) {
	d, err := r.Get(name)
	if err != nil {
		return common.Address{}, err
	}
	return d.Address, nil
}

// List returns all deployments of the chain ordered by name.
func (r *Registry) List() ([]Deployment, error) {
	var list []Deployment
	err := r.store.Iterate(r.prefix(), func(_, value []byte) (bool, error) {
		var d Deployment
		if err := json.Unmarshal(value, &d); err != nil {
			return true, err
		}
		list = append(list, d)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Registry) Delete(name string) error {
	return r.store.Delete(r.key(name))
}
