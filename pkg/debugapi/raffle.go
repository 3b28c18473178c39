// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rafflekit/rafflekit/pkg/bigint"
	"github.com/rafflekit/rafflekit/pkg/jsonhttp"
)

type raffleResponse struct {
	ChainID         int64            `json:"chainId"`
	State           string           `json:"state"`
	EntranceFee     *bigint.BigInt   `json:"entranceFee"`
	IntervalSeconds int64            `json:"intervalSeconds"`
	Players         []common.Address `json:"players"`
	Balance         *bigint.BigInt   `json:"balance"`
	LastTimestamp   time.Time        `json:"lastTimestamp"`
	RecentWinner    common.Address   `json:"recentWinner"`
}

func (s *Service) raffleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.raffle.Sync(ctx); err != nil {
		s.logger.Debugf("debug api: raffle: sync: %v", err)
		s.logger.Error("debug api: raffle: cannot read raffle state")
		jsonhttp.InternalServerError(w, "cannot read raffle state")
		return
	}
	m, err := s.raffle.Model(ctx)
	if err != nil {
		s.logger.Debugf("debug api: raffle: model: %v", err)
		s.logger.Error("debug api: raffle: cannot read raffle state")
		jsonhttp.InternalServerError(w, "cannot read raffle state")
		return
	}

	players := m.Players
	if players == nil {
		players = []common.Address{}
	}
	jsonhttp.OK(w, raffleResponse{
		ChainID:         s.chainID,
		State:           m.State.String(),
		EntranceFee:     bigint.Wrap(m.EntranceFee),
		IntervalSeconds: int64(m.Interval / time.Second),
		Players:         players,
		Balance:         bigint.Wrap(m.Balance),
		LastTimestamp:   m.LastTimestamp.UTC(),
		RecentWinner:    m.RecentWinner,
	})
}
