// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keeper runs an automation agent for a raffle. It polls
// checkUpkeep and performs upkeep when the raffle is eligible. On
// development chains it also fulfills the randomness request through the
// coordinator mock, standing in for the VRF node.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/raffle"
	"github.com/rafflekit/rafflekit/pkg/vrf"
	"go.uber.org/atomic"
)

const (
	DefaultPollInterval = 15 * time.Second

	closeTimeout = 5 * time.Second
)

type Options struct {
	Logger logging.Logger
	// Raffle sends from the keeper account.
	Raffle raffle.Interface
	// Oracle fulfills requests on development chains. Nil on live chains.
	Oracle       vrf.Interface
	PollInterval time.Duration
}

// Status is a snapshot of the agent counters.
type Status struct {
	Running       bool     `json:"running"`
	Checks        uint64   `json:"checks"`
	Upkeeps       uint64   `json:"upkeeps"`
	Fulfillments  uint64   `json:"fulfillments"`
	LastRequestID *big.Int `json:"lastRequestId,omitempty"`
	LastError     string   `json:"lastError,omitempty"`
}

type Agent struct {
	logger       logging.Logger
	metrics      metrics
	raffle       raffle.Interface
	oracle       vrf.Interface
	pollInterval time.Duration

	running      *atomic.Bool
	checks       *atomic.Uint64
	upkeeps      *atomic.Uint64
	fulfillments *atomic.Uint64

	mu            sync.Mutex
	lastRequestID *big.Int
	lastError     error

	quit chan struct{}
	wg   sync.WaitGroup
}

// New starts an agent. It runs until Close is called.
func New(o Options) *Agent {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	a := &Agent{
		logger:       o.Logger,
		metrics:      newMetrics(),
		raffle:       o.Raffle,
		oracle:       o.Oracle,
		pollInterval: o.PollInterval,
		running:      atomic.NewBool(false),
		checks:       atomic.NewUint64(0),
		upkeeps:      atomic.NewUint64(0),
		fulfillments: atomic.NewUint64(0),
		quit:         make(chan struct{}),
	}

	a.running.Store(true)
	a.wg.Add(1)
	go a.start()

	return a
}

func (a *Agent) start() {
	defer a.wg.Done()
	defer a.running.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-a.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := a.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.setError(err)
			a.logger.Errorf("keeper: %v", err)
		}
		select {
		case <-a.quit:
			return
		case <-ticker.C:
		}
	}
}

// tick checks the raffle once and performs upkeep when needed. It returns
// the request id when upkeep was performed.
func (a *Agent) tick(ctx context.Context) (*big.Int, error) {
	a.checks.Inc()
	a.metrics.Checks.Inc()

	needed, err := a.raffle.CheckUpkeep(ctx)
	if err != nil {
		a.metrics.Errors.Inc()
		return nil, fmt.Errorf("check upkeep: %w", err)
	}
	if !needed {
		return nil, nil
	}

	h, err := a.raffle.PerformUpkeep(ctx)
	if err != nil {
		if errors.Is(err, raffle.ErrUpkeepNotNeeded) {
			// another keeper was first
			a.logger.Debugf("keeper: upkeep no longer needed: %v", err)
			return nil, nil
		}
		a.metrics.Errors.Inc()
		return nil, fmt.Errorf("perform upkeep: %w", err)
	}
	receipt, err := h.Wait(ctx)
	if err != nil {
		a.metrics.Errors.Inc()
		return nil, fmt.Errorf("perform upkeep: %w", err)
	}
	requestID, err := raffle.FindRequestedRaffleWinner(receipt, a.raffle.Address())
	if err != nil {
		a.metrics.Errors.Inc()
		return nil, err
	}
	a.upkeeps.Inc()
	a.metrics.Upkeeps.Inc()
	a.mu.Lock()
	a.lastRequestID = requestID
	a.mu.Unlock()
	a.logger.Infof("keeper: upkeep performed, request %v", requestID)

	if a.oracle == nil {
		return requestID, nil
	}

	h, err = a.oracle.FulfillRandomWords(ctx, requestID, a.raffle.Address())
	if err != nil {
		a.metrics.Errors.Inc()
		return requestID, fmt.Errorf("fulfill request %v: %w", requestID, err)
	}
	if _, err := h.Wait(ctx); err != nil {
		a.metrics.Errors.Inc()
		return requestID, fmt.Errorf("fulfill request %v: %w", requestID, err)
	}
	a.fulfillments.Inc()
	a.metrics.Fulfillments.Inc()
	a.logger.Infof("keeper: request %v fulfilled", requestID)
	return requestID, nil
}

func (a *Agent) setError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = err
}

func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Status{
		Running:      a.running.Load(),
		Checks:       a.checks.Load(),
		Upkeeps:      a.upkeeps.Load(),
		Fulfillments: a.fulfillments.Load(),
	}
	if a.lastRequestID != nil {
		s.LastRequestID = new(big.Int).Set(a.lastRequestID)
	}
	if a.lastError != nil {
		s.LastError = a.lastError.Error()
	}
	return s
}

func (a *Agent) Close() error {
	close(a.quit)

	stopped := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-time.After(closeTimeout):
		return errors.New("stopping keeper with ongoing worker goroutine")
	}
}
