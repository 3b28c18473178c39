// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debugapi exposes the debug API used to watch a raffle and the
// keeper that drives it: health, Prometheus metrics, the raffle state as
// read from the chain and the keeper counters.
package debugapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rafflekit/rafflekit/pkg/keeper"
	"github.com/rafflekit/rafflekit/pkg/logging"
	"github.com/rafflekit/rafflekit/pkg/orchestrator"
	"github.com/rafflekit/rafflekit/pkg/tracing"
)

// RaffleReader reads the state of a raffle from the chain.
type RaffleReader interface {
	Sync(ctx context.Context) error
	Model(ctx context.Context) (*orchestrator.Model, error)
}

type KeeperStatuser interface {
	Status() keeper.Status
}

// Service implements http.Handler interface to be used in HTTP server.
type Service struct {
	logger             logging.Logger
	tracer             *tracing.Tracer
	corsAllowedOrigins []string
	metricsRegistry    *prometheus.Registry

	chainID int64
	raffle  RaffleReader
	keeper  KeeperStatuser

	// handler is changed in the Configure method
	handler   http.Handler
	handlerMu sync.RWMutex
}

// New creates a Debug API Service with only the routes that need no
// dependencies: /health, /metrics, pprof and expvar.
func New(logger logging.Logger, tracer *tracing.Tracer, corsAllowedOrigins []string) *Service {
	s := &Service{
		logger:             logger,
		tracer:             tracer,
		corsAllowedOrigins: corsAllowedOrigins,
		metricsRegistry:    newMetricsRegistry(),
	}
	s.setRouter(s.newBasicRouter())
	return s
}

// Configure injects the raffle and, when one runs, the keeper, and exposes
// /readiness, /raffle and /keeper. It is intended to be called once.
func (s *Service) Configure(chainID int64, raffle RaffleReader, keeper KeeperStatuser) {
	s.chainID = chainID
	s.raffle = raffle
	s.keeper = keeper

	s.setRouter(s.newRouter())
}

// ServeHTTP implements http.Handler interface.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// protect handler as it is changed by the Configure method
	s.handlerMu.RLock()
	h := s.handler
	s.handlerMu.RUnlock()

	h.ServeHTTP(w, r)
}
