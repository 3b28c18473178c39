// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"errors"
	"fmt"

	"github.com/rafflekit/rafflekit/pkg/config"
	"github.com/rafflekit/rafflekit/pkg/raffle"
	"github.com/rafflekit/rafflekit/pkg/vrf"
)

var (
	// ErrFulfillmentTimeout is returned when no WinnerPicked event arrives
	// within the fulfillment timeout.
	ErrFulfillmentTimeout = errors.New("orchestrator: timed out waiting for winner")
	// ErrUnknownRequest is returned when fulfilling a request id that was
	// never created or was already fulfilled.
	ErrUnknownRequest = errors.New("orchestrator: unknown randomness request")
	// ErrCallbackFailed is returned when the coordinator fulfilled the
	// request but the raffle callback reverted.
	ErrCallbackFailed = errors.New("orchestrator: fulfillment callback failed")
	// ErrNoOracle is returned by operations that need direct coordinator
	// access on chains where the coordinator is a live service.
	ErrNoOracle = errors.New("orchestrator: no coordinator access")
	// ErrNoPlayers is returned when a round is started without entrants.
	ErrNoPlayers = errors.New("orchestrator: no players")
)

// InvariantError reports an observed contract state that contradicts the
// raffle model.
type InvariantError struct {
	Invariant string
	Want      interface{}
	Got       interface{}
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated: want %v, got %v", e.Invariant, e.Want, e.Got)
}

func violation(invariant string, want, got interface{}) *InvariantError {
	return &InvariantError{Invariant: invariant, Want: want, Got: got}
}

// Kind classifies orchestration failures.
type Kind int

const (
	KindOther Kind = iota
	KindPrecondition
	KindTimeout
	KindInvariant
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindPrecondition:
		return "precondition"
	case KindTimeout:
		return "timeout"
	case KindInvariant:
		return "invariant"
	case KindConfig:
		return "config"
	default:
		return "other"
	}
}

// KindOf returns the class of err. Invariant violations take precedence
// over the other kinds, so an aggregated error containing one is reported
// as KindInvariant.
func KindOf(err error) Kind {
	if err == nil {
		return KindOther
	}
	var ie *InvariantError
	if errors.As(err, &ie) {
		return KindInvariant
	}
	var me *config.MissingFieldError
	switch {
	case errors.Is(err, ErrFulfillmentTimeout):
		return KindTimeout
	case errors.Is(err, raffle.ErrInsufficientFee),
		errors.Is(err, raffle.ErrNotOpen),
		errors.Is(err, raffle.ErrUpkeepNotNeeded),
		errors.Is(err, ErrUnknownRequest),
		errors.Is(err, vrf.ErrNonexistentRequest):
		return KindPrecondition
	case errors.Is(err, config.ErrUnknownChain), errors.As(err, &me):
		return KindConfig
	}
	return KindOther
}
