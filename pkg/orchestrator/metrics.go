// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	m "github.com/rafflekit/rafflekit/pkg/metrics"
)

type metrics struct {
	Entries             prometheus.Counter
	EntryErrors         prometheus.Counter
	Upkeeps             prometheus.Counter
	UpkeepErrors        prometheus.Counter
	Fulfillments        prometheus.Counter
	FulfillmentTimeouts prometheus.Counter
	InvariantViolations prometheus.Counter
	Rounds              prometheus.Counter
	LastPot             prometheus.Gauge
	RoundDuration       prometheus.Histogram
}

func newMetrics() metrics {
	subsystem := "orchestrator"

	return metrics{
		Entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "entries",
			Help:      "Number of raffle entries sent.",
		}),
		EntryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "entry_errors",
			Help:      "Number of raffle entries rejected by the contract.",
		}),
		Upkeeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "upkeeps",
			Help:      "Number of performUpkeep calls.",
		}),
		UpkeepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "upkeep_errors",
			Help:      "Number of performUpkeep calls that reverted.",
		}),
		Fulfillments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "fulfillments",
			Help:      "Number of randomness requests fulfilled.",
		}),
		FulfillmentTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "fulfillment_timeouts",
			Help:      "Number of winner waits that timed out.",
		}),
		InvariantViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "invariant_violations",
			Help:      "Number of operations that observed a state contradicting the model.",
		}),
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "rounds",
			Help:      "Number of completed raffle rounds.",
		}),
		LastPot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "last_pot_wei",
			Help:      "Pot paid out in the last round.",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "round_duration_seconds",
			Help:      "Wall clock duration of a full round.",
			Buckets:   []float64{1, 5, 30, 60, 120, 300, 600},
		}),
	}
}

func (o *Orchestrator) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(o.metrics)
}
