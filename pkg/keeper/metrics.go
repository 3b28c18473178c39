// Copyright 2022 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package keeper

import (
	"github.com/prometheus/client_golang/prometheus"
	m "github.com/rafflekit/rafflekit/pkg/metrics"
)

type metrics struct {
	Checks       prometheus.Counter
	Upkeeps      prometheus.Counter
	Fulfillments prometheus.Counter
	Errors       prometheus.Counter
}

func newMetrics() metrics {
	subsystem := "keeper"

	return metrics{
		Checks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "checks",
			Help:      "Number of checkUpkeep calls.",
		}),
		Upkeeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "upkeeps",
			Help:      "Number of upkeeps performed.",
		}),
		Fulfillments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "fulfillments",
			Help:      "Number of randomness requests fulfilled.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "errors",
			Help:      "Number of failed keeper calls.",
		}),
	}
}

func (a *Agent) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(a.metrics)
}
