// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	m "github.com/rafflekit/rafflekit/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// counted are the levels with a message counter.
var counted = []logrus.Level{
	logrus.ErrorLevel,
	logrus.WarnLevel,
	logrus.InfoLevel,
	logrus.DebugLevel,
	logrus.TraceLevel,
}

type metrics struct {
	// exported for PrometheusCollectorsFromFields
	MessageCount *prometheus.CounterVec
}

func newMetrics() metrics {
	return metrics{
		MessageCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: "log",
			Name:      "message_count",
			Help:      "Number of log messages by level.",
		}, []string{"level"}),
	}
}

func (l *logger) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(l.metrics)
}

// Levels implements logrus.Hook.
func (metrics) Levels() []logrus.Level {
	return counted
}

// Fire implements logrus.Hook.
func (m metrics) Fire(e *logrus.Entry) error {
	m.MessageCount.WithLabelValues(e.Level.String()).Inc()
	return nil
}
