// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wires the transport's per-transfer and per-channel
// counters into Prometheus: a constructor that registers every collector
// against a caller-supplied prometheus.Registerer and returns a struct of
// already-bound collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of collectors the dispatcher, transfers and channels
// update. All are registered
// eagerly in New so a missing Inc/Observe call is a silent no-op rather
// than a nil-pointer panic.
type Metrics struct {
	// ChannelsOpen is the current number of live channels across all transfers.
	ChannelsOpen prometheus.Gauge

	// ChannelsClosed counts channel closes, labeled by reason.
	ChannelsClosed *prometheus.CounterVec

	// BytesUp and BytesDown count useful (payload) bytes; RawBytesUp and
	// RawBytesDown additionally include wire framing overhead, matching
	// original_source's raw_bytes_up_ vs bytes_up_ split.
	BytesUp      prometheus.Counter
	BytesDown    prometheus.Counter
	RawBytesUp   prometheus.Counter
	RawBytesDown prometheus.Counter

	// DatagramsUp and DatagramsDown count sent/received datagrams process-wide.
	DatagramsUp   prometheus.Counter
	DatagramsDown prometheus.Counter

	// Retransmits counts data-out entries moved to the retransmit queue.
	Retransmits prometheus.Counter

	// DuplicateAcks counts acks for bins already acked (testable property 3).
	DuplicateAcks prometheus.Counter

	// CwndAvg samples the LEDBAT congestion window across channels.
	CwndAvg prometheus.Gauge

	// RTTAvg samples the smoothed round-trip time across channels, in
	// milliseconds.
	RTTAvg prometheus.Gauge

	// TrackerRetries counts dispatcher tracker-reconnect attempts.
	TrackerRetries prometheus.Counter
}

// New creates and registers the transport's metrics against reg, prefixing
// every collector name with namespace (e.g. "swift").
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ChannelsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_open",
			Help:      "Number of currently open channels across all transfers.",
		}),
		ChannelsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_closed_total",
			Help:      "Number of channels closed, by reason.",
		}, []string{"reason"}),
		BytesUp: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_up_total",
			Help:      "Useful payload bytes sent.",
		}),
		BytesDown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_down_total",
			Help:      "Useful payload bytes received.",
		}),
		RawBytesUp: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_bytes_up_total",
			Help:      "Total bytes sent, including wire framing overhead.",
		}),
		RawBytesDown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_bytes_down_total",
			Help:      "Total bytes received, including wire framing overhead.",
		}),
		DatagramsUp: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_up_total",
			Help:      "Datagrams sent.",
		}),
		DatagramsDown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_down_total",
			Help:      "Datagrams received.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retransmits_total",
			Help:      "data-out entries moved to the retransmit queue.",
		}),
		DuplicateAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_acks_total",
			Help:      "Acks received for a bin already acked.",
		}),
		CwndAvg: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cwnd_avg",
			Help:      "Most recently sampled LEDBAT congestion window, in chunks.",
		}),
		RTTAvg: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rtt_avg_ms",
			Help:      "Most recently sampled smoothed round-trip time, in milliseconds.",
		}),
		TrackerRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracker_retries_total",
			Help:      "Tracker reconnect attempts made by the dispatcher.",
		}),
	}

	collectors := []prometheus.Collector{
		m.ChannelsOpen, m.ChannelsClosed, m.BytesUp, m.BytesDown,
		m.RawBytesUp, m.RawBytesDown, m.DatagramsUp, m.DatagramsDown,
		m.Retransmits, m.DuplicateAcks, m.CwndAvg, m.RTTAvg, m.TrackerRetries,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewNoOp returns a Metrics backed by an unregistered private registry, for
// callers (tests, benchmarks) that want working collectors without needing
// a real Registerer.
func NewNoOp() *Metrics {
	m, err := New("swift", prometheus.NewRegistry())
	if err != nil {
		// Collector construction with a fresh, private registry cannot
		// fail with a duplicate-registration error.
		panic(err)
	}
	return m
}
