// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines the tunable parameters for the transport, every
// one of which the base protocol treats as a fixed constant; here they are
// configuration so an implementer can tune them per deployment instead of
// recompiling.
package config

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidChunkSize             = errors.New("invalid chunk size")
	ErrInvalidMaxReordering         = errors.New("invalid max reordering")
	ErrInvalidChannelTimeout        = errors.New("invalid channel timeout")
	ErrInvalidMinPexRequestInterval = errors.New("invalid min pex request interval")
	ErrInvalidTrackerRetryInterval  = errors.New("invalid tracker retry interval bounds")
	ErrInvalidHintGranularity       = errors.New("invalid hint granularity")
	ErrInvalidMaxNonDataDgramSize   = errors.New("invalid max non-data datagram size")
	ErrInvalidLedbatTarget          = errors.New("invalid LEDBAT target")
	ErrInvalidSlowStartDuration     = errors.New("invalid slow-start duration")
	ErrInvalidReciprocityPCoef      = errors.New("invalid reciprocity p-coefficient")
)

// Parameters holds every tunable named, but not assigned a configuration
// home, by the base protocol description.
type Parameters struct {
	// ChunkSize is the fixed size in bytes of one base (leaf) bin, chosen at
	// swarm creation. Default 1 KiB.
	ChunkSize uint32 `json:"chunkSize" yaml:"chunkSize"`

	// MaxReordering bounds how many data-out positions ahead of an acked
	// entry an earlier, still-unacked entry may sit before it is declared
	// lost.
	MaxReordering int `json:"maxReordering" yaml:"maxReordering"`

	// ChannelTimeout is the idle limit, default 60s, for a channel that
	// receives no datagram. Verify checks it, but no code in this module
	// reads it: idle channels are not closed on a timeout.
	ChannelTimeout time.Duration `json:"channelTimeout" yaml:"channelTimeout"`

	// MinPexRequestInterval bounds how often a channel may emit PEX_REQ.
	MinPexRequestInterval time.Duration `json:"minPexRequestInterval" yaml:"minPexRequestInterval"`

	// TrackerRetryIntervalStart and TrackerRetryIntervalMax bound the
	// dispatcher's exponential tracker-reconnect backoff.
	TrackerRetryIntervalStart time.Duration `json:"trackerRetryIntervalStart" yaml:"trackerRetryIntervalStart"`
	TrackerRetryIntervalMax   time.Duration `json:"trackerRetryIntervalMax" yaml:"trackerRetryIntervalMax"`

	// TrackerRetryBackoffFactor is the multiplier applied to the backoff
	// clock on every unsuccessful retry (original_source/transfer.cpp's
	// TRACKER_RETRY_INTERVAL_EXP).
	TrackerRetryBackoffFactor float64 `json:"trackerRetryBackoffFactor" yaml:"trackerRetryBackoffFactor"`

	// HintGranularity is the minimum plan size, in chunks, worth turning
	// into a REQUEST.
	HintGranularity uint32 `json:"hintGranularity" yaml:"hintGranularity"`

	// MaxNonDataDgramSize bounds how large the non-DATA portion of an
	// outgoing datagram may grow before a channel must flush.
	MaxNonDataDgramSize uint32 `json:"maxNonDataDgramSize" yaml:"maxNonDataDgramSize"`

	// LedbatTarget is the configured delay target (TARGET) above the
	// rolling-minimum one-way-delay that the LEDBAT controller aims for.
	LedbatTarget time.Duration `json:"ledbatTarget" yaml:"ledbatTarget"`

	// MinSendInterval floors the LEDBAT send_interval computation.
	MinSendInterval time.Duration `json:"minSendInterval" yaml:"minSendInterval"`

	// SlowStartDuration bounds how long the SLOW_START state lasts before
	// handing off to LEDBAT: cwnd doubles on every ack during it, while the
	// outgoing-request rate allowance ramps linearly over this duration.
	SlowStartDuration time.Duration `json:"slowStartDuration" yaml:"slowStartDuration"`

	// ReciprocityPCoef and ReciprocityPeerCountRatio are the experimental
	// P-controller coefficients Open Questions call out as
	// configuration rather than literals.
	ReciprocityPCoef          float64 `json:"reciprocityPCoef" yaml:"reciprocityPCoef"`
	ReciprocityPeerCountRatio float64 `json:"reciprocityPeerCountRatio" yaml:"reciprocityPeerCountRatio"`

	// HandshakeRetries is how many unanswered HANDSHAKE sends are tolerated
	// before an implementation may fall back to a legacy option set.
	HandshakeRetries int `json:"handshakeRetries" yaml:"handshakeRetries"`

	// ReversePexDelay is the delay before advertising a newly-introduced
	// peer back to its introducer. No code in this module reads it: the
	// dispatcher does not schedule reverse PEX.
	ReversePexDelay time.Duration `json:"reversePexDelay" yaml:"reversePexDelay"`

	// CleanupTick is the dispatcher's periodic housekeeping interval.
	CleanupTick time.Duration `json:"cleanupTick" yaml:"cleanupTick"`
}

// Verify checks that every parameter is within a usable range.
func (p Parameters) Verify() error {
	if p.ChunkSize == 0 {
		return fmt.Errorf("%w: chunkSize=%d", ErrInvalidChunkSize, p.ChunkSize)
	}
	if p.MaxReordering <= 0 {
		return fmt.Errorf("%w: maxReordering=%d", ErrInvalidMaxReordering, p.MaxReordering)
	}
	if p.ChannelTimeout <= 0 {
		return fmt.Errorf("%w: channelTimeout=%s", ErrInvalidChannelTimeout, p.ChannelTimeout)
	}
	if p.MinPexRequestInterval <= 0 {
		return fmt.Errorf("%w: minPexRequestInterval=%s", ErrInvalidMinPexRequestInterval, p.MinPexRequestInterval)
	}
	if p.TrackerRetryIntervalStart <= 0 || p.TrackerRetryIntervalMax < p.TrackerRetryIntervalStart {
		return fmt.Errorf("%w: start=%s max=%s", ErrInvalidTrackerRetryInterval, p.TrackerRetryIntervalStart, p.TrackerRetryIntervalMax)
	}
	if p.HintGranularity == 0 {
		return fmt.Errorf("%w: hintGranularity=%d", ErrInvalidHintGranularity, p.HintGranularity)
	}
	if p.MaxNonDataDgramSize == 0 {
		return fmt.Errorf("%w: maxNonDataDgramSize=%d", ErrInvalidMaxNonDataDgramSize, p.MaxNonDataDgramSize)
	}
	if p.LedbatTarget <= 0 {
		return fmt.Errorf("%w: ledbatTarget=%s", ErrInvalidLedbatTarget, p.LedbatTarget)
	}
	if p.SlowStartDuration <= 0 {
		return fmt.Errorf("%w: slowStartDuration=%s", ErrInvalidSlowStartDuration, p.SlowStartDuration)
	}
	if p.ReciprocityPCoef < 0 {
		return fmt.Errorf("%w: reciprocityPCoef=%f", ErrInvalidReciprocityPCoef, p.ReciprocityPCoef)
	}
	return nil
}

// DefaultParameters returns the values named throughout the base protocol
// description (1 KiB chunks, 60s channel timeout, 5s–30min tracker backoff,
// etc).
func DefaultParameters() Parameters {
	return Parameters{
		ChunkSize:                 1024,
		MaxReordering:             4,
		ChannelTimeout:            60 * time.Second,
		MinPexRequestInterval:     30 * time.Second,
		TrackerRetryIntervalStart: 5 * time.Second,
		TrackerRetryIntervalMax:   30 * time.Minute,
		TrackerRetryBackoffFactor: 1.1,
		HintGranularity:           1,
		MaxNonDataDgramSize:       1280,
		LedbatTarget:              25 * time.Millisecond,
		MinSendInterval:           time.Millisecond,
		SlowStartDuration:         3 * time.Second,
		ReciprocityPCoef:          0.8,
		ReciprocityPeerCountRatio: 1.0,
		HandshakeRetries:          3,
		ReversePexDelay:           2 * time.Second,
		CleanupTick:               5 * time.Second,
	}
}
