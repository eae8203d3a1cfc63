// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package recip defines the pluggable reciprocity/prioritization capability:
// a small policy interface for shaping per-channel send intervals by peer
// weight, with a neutral default implementation. A transfer hands its
// Policy to channels through channel.Owner, but no code in this module
// calls the Policy methods, so a policy does not affect send timing.
package recip

import "time"

// PeerView is the read-only slice of a channel's state the policy needs to
// make a decision, without giving it access to the channel itself (so a
// policy can never reach into core invariants or mutate them concurrently).
type PeerView struct {
	Endpoint   string
	BytesUp    uint64
	BytesDown  uint64
	PeerCount  int
	IsSeed     bool
}

// Policy is the reciprocity capability: peer add/remove notification plus
// a per-send-interval hook.
type Policy interface {
	// OnPeerAdd reports that a channel to endpoint in swarm is established.
	OnPeerAdd(endpoint, swarm string)

	// OnPeerDel reports that a channel to endpoint in swarm closed.
	OnPeerDel(endpoint, swarm string)

	// SendIntervalFor returns a policy-imposed override for a channel's
	// send interval, or zero to leave the congestion controller's own
	// computation unmodified.
	SendIntervalFor(view PeerView) time.Duration

	// ExternalCmd delivers an out-of-band policy command (e.g. from the
	// control surface's external tooling); implementations may ignore it.
	ExternalCmd(cmd string)
}

// Neutral is the default policy: it never overrides the congestion
// controller's own send-interval computation.
type Neutral struct{}

func (Neutral) OnPeerAdd(string, string)             {}
func (Neutral) OnPeerDel(string, string)              {}
func (Neutral) SendIntervalFor(PeerView) time.Duration { return 0 }
func (Neutral) ExternalCmd(string)                    {}

var _ Policy = Neutral{}
