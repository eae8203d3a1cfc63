// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import (
	"time"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
	"github.com/luxfi/swift/config"
)

// planForDuration is how far ahead the outgoing hint pipeline plans
// requests: queue_allowance targets planForDuration/dip_avg chunks
// outstanding.
const planForDuration = 2 * time.Second

// HintInSize reports how many base chunks this channel currently has
// outstanding in hint-in (requested from the peer, not yet delivered). The
// owning transfer sums this across sibling channels to enforce a
// swarm-wide download budget.
func (c *Channel) HintInSize() uint64 { return c.hintInSize }

// planOutgoingHint computes plan = min(queue_allowance, rate_allowance), and
// if it clears HintGranularity (or nothing is outstanding yet), asks the
// picker for a bin of that size to request from peerHave.
func (c *Channel) planOutgoingHint(peerHave *binmap.Binmap, twist uint64) (bin.Bin, bool) {
	cfg := c.owner.Config()

	queueAllowance := uint64(0)
	if c.dipAvg > 0 {
		target := float64(planForDuration) / float64(c.dipAvg)
		if target > float64(c.hintOutSize) {
			queueAllowance = uint64(target) - c.hintOutSize
		}
	} else if c.hintOutSize == 0 {
		queueAllowance = uint64(cfg.HintGranularity)
	}

	rateAllowance := c.rateAllowance(cfg)

	plan := queueAllowance
	if rateAllowance < plan {
		plan = rateAllowance
	}

	if c.hintOutSize != 0 && plan < uint64(cfg.HintGranularity) {
		return bin.NONE, false
	}
	if plan == 0 {
		return bin.NONE, false
	}

	picked := c.owner.Picker().Pick(peerHave, plan, twist)
	if picked.IsNone() {
		return bin.NONE, false
	}
	c.hintOut = append(c.hintOut, picked)
	c.hintOutSize += picked.BaseLength()
	return picked, true
}

// rateAllowance derives the rate-limited portion of plan from the
// transfer's configured max download rate, this channel's chunk size, and
// the hints already outstanding on every other channel of this transfer.
// A configured rate of zero means unlimited.
func (c *Channel) rateAllowance(cfg *config.Parameters) uint64 {
	maxRate := c.owner.MaxDownloadBytesPerSec()
	if maxRate <= 0 {
		return ^uint64(0) // unlimited
	}
	chunksPerSec := maxRate / float64(cfg.ChunkSize)
	budget := chunksPerSec * planForDuration.Seconds()

	if c.state == stateSlowStart {
		elapsed := time.Since(c.slowStartedAt)
		if elapsed < cfg.SlowStartDuration && cfg.SlowStartDuration > 0 {
			budget *= elapsed.Seconds() / cfg.SlowStartDuration.Seconds()
		}
	}

	outstanding := c.owner.OutstandingHintChunksExcept(c)
	if float64(outstanding) >= budget {
		return 0
	}
	return uint64(budget) - outstanding
}

// onHintTimeout moves a timed-out outgoing hint off hint-out; if CANCEL
// support is enabled by the caller (transfer/config), the caller is
// responsible for emitting the CANCEL frame for the parts of it that don't
// intersect a freshly re-requested bin.
func (c *Channel) onHintTimeout(addr bin.Bin) {
	for i, h := range c.hintOut {
		if h == addr {
			c.hintOut = append(c.hintOut[:i], c.hintOut[i+1:]...)
			if c.hintOutSize >= addr.BaseLength() {
				c.hintOutSize -= addr.BaseLength()
			}
			return
		}
	}
}

// noteHintAnswered removes addr from hint-out once DATA for it has arrived.
func (c *Channel) noteHintAnswered(addr bin.Bin) {
	c.onHintTimeout(addr)
}

// appendHintIn records a peer's REQUEST, to be serviced on a later send.
func (c *Channel) appendHintIn(addr bin.Bin) {
	c.hintIn = append(c.hintIn, addr)
	c.hintInSize += addr.BaseLength()
}

// nextHintIn dequeues from the front of hint-in, splitting non-base bins
// into halves (right pushed back, left consumed) until a base bin that is
// still needed (we have it; the peer doesn't, by ackIn's absence of it) is
// found. haveFilled abstracts over the owning transfer's hash tree, which
// may be a growing in-memory tree or an always-complete zero-state facade.
func (c *Channel) nextHintIn(haveFilled func(bin.Bin) bool) (bin.Bin, bool) {
	for len(c.hintIn) > 0 {
		b := c.hintIn[0]
		c.hintIn = c.hintIn[1:]
		if c.hintInSize >= b.BaseLength() {
			c.hintInSize -= b.BaseLength()
		}

		if !b.IsBase() {
			left, right := b.Left(), b.Right()
			c.hintIn = append([]bin.Bin{left}, c.hintIn...)
			c.hintIn = append(c.hintIn, right)
			c.hintInSize += left.BaseLength() + right.BaseLength()
			continue
		}

		if haveFilled(b) && !c.ackIn.IsFilled(b) {
			return b, true
		}
		// either we don't have it (can't serve) or the peer already has it
		// (ack-in already covers it): skip and keep draining.
	}
	return bin.NONE, false
}

// cancelHintIn applies an incoming CANCEL for target: remove any hint-in
// entry it fully contains, and split any hint-in entry that contains it,
// keeping the remaining sub-bins.
func (c *Channel) cancelHintIn(target bin.Bin) {
	var next []bin.Bin
	for _, e := range c.hintIn {
		switch {
		case target.Contains(e):
			continue
		case e.Contains(target):
			next = append(next, splitExcluding(e, target)...)
		default:
			next = append(next, e)
		}
	}
	c.hintIn = next
	var size uint64
	for _, e := range c.hintIn {
		size += e.BaseLength()
	}
	c.hintInSize = size
}

// splitExcluding returns the minimal set of aligned bins covering e's range
// minus target's range, assuming target ⊆ e.
func splitExcluding(e, target bin.Bin) []bin.Bin {
	if e == target {
		return nil
	}
	left, right := e.Left(), e.Right()
	if left.IsNone() {
		return nil // e is a base bin equal to target; handled above.
	}
	if left.Contains(target) {
		return append(splitExcluding(left, target), right)
	}
	return append([]bin.Bin{left}, splitExcluding(right, target)...)
}
