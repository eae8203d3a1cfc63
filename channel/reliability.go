// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import (
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/swift/bin"
)

// maxPossibleRTT bounds how long a data-out-tmo entry may sit before it is
// discarded outright rather than retried again. Not exposed as a
// tunable: original_source treats it as a hard safety ceiling, not a
// deployment knob, unlike the timers config.Parameters exposes.
const maxPossibleRTT = 60 * time.Second

// retransmitFloor is the safety floor added to rtt+4*dev so a single early,
// unusually fast ack sample can't make the computed timeout implausibly
// small.
const retransmitFloor = 100 * time.Millisecond

// recordSent appends addr to data-out with a send timestamp.
func (c *Channel) recordSent(addr bin.Bin, now time.Time) {
	c.dataOut = append(c.dataOut, DataOutEntry{Addr: addr, SentAt: now})
}

// onAck applies an ACK for addr, per ack semantics.
func (c *Channel) onAck(addr bin.Bin, owdMicros uint64, now time.Time) {
	idx := -1
	for i, e := range c.dataOut {
		if e.Addr == addr {
			idx = i
			break
		}
	}

	if c.ackIn.IsFilled(addr) {
		// Testable property 3: a repeat ack for an already-acked bin is a
		// duplicate; it must not double-credit bytes but does advance the
		// data-interarrival clock.
		if m := c.owner.Metrics(); m != nil {
			m.DuplicateAcks.Inc()
		}
		c.updateDipAvg(now)
		c.lastRecv = now
		return
	}

	if idx >= 0 && !c.dataOut[idx].Acked {
		sample := now.Sub(c.dataOut[idx].SentAt)
		c.updateRTT(sample)
		c.recordOWD(time.Duration(owdMicros) * time.Microsecond)
		c.dataOut[idx].Acked = true
		c.onAckSample()
	}

	_ = c.ackIn.Set(addr)
	c.updateDipAvg(now)
	c.lastRecv = now

	if idx < 0 {
		return
	}

	// Entries sent before the acked one, more than MaxReordering sends
	// ago, that are still unacked are declared lost.
	maxReordering := c.owner.Config().MaxReordering
	var lost []bin.Bin
	for i := 0; i < idx; i++ {
		if c.dataOut[i].Acked {
			continue
		}
		if idx-i <= maxReordering {
			continue
		}
		lost = append(lost, c.dataOut[i].Addr)
	}
	for _, a := range lost {
		c.markLost(a, now)
	}

	c.compactDataOut()
}

// updateRTT applies the smoothed-RTT and mean-deviation formulas.
func (c *Channel) updateRTT(sample time.Duration) {
	if c.rttAvg == 0 {
		c.rttAvg = sample
		c.devAvg = sample / 2
		return
	}
	diff := sample - c.rttAvg
	if diff < 0 {
		diff = -diff
	}
	c.rttAvg = (7*c.rttAvg + sample) / 8
	c.devAvg = (3*c.devAvg + diff) / 4
}

// recordOWD records a one-way-delay sample into the current 30-second
// rolling-min bucket, rotating buckets as time advances.
func (c *Channel) recordOWD(owd time.Duration) {
	if c.owdBucketStart.IsZero() {
		c.owdBucketStart = time.Now()
	}
	if time.Since(c.owdBucketStart) > 30*time.Second {
		c.owdBucketIdx = (c.owdBucketIdx + 1) % len(c.owdBuckets)
		c.owdBuckets[c.owdBucketIdx] = 0
		c.owdBucketStart = time.Now()
	}
	cur := c.owdBuckets[c.owdBucketIdx]
	if cur == 0 || owd < cur {
		c.owdBuckets[c.owdBucketIdx] = owd
	}
}

// minOWD returns the minimum one-way-delay sample across all rolling
// buckets, the LEDBAT controller's delay floor.
func (c *Channel) minOWD() time.Duration {
	var min time.Duration
	for _, b := range c.owdBuckets {
		if b == 0 {
			continue
		}
		if min == 0 || b < min {
			min = b
		}
	}
	return min
}

func (c *Channel) updateDipAvg(now time.Time) {
	if c.lastRecv.IsZero() {
		return
	}
	sample := now.Sub(c.lastRecv)
	if c.dipAvg == 0 {
		c.dipAvg = sample
		return
	}
	c.dipAvg = (7*c.dipAvg + sample) / 8
}

// markLost moves addr from data-out to the retransmit queue.
func (c *Channel) markLost(addr bin.Bin, now time.Time) {
	for i, e := range c.dataOut {
		if e.Addr == addr {
			c.dataOutTmo = append(c.dataOutTmo, DataOutEntry{Addr: addr, SentAt: now})
			c.dataOut = append(c.dataOut[:i], c.dataOut[i+1:]...)
			break
		}
	}
	if m := c.owner.Metrics(); m != nil {
		m.Retransmits.Inc()
	}
	c.onLossSample()
	c.log.Debug("bin marked lost", zap.Stringer("bin", addr))
}

// compactDataOut drops acked entries from the front of data-out, the
// "drop zeroed entries from the front" rule; only the front is
// compacted since later unacked entries must stay in order for the
// reordering check above to index correctly on the next ack.
func (c *Channel) compactDataOut() {
	i := 0
	for i < len(c.dataOut) && c.dataOut[i].Acked {
		i++
	}
	if i > 0 {
		c.dataOut = append([]DataOutEntry(nil), c.dataOut[i:]...)
	}
}

// retransmitTimeout is rtt + 4*dev plus a safety floor.
func (c *Channel) retransmitTimeout() time.Duration {
	t := c.rttAvg + 4*c.devAvg + retransmitFloor
	if t < retransmitFloor {
		return retransmitFloor
	}
	return t
}

// checkRetransmits moves any data-out entry older than retransmitTimeout
// into data-out-tmo, and discards data-out-tmo entries older than
// maxPossibleRTT outright.
func (c *Channel) checkRetransmits(now time.Time) {
	timeout := c.retransmitTimeout()
	var stillOut []DataOutEntry
	for _, e := range c.dataOut {
		if !e.Acked && now.Sub(e.SentAt) > timeout {
			c.dataOutTmo = append(c.dataOutTmo, e)
			if m := c.owner.Metrics(); m != nil {
				m.Retransmits.Inc()
			}
			c.onLossSample()
			continue
		}
		stillOut = append(stillOut, e)
	}
	c.dataOut = stillOut

	var stillTmo []DataOutEntry
	for _, e := range c.dataOutTmo {
		if now.Sub(e.SentAt) > maxPossibleRTT {
			continue
		}
		stillTmo = append(stillTmo, e)
	}
	c.dataOutTmo = stillTmo
}

// nextRetransmit pops the oldest data-out-tmo entry, if any, for the send
// path to re-send ahead of new hints.
func (c *Channel) nextRetransmit() (bin.Bin, bool) {
	if len(c.dataOutTmo) == 0 {
		return bin.NONE, false
	}
	e := c.dataOutTmo[0]
	c.dataOutTmo = c.dataOutTmo[1:]
	return e.Addr, true
}
