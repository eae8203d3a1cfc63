// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import "time"

// keepAliveInterval is how often a channel with no outstanding work sends a
// periodic HAVE/HANDSHAKE to keep NAT bindings alive and detect a silently
// dead peer sooner than ChannelTimeout.
const keepAliveInterval = 20 * time.Second

// String renders the send-control state for logging.
func (s sendState) String() string {
	switch s {
	case statePingPong:
		return "PING_PONG"
	case stateKeepAlive:
		return "KEEP_ALIVE"
	case stateSlowStart:
		return "SLOW_START"
	case stateLedbat:
		return "LEDBAT"
	case stateClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// enterSlowStart switches into SLOW_START, e.g. when new work arrives on an
// idle KEEP_ALIVE channel.
func (c *Channel) enterSlowStart(now time.Time) {
	if c.state == stateClose || c.state == stateLedbat {
		return
	}
	c.state = stateSlowStart
	c.slowStartedAt = now
	if c.cwnd < 1 {
		c.cwnd = 1
	}
}

// onAckSample applies the per-ack congestion-window update for the
// channel's current state.
func (c *Channel) onAckSample() {
	switch c.state {
	case statePingPong:
		c.state = stateLedbat
	case stateKeepAlive:
		c.state = stateLedbat
	case stateSlowStart:
		c.cwnd *= 2
		if time.Since(c.slowStartedAt) > c.owner.Config().SlowStartDuration {
			c.state = stateLedbat
		}
	case stateLedbat:
		c.applyLedbatAckUpdate()
	}
	c.recomputeSendInterval()
}

// applyLedbatAckUpdate grows cwnd proportionally to how far current OWD sits
// below TARGET above the rolling minimum.
func (c *Channel) applyLedbatAckUpdate() {
	cfg := c.owner.Config()
	target := cfg.LedbatTarget
	min := c.minOWD()
	cur := c.owdBuckets[c.owdBucketIdx]
	if cur == 0 || target <= 0 {
		return
	}
	offset := cur - min
	gain := (float64(target) - float64(offset)) / float64(target)
	c.cwnd += gain
	if c.cwnd < 1 {
		c.cwnd = 1
	}
}

// onLossSample applies the per-loss congestion response: SLOW_START exits
// to LEDBAT on first congestion signal; LEDBAT halves cwnd.
func (c *Channel) onLossSample() {
	switch c.state {
	case stateSlowStart:
		c.state = stateLedbat
		c.cwnd /= 2
	case stateLedbat:
		c.cwnd /= 2
	}
	if c.cwnd < 1 {
		c.cwnd = 1
	}
	c.recomputeSendInterval()
}

// recomputeSendInterval applies send_interval = max(rtt/cwnd, min_send_interval).
func (c *Channel) recomputeSendInterval() {
	cfg := c.owner.Config()
	if c.rttAvg <= 0 || c.cwnd <= 0 {
		c.sendInterval = cfg.MinSendInterval
		return
	}
	interval := time.Duration(float64(c.rttAvg) / c.cwnd)
	if interval < cfg.MinSendInterval {
		interval = cfg.MinSendInterval
	}
	c.sendInterval = interval
	if m := c.owner.Metrics(); m != nil {
		m.CwndAvg.Set(c.cwnd)
		m.RTTAvg.Set(float64(c.rttAvg.Milliseconds()))
	}
}

// NextSendTime returns when this channel should next be given a send
// opportunity, and false if the state machine has decided to close
// (original_source's TINT_NEVER sentinel).
func (c *Channel) NextSendTime() (time.Time, bool) {
	if c.state == stateClose {
		return time.Time{}, false
	}
	if len(c.dataOutTmo) > 0 {
		return time.Now(), true
	}
	if c.lastSend.IsZero() {
		return time.Now(), true
	}
	switch c.state {
	case stateKeepAlive:
		return c.lastSend.Add(keepAliveInterval), true
	default:
		return c.lastSend.Add(c.sendInterval), true
	}
}

// enterKeepAlive switches into KEEP_ALIVE when there is no outstanding work.
func (c *Channel) enterKeepAlive() {
	if c.state == stateClose {
		return
	}
	c.state = stateKeepAlive
}

// hasOutstandingWork reports whether the channel has anything to send
// besides a keep-alive probe.
func (c *Channel) hasOutstandingWork() bool {
	return len(c.hintIn) > 0 || len(c.dataOutTmo) > 0 || len(c.hintOut) > 0
}
