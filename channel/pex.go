// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import (
	"time"

	"github.com/luxfi/swift/binset"
)

// pexBackoff is how long a channel suppresses further PEX_REQ after more
// than two consecutive useless requests.
const pexBackoff = 30 * time.Second

// canRequestPex reports whether this channel may emit a PEX_REQ now,
// respecting MinPexRequestInterval and the useless-request backoff.
func (c *Channel) canRequestPex(now time.Time) bool {
	if now.Before(c.nextPexRequestTime) {
		return false
	}
	return !c.pexRequested
}

// notePexRequested records that we just sent PEX_REQ.
func (c *Channel) notePexRequested(now time.Time) {
	c.pexRequested = true
	c.nextPexRequestTime = now.Add(c.owner.Config().MinPexRequestInterval)
}

// notePexResponse records the outcome of a PEX round: gotNew resets the
// useless counter; otherwise, after more than 2 consecutive useless rounds,
// the channel backs off an extra pexBackoff.
func (c *Channel) notePexResponse(gotNew bool, now time.Time) {
	c.pexRequested = false
	if gotNew {
		c.uselessPexCount = 0
		return
	}
	c.uselessPexCount++
	if c.uselessPexCount > 2 {
		c.nextPexRequestTime = now.Add(pexBackoff)
		c.uselessPexCount = 0
	}
}

// queueReversePex records endpoint to be advertised back to this channel,
// per NAT-punching helper; the channel just remembers what's pending to
// send on its next outgoing PEX opportunity. A set dedups an introducer
// announced more than once. Nothing in this module calls it or
// drainReversePex: the dispatcher does not schedule reverse PEX.
func (c *Channel) queueReversePex(endpoint string) {
	if c.reversePexOut == nil {
		c.reversePexOut = binset.Of[string]()
	}
	c.reversePexOut.Add(endpoint)
}

// drainReversePex returns and clears the endpoints queued for reverse PEX.
func (c *Channel) drainReversePex() []string {
	out := c.reversePexOut.List()
	c.reversePexOut.Clear()
	return out
}

// isPrivateEndpoint reports whether endpoint's address looks like an
// RFC1918 private IPv4 range or a loopback address (127.0.0.1, ::1); IPv6
// unique-local ranges are not recognized. privacy rule: a private peer
// address MUST NOT be announced to a peer whose own address is non-private.
func isPrivateEndpoint(host string) bool {
	switch {
	case len(host) >= 3 && host[:3] == "10.":
		return true
	case len(host) >= 8 && host[:8] == "192.168.":
		return true
	case len(host) >= 4 && host[:4] == "172.":
		// 172.16.0.0/12: second octet 16-31.
		oct, i := 0, 4
		for i < len(host) && host[i] >= '0' && host[i] <= '9' {
			oct = oct*10 + int(host[i]-'0')
			i++
		}
		return i > 4 && i < len(host) && host[i] == '.' && oct >= 16 && oct <= 31
	case host == "127.0.0.1" || host == "::1":
		return true
	default:
		return false
	}
}
