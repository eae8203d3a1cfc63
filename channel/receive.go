// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import (
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/hashtree"
	"github.com/luxfi/swift/wire"
)

type pendingAck struct {
	addr              bin.Bin
	oneWayDelayMicros uint64
}

type peerInfo struct {
	endpoint string
}

// Receive processes one already-decoded datagram's messages in wire order.
// Malformed content at the message-decode layer never reaches here (the
// dispatcher closes the channel on a decode error); Receive handles
// semantic-level issues, e.g. an out-of-range bin.
func (c *Channel) Receive(dg wire.Datagram, now time.Time) {
	if c.state == stateClose {
		return
	}
	c.lastRecv = now
	if m := c.owner.Metrics(); m != nil {
		m.DatagramsDown.Inc()
	}

	hadWork := false
	for _, m := range dg.Messages {
		switch v := m.(type) {
		case wire.Handshake:
			c.handleHandshake(v, now)
		case wire.Integrity:
			_ = c.owner.HashTree().OfferHash(v.Addr, hashtree.Hash(v.Hash))
		case wire.SignedIntegrity:
			// Live-signature verification is an interface slot, not
			// implemented here.
		case wire.Data:
			c.handleData(v, now)
			hadWork = true
		case wire.Ack:
			c.onAck(v.Addr, v.OneWayDelayMicros, now)
		case wire.Have:
			_ = c.ackIn.Set(v.Addr)
		case wire.Request:
			c.appendHintIn(v.Addr)
			hadWork = true
		case wire.Cancel:
			c.cancelHintIn(v.Addr)
		case wire.PexReq:
			c.pexReqPending = true
		case wire.PexResV4:
			c.pexPeersIn = append(c.pexPeersIn, peerInfo{endpoint: formatV4(v)})
		case wire.PexResV6:
			c.pexPeersIn = append(c.pexPeersIn, peerInfo{endpoint: formatV6(v)})
		case wire.PexResCert:
			// Certificate-addressed peers aren't dialable by this transport
			// directly, so they are not recorded in pexPeersIn.
		case wire.Choke:
			c.peerChoking = true
		case wire.Unchoke:
			c.peerChoking = false
		case wire.Randomize:
			// anti-fragmentation padding only.
		}
	}

	if c.state == stateKeepAlive && hadWork {
		c.enterSlowStart(now)
	}
}

// handleHandshake applies establishment and explicit-close rules; duplicate
// resolution happens earlier, in the dispatcher's handshake routing.
// Establishment itself only completes once this side
// has also sent its own HANDSHAKE (see ComposeSend); receiving the peer's
// alone only records its channel-id.
func (c *Channel) handleHandshake(hs wire.Handshake, now time.Time) {
	if hs.PeerChannelID == 0 {
		// Explicit close: free state without replying.
		c.scheduleClose(CloseExplicit)
		return
	}
	wasEstablished := c.Established()
	c.PeerChannelID = hs.PeerChannelID
	if !wasEstablished && c.Established() {
		c.log.Info("channel established",
			zap.Uint32("chid", c.ID),
			zap.Uint32("peerChid", c.PeerChannelID))
	}
}

func (c *Channel) handleData(d wire.Data, now time.Time) {
	wasNew := !c.dataIn.IsFilled(d.Addr)
	verdict, err := c.owner.HashTree().OfferData(d.Addr, d.Payload)
	if err != nil {
		c.log.Warn("offer-data error", zap.Error(err), zap.Stringer("bin", d.Addr))
		return
	}

	c.noteHintAnswered(d.Addr)
	c.updateDipAvg(now)

	switch verdict {
	case hashtree.Verified:
		if wasNew {
			_ = c.dataIn.Set(d.Addr)
			c.owner.Picker().NoteVerified(d.Addr)
			c.Stats.BytesDown += uint64(len(d.Payload))
			if m := c.owner.Metrics(); m != nil {
				m.BytesDown.Add(float64(len(d.Payload)))
			}
		}
		var owd uint64
		if d.HasTimestamp && uint64(now.UnixMicro()) > d.Timestamp {
			owd = uint64(now.UnixMicro()) - d.Timestamp
		}
		c.pendingAcks = append(c.pendingAcks, pendingAck{addr: d.Addr, oneWayDelayMicros: owd})
	case hashtree.Rejected:
		c.log.Warn("chunk rejected by hash tree", zap.Stringer("bin", d.Addr))
	case hashtree.Pending:
		// Cached by the hash tree; nothing more to do until enough
		// information arrives to complete the chain.
	}
}

func formatV4(v wire.PexResV4) string {
	return ipv4String(v.IP) + ":" + portString(v.Port)
}

func formatV6(v wire.PexResV6) string {
	return "[" + ipv6String(v.IP) + "]:" + portString(v.Port)
}
