// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import (
	"encoding/hex"
	"time"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/wire"
)

// ComposeSend builds the next outgoing datagram for this channel. It
// reports false only for a closed channel whose closing HANDSHAKE has
// already gone out; an otherwise idle channel sends a keep-alive HAVE.
// An initiating HANDSHAKE (no peer channel-id yet) carries OptSwarmID
// when the owner's SwarmID is hex. extra carries
// transfer-level messages this channel doesn't originate itself (PEX_RES
// answers to a pending PEX_REQ, reverse-PEX HAVE announcements) so the
// owning transfer can inject them without the channel reaching into a
// peer table it doesn't own.
func (c *Channel) ComposeSend(scheme wire.Scheme, now time.Time, twist uint64, extra []wire.Message) (wire.Datagram, bool) {
	if c.state == stateClose {
		if c.sentCloseHandshake {
			return wire.Datagram{}, false
		}
		c.sentCloseHandshake = true
		return wire.Datagram{ChannelID: c.PeerChannelID, Messages: []wire.Message{
			wire.Handshake{PeerChannelID: 0},
		}}, true
	}

	var msgs []wire.Message

	if !c.localHandshakeSent {
		hs := wire.Handshake{PeerChannelID: c.ID}
		if c.PeerChannelID == 0 {
			if id, err := hex.DecodeString(c.owner.SwarmID()); err == nil {
				hs.Options = []wire.Option{{Key: wire.OptSwarmID, Value: id}}
			}
		}
		msgs = append(msgs, hs)
		c.localHandshakeSent = true
	}

	for _, a := range c.pendingAcks {
		msgs = append(msgs, wire.Ack{Addr: a.addr, OneWayDelayMicros: a.oneWayDelayMicros})
	}
	c.pendingAcks = nil

	if c.canRequestPex(now) {
		msgs = append(msgs, wire.PexReq{})
		c.notePexRequested(now)
	}
	msgs = append(msgs, extra...)

	tree := c.owner.HashTree()

	var dataAddr bin.Bin
	fromRetransmit := false
	if addr, ok := c.nextRetransmit(); ok {
		dataAddr = addr
		fromRetransmit = true
	} else if addr, ok := c.nextHintIn(tree.HaveFilled); ok {
		dataAddr = addr
	} else {
		dataAddr = bin.NONE
	}

	if picked, ok := c.planOutgoingHint(c.ackIn, twist); ok {
		msgs = append(msgs, wire.Request{Addr: picked})
	}

	cfg := c.owner.Config()
	nonDataMsgs := msgs
	if encoded, err := wire.Encode(scheme, wire.Datagram{ChannelID: c.PeerChannelID, Messages: nonDataMsgs}); err == nil {
		if uint32(len(encoded)) > cfg.MaxNonDataDgramSize && !dataAddr.IsNone() {
			// Flush the accumulated non-DATA content now; dataAddr goes
			// back to the front of its queue, so its DATA goes out on the
			// very next send.
			if fromRetransmit {
				c.dataOutTmo = append([]DataOutEntry{{Addr: dataAddr, SentAt: now}}, c.dataOutTmo...)
			} else {
				c.hintIn = append([]bin.Bin{dataAddr}, c.hintIn...)
				c.hintInSize += dataAddr.BaseLength()
			}
			dg := wire.Datagram{ChannelID: c.PeerChannelID, Messages: msgs}
			c.lastSend = now
			return dg, true
		}
	}

	if !dataAddr.IsNone() {
		payload, err := c.owner.Storage().ReadChunk(dataAddr)
		if err == nil {
			msgs = append(msgs, c.witnessFor(tree, dataAddr)...)
			msgs = append(msgs, wire.Data{
				Addr:         dataAddr,
				HasTimestamp: true,
				Timestamp:    uint64(now.UnixMicro()),
				Payload:      payload,
			})
			c.recordSent(dataAddr, now)
			c.noteHintAnswered(dataAddr)
			c.Stats.BytesUp += uint64(len(payload))
			if m := c.owner.Metrics(); m != nil {
				m.BytesUp.Add(float64(len(payload)))
				m.DatagramsUp.Inc()
			}
		}
	}

	if len(msgs) == 0 {
		c.enterKeepAlive()
		msgs = append(msgs, wire.Have{Addr: firstOwnedBin(tree)})
	}

	c.lastSend = now
	return wire.Datagram{ChannelID: c.PeerChannelID, Messages: msgs}, true
}

// firstOwnedBin returns a representative bin to advertise in a keep-alive
// HAVE, covering the whole known tree when possible.
func firstOwnedBin(tree HashTree) bin.Bin {
	peaks := tree.Peaks()
	if len(peaks) > 0 {
		return peaks[0]
	}
	return bin.New(0, 0)
}
