// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import (
	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/hashtree"
	"github.com/luxfi/swift/wire"
)

// witnessFor builds the INTEGRITY messages that must accompany a DATA send
// for addr: the full peak bundle on the very first DATA this channel ever
// sends, then on every subsequent DATA the uncle (sibling) hash at each
// level from addr up to the peak, in descending layer order, skipping any
// level whose parent our cumulative sent state already tells us the peer
// has verified.
func (c *Channel) witnessFor(tree HashTree, addr bin.Bin) []wire.Message {
	var msgs []wire.Message

	if !c.sentAnyDataYet {
		for _, peak := range tree.Peaks() {
			h, ok := tree.ReadHash(peak)
			if !ok {
				continue
			}
			msgs = append(msgs, wire.Integrity{Addr: peak, Hash: hashToWire(h)})
		}
		c.sentAnyDataYet = true
		c.peerKnowsPeaks = true
	}

	peak := tree.PeakFor(addr)
	if peak.IsNone() {
		return msgs
	}

	var uncles []wire.Message
	cur := addr
	for cur != peak {
		sib := cur.Sibling()
		if !c.ackIn.IsFilled(sib) {
			if h, ok := tree.ReadHash(sib); ok {
				uncles = append(uncles, wire.Integrity{Addr: sib, Hash: hashToWire(h)})
			}
		}
		cur = cur.Parent()
	}
	// Descending layer order: closest-to-peak first.
	for i := len(uncles) - 1; i >= 0; i-- {
		msgs = append(msgs, uncles[i])
	}
	return msgs
}

func hashToWire(h hashtree.Hash) [20]byte {
	var out [20]byte
	copy(out[:], h[:])
	return out
}
