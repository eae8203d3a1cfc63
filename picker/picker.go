// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package picker chooses which bin(s) to request from a given peer, given
// that peer's advertised availability and our own have-set. Two variants
// are provided: Sequential (bulk downloads, front-to-back) and RarestFirst
// (on-demand / random-access, availability-weighted), matching and the
// capability-set design note in: {pick, seek, note_have, note_verified}.
package picker

import (
	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
)

// Capability is the common interface every picker variant implements, so a
// transfer can hold one without knowing its concrete type ( "piece
// picker polymorphism").
type Capability interface {
	// Pick returns the largest aligned bin of at most planChunks base
	// chunks that peerHave has and we do not, or bin.NONE if there is no
	// such bin.
	Pick(peerHave *binmap.Binmap, planChunks uint64, twist uint64) bin.Bin

	// Seek resets the picker's notion of "where to look next" to b, for
	// random access (e.g. a player seeking within a VOD swarm).
	Seek(b bin.Bin)

	// NoteHave records that a peer has advertised b (from a HAVE message).
	NoteHave(peer string, b bin.Bin)

	// NoteVerified records that we have now verified b ourselves.
	NoteVerified(b bin.Bin)
}

// base holds the state common to both picker variants: our own have-set
// and the total number of base chunks in the swarm (0 if not yet known,
// e.g. a live swarm with no fixed size).
type base struct {
	have   *binmap.Binmap
	anchor uint64
	total  uint64
}

func newBase(have *binmap.Binmap, total uint64) base {
	return base{have: have, total: total}
}

func (b *base) Seek(target bin.Bin) {
	b.anchor = target.BaseOffset()
}

func (b *base) NoteVerified(target bin.Bin) {
	_ = b.have.Set(target)
}

// expand grows a known-wanted base bin into the largest aligned ancestor
// that is still entirely missing in have and entirely present in
// peerHave, capped at planChunks base chunks.
func expand(have, peerHave *binmap.Binmap, start bin.Bin, planChunks uint64) bin.Bin {
	best := start
	layer := uint(0)
	for (uint64(1) << (layer + 1)) <= planChunks {
		candidateLayer := layer + 1
		width := uint64(1) << candidateLayer
		alignedOffset := (start.BaseOffset() / width) * width
		if alignedOffset != start.BaseOffset() {
			break // start isn't the left edge of this wider aligned bin
		}
		candidate := bin.New(candidateLayer, alignedOffset/width)
		if have.IsEmpty(candidate) && peerHave.IsFilled(candidate) {
			best = candidate
			layer = candidateLayer
			continue
		}
		break
	}
	return best
}
