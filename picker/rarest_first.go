// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package picker

import (
	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
)

// RarestFirst picks whichever missing-but-available base chunk the fewest
// known peers have, ties broken by the caller-supplied twist and then by
// offset. It suits on-demand/VOD swarms where any chunk may be needed next
// and spreading load across rarely-held chunks keeps a swarm healthy.
type RarestFirst struct {
	base
	peerHaves map[string]*binmap.Binmap
	rarity    map[uint64]int
}

// NewRarestFirst builds a RarestFirst picker over have with a swarm of total
// base chunks (0 if unbounded).
func NewRarestFirst(have *binmap.Binmap, total uint64) *RarestFirst {
	return &RarestFirst{
		base:      newBase(have, total),
		peerHaves: make(map[string]*binmap.Binmap),
		rarity:    make(map[uint64]int),
	}
}

// NoteHave records peer's advertisement of b, incrementing the rarity
// count of every base chunk under b the peer hadn't already advertised.
func (r *RarestFirst) NoteHave(peer string, b bin.Bin) {
	known, ok := r.peerHaves[peer]
	if !ok {
		known = binmap.New()
		r.peerHaves[peer] = known
	}
	lo, hi := b.BaseOffset(), b.BaseOffset()+b.BaseLength()
	for off := lo; off < hi; off++ {
		chunk := bin.New(0, off)
		if known.IsFilled(chunk) {
			continue
		}
		r.rarity[off]++
	}
	_ = known.Set(b)
}

// Pick finds, among the base chunks we lack that peerHave offers, the one
// with the lowest known rarity count (fewest peers holding it), then grows
// it to the widest aligned bin of at most planChunks chunks that remains
// entirely wanted. twist perturbs the scan order among equally-rare
// candidates so that two pickers racing the same swarm don't converge on
// the same chunk.
func (r *RarestFirst) Pick(peerHave *binmap.Binmap, planChunks uint64, twist uint64) bin.Bin {
	if planChunks == 0 {
		return bin.NONE
	}
	limit := r.total
	if limit == 0 {
		limit = r.anchor + 1<<20
	}

	var bestOff uint64
	bestRarity := -1
	bestTie := uint64(0)
	found := false
	for off := uint64(0); off < limit; off++ {
		chunk := bin.New(0, off)
		if !r.have.IsEmpty(chunk) || !peerHave.IsFilled(chunk) {
			continue
		}
		rarity := r.rarity[off]
		tie := off ^ twist
		if !found || rarity < bestRarity || (rarity == bestRarity && tie < bestTie) {
			bestOff, bestRarity, bestTie, found = off, rarity, tie, true
		}
	}
	if !found {
		return bin.NONE
	}
	picked := expand(r.have, peerHave, bin.New(0, bestOff), planChunks)
	r.anchor = picked.BaseOffset() + picked.BaseLength()
	return picked
}
