// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package picker

import (
	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
)

// Sequential picks the lowest-offset missing-but-available bin at or after
// its anchor, front-to-back. It is the right default for a bulk transfer
// where every chunk will eventually be needed in order.
type Sequential struct {
	base
}

// NewSequential builds a Sequential picker over have (our own verified set)
// with a swarm of total base chunks (0 if the swarm has no known bound).
func NewSequential(have *binmap.Binmap, total uint64) *Sequential {
	return &Sequential{base: newBase(have, total)}
}

func (s *Sequential) NoteHave(string, bin.Bin) {
	// Sequential order doesn't depend on peer availability accounting.
}

// Pick scans forward from the anchor for the first base chunk we lack that
// peerHave offers, then grows it to the widest aligned bin of at most
// planChunks chunks that is still entirely wanted.
func (s *Sequential) Pick(peerHave *binmap.Binmap, planChunks uint64, _ uint64) bin.Bin {
	if planChunks == 0 {
		return bin.NONE
	}
	limit := s.total
	if limit == 0 {
		// unbounded (live) swarm: cap the scan at 2^20 chunks past the anchor.
		limit = s.anchor + 1<<20
	}
	for off := s.anchor; off < limit; off++ {
		b := bin.New(0, off)
		if s.have.IsEmpty(b) && peerHave.IsFilled(b) {
			picked := expand(s.have, peerHave, b, planChunks)
			s.anchor = picked.BaseOffset() + picked.BaseLength()
			return picked
		}
	}
	return bin.NONE
}
