// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package picker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
)

func TestSequentialPicksLowestOffsetFirst(t *testing.T) {
	require := require.New(t)
	have := binmap.New()
	peerHave := binmap.New()
	require.NoError(peerHave.Set(bin.New(3, 0))) // peer has chunks 0..7

	s := NewSequential(have, 8)
	picked := s.Pick(peerHave, 1, 0)
	require.Equal(bin.New(0, 0), picked)

	picked = s.Pick(peerHave, 1, 0)
	require.Equal(bin.New(0, 1), picked)
}

func TestSequentialGrowsToPlanChunks(t *testing.T) {
	require := require.New(t)
	have := binmap.New()
	peerHave := binmap.New()
	require.NoError(peerHave.Set(bin.New(3, 0)))

	s := NewSequential(have, 8)
	picked := s.Pick(peerHave, 4, 0)
	require.Equal(bin.New(2, 0), picked)
	require.Equal(uint64(4), picked.BaseLength())
}

func TestSequentialSkipsWhatWeAlreadyHave(t *testing.T) {
	require := require.New(t)
	have := binmap.New()
	require.NoError(have.Set(bin.New(0, 0)))
	peerHave := binmap.New()
	require.NoError(peerHave.Set(bin.New(3, 0)))

	s := NewSequential(have, 8)
	picked := s.Pick(peerHave, 1, 0)
	require.Equal(bin.New(0, 1), picked)
}

func TestSequentialNoneWhenPeerHasNothingWeNeed(t *testing.T) {
	require := require.New(t)
	have := binmap.New()
	require.NoError(have.Set(bin.New(3, 0)))
	peerHave := binmap.New()
	require.NoError(peerHave.Set(bin.New(3, 0)))

	s := NewSequential(have, 8)
	picked := s.Pick(peerHave, 1, 0)
	require.True(picked.IsNone())
}

func TestSequentialSeekJumpsAnchor(t *testing.T) {
	require := require.New(t)
	have := binmap.New()
	peerHave := binmap.New()
	require.NoError(peerHave.Set(bin.New(3, 0)))

	s := NewSequential(have, 8)
	s.Seek(bin.New(0, 5))
	picked := s.Pick(peerHave, 1, 0)
	require.Equal(bin.New(0, 5), picked)
}

func TestRarestFirstPrefersLeastAvailableChunk(t *testing.T) {
	require := require.New(t)
	have := binmap.New()
	peerHave := binmap.New()
	require.NoError(peerHave.Set(bin.New(2, 0))) // chunks 0..3

	r := NewRarestFirst(have, 4)
	r.NoteHave("peerA", bin.New(0, 0))
	r.NoteHave("peerB", bin.New(0, 0))
	r.NoteHave("peerA", bin.New(0, 1))
	// chunk 0 has rarity 2, chunk 1 has rarity 1, chunks 2/3 have rarity 0.

	picked := r.Pick(peerHave, 1, 0)
	require.True(picked == bin.New(0, 2) || picked == bin.New(0, 3))
}

func TestRarestFirstNoteVerifiedUpdatesHave(t *testing.T) {
	require := require.New(t)
	have := binmap.New()
	peerHave := binmap.New()
	require.NoError(peerHave.Set(bin.New(1, 0)))

	r := NewRarestFirst(have, 2)
	r.NoteVerified(bin.New(0, 0))
	require.True(have.IsFilled(bin.New(0, 0)))

	picked := r.Pick(peerHave, 1, 0)
	require.Equal(bin.New(0, 1), picked)
}

func TestSequentialGrowsToPlanChunksAtNonZeroOffset(t *testing.T) {
	require := require.New(t)
	have := binmap.New()
	peerHave := binmap.New()
	require.NoError(peerHave.Set(bin.New(3, 0))) // peer has chunks 0..7

	s := NewSequential(have, 8)
	s.Seek(bin.New(0, 4))
	picked := s.Pick(peerHave, 4, 0)
	require.Equal(bin.New(2, 1), picked) // chunks 4..7
	require.Equal(uint64(4), picked.BaseOffset())
	require.Equal(uint64(4), picked.BaseLength())
}

var _ Capability = (*Sequential)(nil)
var _ Capability = (*RarestFirst)(nil)
