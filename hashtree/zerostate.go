// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashtree

import (
	"github.com/luxfi/swift/bin"
)

// SidecarReader reads persisted hash-tree state from a `.mhash`/`.mbinmap`
// pair without reconstructing an in-memory tree, per zero-state
// variant: a seeder serving from disk at O(channels), not O(chunks), memory.
type SidecarReader interface {
	// ReadHash returns the interior hash stored for b, or ok=false if b is
	// not a peak or otherwise not resident in the sidecar.
	ReadHash(b bin.Bin) (h Hash, ok bool)
	// ReadChunk returns the verified chunk bytes at b's base offset.
	ReadChunk(b bin.Bin) ([]byte, error)
	NumChunks() uint64
	Root() Hash
}

// ZeroState answers any request by falling through to disk; it refuses
// every OfferHash/OfferData (it only ever seeds, never leeches) and never
// materializes a Binmap or node map for the swarm it serves.
type ZeroState struct {
	sidecar     SidecarReader
	chunkSize   uint32
	contentSize uint64
}

// NewZeroState wraps a SidecarReader as a zero-state hash tree. contentSize
// is the swarm's exact byte length; 0 falls back to numChunks*chunkSize
// (rounding the final chunk up), which should only happen for a swarm whose
// size was never recorded.
func NewZeroState(sidecar SidecarReader, chunkSize uint32, contentSize uint64) *ZeroState {
	return &ZeroState{sidecar: sidecar, chunkSize: chunkSize, contentSize: contentSize}
}

func (z *ZeroState) Root() Hash          { return z.sidecar.Root() }
func (z *ZeroState) NumChunks() uint64   { return z.sidecar.NumChunks() }
func (z *ZeroState) ContentSize() uint64 {
	if z.contentSize != 0 {
		return z.contentSize
	}
	return z.sidecar.NumChunks() * uint64(z.chunkSize)
}

// OfferHash always refuses: a zero-state tree never accepts data, it only serves it.
func (z *ZeroState) OfferHash(bin.Bin, Hash) error {
	return ErrBadHashTreeShape
}

// OfferData always refuses, for the same reason.
func (z *ZeroState) OfferData(bin.Bin, []byte) (Verdict, error) {
	return Rejected, ErrBadHashTreeShape
}

// ReadHash reads an interior or peak hash directly from the sidecar.
func (z *ZeroState) ReadHash(b bin.Bin) (Hash, bool) {
	return z.sidecar.ReadHash(b)
}

// Peaks returns the single peak spanning the whole (fully verified) swarm,
// since a zero-state tree never materializes the handshake's legacy
// peak-hash bundle the way a growing in-memory tree does.
func (z *ZeroState) Peaks() []bin.Bin {
	layer := uint(0)
	n := z.sidecar.NumChunks()
	for uint64(1)<<layer < n {
		layer++
	}
	return []bin.Bin{bin.New(layer, 0)}
}

// ReadChunk reads verified chunk bytes directly from the content file via
// the sidecar's collaborator.
func (z *ZeroState) ReadChunk(b bin.Bin) ([]byte, error) {
	return z.sidecar.ReadChunk(b)
}

// IsComplete is always true: a zero-state tree only ever serves a complete swarm.
func (z *ZeroState) IsComplete() bool { return true }

// HaveFilled is always true: a zero-state tree only ever serves content it
// already fully has.
func (z *ZeroState) HaveFilled(bin.Bin) bool { return true }

// SeqComplete reports the whole content length from offset, since a
// zero-state swarm is by definition fully verified already.
func (z *ZeroState) SeqComplete(offset uint64) uint64 {
	total := z.ContentSize()
	if offset >= total {
		return 0
	}
	return total - offset
}
