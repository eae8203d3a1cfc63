// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bin implements the bin numbering scheme used throughout the
// transport: a bin is an integer naming a node in a complete binary tree
// over fixed-size chunks of swarm content. Every contiguous,
// power-of-two-aligned chunk range has exactly one bin number, so a single
// integer can name anything from one chunk to the whole file.
package bin

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrOutOfRange is returned by operations given a bin that cannot be a valid
// tree node (NONE, or a layer too deep to be representable).
var ErrOutOfRange = errors.New("bin: out of range")

// Bin identifies a node in the complete binary tree. Leaf ("base") bins are
// the even integers 0, 2, 4, ... and address a single chunk; odd bins cover
// progressively wider, aligned ranges the deeper their layer.
//
// The numbering follows bin = 2^(layer+1)*offset + 2^layer - 1, the scheme
// shared by the PPSPP bin-based addressing used across swarm transports: it
// lets a single uint64 name both the layer and the offset of a node without
// a separate width field.
type Bin uint64

const (
	// NONE is the sentinel "no such bin" value, e.g. the result of a picker
	// or binmap operation that found nothing.
	NONE Bin = ^Bin(0)

	// ALL names the entire tree regardless of its eventual height; it only
	// appears as a wildcard in handshake options and hash offers (the
	// "hash ALL" legacy peak-hash bundle) and is never a real tree node.
	ALL Bin = NONE - 1
)

// IsNone reports whether b is the NONE sentinel.
func (b Bin) IsNone() bool { return b == NONE }

// IsAll reports whether b is the ALL wildcard.
func (b Bin) IsAll() bool { return b == ALL }

// valid reports whether b can be treated as an ordinary tree node, i.e. is
// neither NONE nor ALL.
func (b Bin) valid() bool { return b != NONE && b != ALL }

// New constructs the bin at the given layer and offset. layer 0 is the base
// (chunk) layer.
func New(layer uint, offset uint64) Bin {
	width := uint64(1) << layer
	return Bin(width*2*offset + width - 1)
}

// Layer returns the layer of b: 0 for a base (chunk) bin, increasing by one
// for every doubling of the covered range. NONE and ALL are not ordinary
// nodes and are rejected explicitly by Validate; Layer stays total and
// simply returns 0 for either rather than panicking.
func (b Bin) Layer() uint {
	if !b.valid() {
		return 0
	}
	return uint(bits.TrailingZeros64(uint64(b) + 1))
}

// Validate returns ErrOutOfRange if b is not usable as an ordinary tree
// node (i.e. is NONE or ALL).
func (b Bin) Validate() error {
	if !b.valid() {
		return fmt.Errorf("%w: %d", ErrOutOfRange, b)
	}
	return nil
}

// offsetAtLayer returns the node index at b's own layer (distinct from
// BaseOffset, which is expressed in base/chunk units).
func (b Bin) offsetAtLayer() uint64 {
	layer := b.Layer()
	m := (uint64(b) + 1) >> layer // always odd
	return m >> 1
}

// BaseOffset returns the index of the left-most base (chunk) bin covered by
// b. For a base bin this is simply its own chunk index.
func (b Bin) BaseOffset() uint64 {
	return b.offsetAtLayer() << b.Layer()
}

// BaseLength returns the number of base (chunk) bins covered by b.
func (b Bin) BaseLength() uint64 {
	return uint64(1) << b.Layer()
}

// IsBase reports whether b is a leaf (layer 0) bin.
func (b Bin) IsBase() bool {
	return b.valid() && uint64(b)&1 == 0
}

// BaseLeft returns the left-most base bin under b (itself, if b is already
// a base bin).
func (b Bin) BaseLeft() Bin {
	return New(0, b.BaseOffset())
}

// BaseRight returns the right-most base bin under b.
func (b Bin) BaseRight() Bin {
	return New(0, b.BaseOffset()+b.BaseLength()-1)
}

// Parent returns the bin one layer up that contains b.
func (b Bin) Parent() Bin {
	if !b.valid() {
		return NONE
	}
	layer := b.Layer()
	offset := b.offsetAtLayer()
	return New(layer+1, offset>>1)
}

// Sibling returns the other child of b's parent.
func (b Bin) Sibling() Bin {
	if !b.valid() {
		return NONE
	}
	layer := b.Layer()
	offset := b.offsetAtLayer()
	return New(layer, offset^1)
}

// Left returns the left child of b. NONE if b is already a base bin.
func (b Bin) Left() Bin {
	if !b.valid() || b.Layer() == 0 {
		return NONE
	}
	layer := b.Layer()
	offset := b.offsetAtLayer()
	return New(layer-1, offset*2)
}

// Right returns the right child of b. NONE if b is already a base bin.
func (b Bin) Right() Bin {
	if !b.valid() || b.Layer() == 0 {
		return NONE
	}
	layer := b.Layer()
	offset := b.offsetAtLayer()
	return New(layer-1, offset*2+1)
}

// IsLeft reports whether b is the left child of its parent.
func (b Bin) IsLeft() bool {
	return b.valid() && b.offsetAtLayer()&1 == 0
}

// Contains reports whether b's covered chunk range fully encloses other's.
func (b Bin) Contains(other Bin) bool {
	if !b.valid() || !other.valid() {
		return false
	}
	bLo, bHi := b.BaseOffset(), b.BaseOffset()+b.BaseLength()
	oLo, oHi := other.BaseOffset(), other.BaseOffset()+other.BaseLength()
	return bLo <= oLo && oHi <= bHi
}

// Twist XORs mask into the offset bits of b, leaving b's layer unchanged.
// Two peers applying different, fixed per-peer masks to the same candidate
// bin during picking will, with high probability, diverge in which
// sub-range they explore first: the anti-synchronization mechanism known
// as "twist".
func (b Bin) Twist(mask uint64) Bin {
	if !b.valid() {
		return b
	}
	return New(b.Layer(), b.offsetAtLayer()^mask)
}

// String renders b as "layer:offset" for logs, or NONE/ALL.
func (b Bin) String() string {
	switch b {
	case NONE:
		return "NONE"
	case ALL:
		return "ALL"
	default:
		return fmt.Sprintf("%d:%d", b.Layer(), b.offsetAtLayer())
	}
}
