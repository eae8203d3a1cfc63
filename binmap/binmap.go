// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package binmap implements a coalescing set of bin.Bin values: a compact
// binary tree where any run of set (or clear) leaves is represented by its
// smallest covering ancestor, so whole-file or whole-subtree membership
// queries cost O(depth) rather than O(chunk count).
package binmap

import (
	"github.com/luxfi/swift/bin"
)

type status uint8

const (
	statusEmpty status = iota
	statusFilled
	statusMixed
)

// node is one level of the implicit tree. A filled or empty node always has
// nil children (the subtree below it is uniform and need not be
// materialized); a mixed node always has both children materialized.
type node struct {
	status      status
	left, right *node
}

func newNode(s status) *node { return &node{status: s} }

// Binmap is a set of bins with a coalescing invariant: after Set(b), every
// sub-bin of b reads as filled, and the smallest bin actually stored for
// any filled range is exactly its Cover.
type Binmap struct {
	root *node
	top  uint // layer covered by root; root represents bin.New(top, 0)
}

// New returns an empty Binmap.
func New() *Binmap {
	return &Binmap{root: newNode(statusEmpty), top: 0}
}

func (m *Binmap) coverBin() bin.Bin {
	return bin.New(m.top, 0)
}

// growTo doubles the tracked universe until it reaches layer newTop,
// preserving whatever was already set.
func (m *Binmap) growTo(newTop uint) {
	for m.top < newTop {
		old := m.root
		var nr *node
		if old.status == statusEmpty {
			nr = newNode(statusEmpty)
		} else {
			nr = newNode(statusMixed)
			nr.left = old
			nr.right = newNode(statusEmpty)
		}
		m.root = nr
		m.top++
	}
}

// ensureCovers grows the tree, if needed, so that the root bin contains b.
func (m *Binmap) ensureCovers(b bin.Bin) {
	top := m.top
	if b.Layer() > top {
		top = b.Layer()
	}
	for !bin.New(top, 0).Contains(b) {
		top++
	}
	m.growTo(top)
}

// Set marks every chunk covered by b as filled, coalescing with whatever is
// already set. Returns bin.ErrOutOfRange if b is NONE or ALL.
func (m *Binmap) Set(b bin.Bin) error {
	if err := b.Validate(); err != nil {
		return err
	}
	m.ensureCovers(b)
	m.root = setRec(m.root, m.coverBin(), b)
	return nil
}

func setRec(n *node, cover, target bin.Bin) *node {
	if n == nil {
		n = newNode(statusEmpty)
	}
	if cover == target || n.status == statusFilled {
		return newNode(statusFilled)
	}
	if n.status == statusEmpty {
		n.status = statusMixed
		n.left = newNode(statusEmpty)
		n.right = newNode(statusEmpty)
	}
	left, right := cover.Left(), cover.Right()
	if left.Contains(target) {
		n.left = setRec(n.left, left, target)
	} else {
		n.right = setRec(n.right, right, target)
	}
	if n.left.status == statusFilled && n.right.status == statusFilled {
		return newNode(statusFilled)
	}
	return n
}

// Clear marks every chunk covered by b as empty, splitting any larger
// filled ancestor as needed to preserve the parts of it outside b.
func (m *Binmap) Clear(b bin.Bin) error {
	if err := b.Validate(); err != nil {
		return err
	}
	cover := m.coverBin()
	if !cover.Contains(b) {
		// b lies entirely outside the tracked universe: already clear.
		if b.Contains(cover) && m.root.status != statusEmpty {
			// b fully encloses everything we track; clearing it clears all of it.
			m.root = newNode(statusEmpty)
		}
		return nil
	}
	m.root = clearRec(m.root, cover, b)
	return nil
}

func clearRec(n *node, cover, target bin.Bin) *node {
	if n == nil || n.status == statusEmpty {
		return newNode(statusEmpty)
	}
	if cover == target {
		return newNode(statusEmpty)
	}
	if n.status == statusFilled {
		n = &node{status: statusMixed, left: newNode(statusFilled), right: newNode(statusFilled)}
	}
	left, right := cover.Left(), cover.Right()
	if left.Contains(target) {
		n.left = clearRec(n.left, left, target)
	} else {
		n.right = clearRec(n.right, right, target)
	}
	if n.left.status == statusEmpty && n.right.status == statusEmpty {
		return newNode(statusEmpty)
	}
	return n
}

// state reports whether target is wholly filled, wholly empty, or mixed,
// relative to the current tree, including when target is wider than
// anything ever set (in which case only the overlap with the tracked root
// can possibly be filled).
func (m *Binmap) state(target bin.Bin) status {
	cover := m.coverBin()
	switch {
	case target == cover:
		return m.root.status
	case cover.Contains(target):
		return stateRec(m.root, cover, target)
	case target.Contains(cover):
		if m.root.status == statusEmpty {
			return statusEmpty
		}
		return statusMixed
	default:
		return statusEmpty // disjoint from anything ever touched
	}
}

func stateRec(n *node, cover, target bin.Bin) status {
	if cover == target || n.status != statusMixed {
		return n.status
	}
	left, right := cover.Left(), cover.Right()
	if left.Contains(target) {
		return stateRec(n.left, left, target)
	}
	return stateRec(n.right, right, target)
}

// IsFilled reports whether every base chunk covered by b has been set.
func (m *Binmap) IsFilled(b bin.Bin) bool {
	if b.Validate() != nil {
		return false
	}
	return m.state(b) == statusFilled
}

// IsEmpty reports whether no base chunk covered by b has been set.
func (m *Binmap) IsEmpty(b bin.Bin) bool {
	if b.Validate() != nil {
		return false
	}
	return m.state(b) == statusEmpty
}

// Cover returns the largest filled bin that encloses b, which is the
// coalesced bin the set stores for that range, or bin.NONE if b is not
// wholly filled.
func (m *Binmap) Cover(b bin.Bin) bin.Bin {
	if b.Validate() != nil || m.state(b) != statusFilled {
		return bin.NONE
	}
	cur := b
	for cur.Layer() < m.top && m.state(cur.Parent()) == statusFilled {
		cur = cur.Parent()
	}
	return cur
}

// FilledRanges returns the maximal filled bins in the tree, the same bins
// Cover would report for any of their descendants, in ascending offset
// order. This is the compact form a checkpoint persists: re-Set-ing each
// returned bin into a fresh Binmap reproduces an identical set.
func (m *Binmap) FilledRanges() []bin.Bin {
	var out []bin.Bin
	var walk func(n *node, cover bin.Bin)
	walk = func(n *node, cover bin.Bin) {
		switch n.status {
		case statusFilled:
			out = append(out, cover)
		case statusMixed:
			walk(n.left, cover.Left())
			walk(n.right, cover.Right())
		}
	}
	walk(m.root, m.coverBin())
	return out
}

// FromFilledRanges builds a Binmap by Set-ing every bin in ranges, the
// inverse of FilledRanges.
func FromFilledRanges(ranges []bin.Bin) (*Binmap, error) {
	m := New()
	for _, b := range ranges {
		if err := m.Set(b); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// exploreLeftFirst decides, for a given candidate bin and twist mask,
// which child FindComplement should visit first. Different twist values
// (one per peer) make independent pickers diverge in which equally-good
// candidate they settle on first, per the "twist" anti-synchronization
// mechanism.
func exploreLeftFirst(cover bin.Bin, twist uint64) bool {
	return (twist>>cover.Layer())&1 == 0
}

// FindComplement returns the smallest bin that is empty in a and filled in
// b, or bin.NONE if no such bin exists. twist biases the exploration order
// among equally good candidates so independent peers tend to pick
// differently.
func FindComplement(a, b *Binmap, twist uint64) bin.Bin {
	top := a.top
	if b.top > top {
		top = b.top
	}
	return findComplementRec(a, b, bin.New(top, 0), twist)
}

func findComplementRec(a, b *Binmap, cover bin.Bin, twist uint64) bin.Bin {
	if a.state(cover) == statusFilled {
		return bin.NONE
	}
	if b.state(cover) == statusEmpty {
		return bin.NONE
	}
	if cover.IsBase() {
		if a.state(cover) == statusEmpty && b.state(cover) == statusFilled {
			return cover
		}
		return bin.NONE
	}
	left, right := cover.Left(), cover.Right()
	first, second := left, right
	if !exploreLeftFirst(cover, twist) {
		first, second = right, left
	}
	if found := findComplementRec(a, b, first, twist); !found.IsNone() {
		return found
	}
	return findComplementRec(a, b, second, twist)
}
