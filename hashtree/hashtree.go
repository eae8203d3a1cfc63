// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package hashtree implements the Merkle hash tree that verifies chunk
// data against a swarm's root hash: offered hashes and chunk data are
// accepted speculatively and become verified only once a chain of
// sibling hashes combines up to the root or to a peak already trusted
// from the handshake's "hash ALL" bundle.
package hashtree

import (
	"crypto/sha1"
	"errors"
	"fmt"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
)

// ErrBadHashTreeShape is returned when a bin cannot belong to a tree of the
// tree's known size (e.g. a base bin at or past numChunks).
var ErrBadHashTreeShape = errors.New("hashtree: bin inconsistent with tree shape")

// ErrPeaksDoNotCombineToRoot is returned by SetPeaks when the given peak
// hashes do not combine to the expected root.
var ErrPeaksDoNotCombineToRoot = errors.New("hashtree: peak hashes do not combine to root")

// Hash is a content-integrity digest. The default scheme is SHA-1, 20 bytes;
// other schemes negotiated in the handshake are out of scope here.
type Hash [20]byte

// Combine returns the parent hash of a node whose children hashed to left
// and right.
func Combine(left, right Hash) Hash {
	var buf [40]byte
	copy(buf[:20], left[:])
	copy(buf[20:], right[:])
	return Hash(sha1.Sum(buf[:]))
}

// Leaf returns the hash of a single chunk's bytes.
func Leaf(data []byte) Hash {
	return Hash(sha1.Sum(data))
}

// Verdict is the outcome of OfferData.
type Verdict int

const (
	// Rejected means a hash mismatch was found along the verification
	// chain; the data and speculative branch were discarded.
	Rejected Verdict = iota
	// Verified means the chunk's leaf hash combines up to a verified
	// ancestor (peak or root) and the chunk is now durable in ack-out.
	Verified
	// Pending means no mismatch was found, but no verified ancestor could
	// be reached yet (missing peak or uncle hashes); the data is held
	// speculatively and re-checked on the next OfferHash/OfferData that
	// fills the gap.
	Pending
)

// Storage is the external collaborator that durably stores chunk bytes;
// the storage layer itself is out of scope here, this is the minimal seam
// the hash tree needs to persist verified data.
type Storage interface {
	WriteChunk(baseOffset uint64, chunkSize uint32, data []byte) error
}

type node struct {
	hash     Hash
	verified bool
}

// Tree is the in-memory Merkle hash tree for one swarm.
type Tree struct {
	root        Hash
	chunkSize   uint32
	numChunks   uint64
	contentSize uint64

	nodes   map[bin.Bin]node
	peaks   []bin.Bin
	ackOut  *binmap.Binmap
	storage Storage

	// pending holds chunk bytes offered before their verification chain
	// could be completed; finalized once a later OfferHash/OfferData
	// closes the gap (e.g. a sibling chunk's data supplies the missing
	// uncle hash).
	pending map[bin.Bin][]byte
}

// New creates a Tree for a swarm of the given root hash, chunk size and
// chunk count. contentSize is the swarm's exact byte length (0 if not yet
// known, e.g. a growing/live swarm); when nonzero it may be shorter than
// numChunks*chunkSize, in which case the final chunk is that much shorter
// than the rest. The root is trusted: it is the swarm identifier itself.
func New(root Hash, chunkSize uint32, numChunks uint64, contentSize uint64, storage Storage) *Tree {
	return &Tree{
		root:        root,
		chunkSize:   chunkSize,
		numChunks:   numChunks,
		contentSize: contentSize,
		nodes:       make(map[bin.Bin]node),
		ackOut:      binmap.New(),
		storage:     storage,
		pending:     make(map[bin.Bin][]byte),
	}
}

// Root returns the swarm's root hash.
func (t *Tree) Root() Hash { return t.root }

// NumChunks returns the number of base chunks in the swarm.
func (t *Tree) NumChunks() uint64 { return t.numChunks }

// ContentSize returns the swarm's exact byte length, or 0 if not yet known.
func (t *Tree) ContentSize() uint64 { return t.contentSize }

// AckOut returns the binmap of chunks verified and durably written.
func (t *Tree) AckOut() *binmap.Binmap { return t.ackOut }

// Peaks returns the bins installed by SetPeaks, for a channel's first-DATA
// witness bundle.
func (t *Tree) Peaks() []bin.Bin {
	out := make([]bin.Bin, len(t.peaks))
	copy(out, t.peaks)
	return out
}

// HaveFilled reports whether b is verified and written to storage.
func (t *Tree) HaveFilled(b bin.Bin) bool {
	return t.ackOut.IsFilled(b)
}

// ReadHash returns the interior or peak hash recorded for b, if any, for
// uncle-chain lookups on the send path.
func (t *Tree) ReadHash(b bin.Bin) (Hash, bool) {
	n, ok := t.nodes[b]
	if !ok {
		return Hash{}, false
	}
	return n.hash, true
}

// validBase reports whether b is a base bin within the tree's known size.
func (t *Tree) validBase(b bin.Bin) bool {
	return b.IsBase() && b.BaseOffset() < t.numChunks
}

// siblingExists reports whether b's sibling overlaps real (non-padding)
// content; bins entirely beyond numChunks don't exist, and a node whose
// only real child is its left is promoted as-is rather than combined with
// a padding hash, matching a non-power-of-two leaf count.
func (t *Tree) siblingExists(b bin.Bin) bool {
	return b.Sibling().BaseOffset() < t.numChunks
}

// SetPeaks installs the handshake's "hash ALL" peak-hash bundle. The peaks
// must combine (by repeated pairwise Combine of adjacent peaks, right to
// left, skipping non-existent siblings exactly as the tree itself does) to
// the tree's root, or the call fails and no peaks are installed.
func (t *Tree) SetPeaks(peaks map[bin.Bin]Hash) error {
	for b, h := range peaks {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrBadHashTreeShape, err)
		}
		t.nodes[b] = node{hash: h, verified: true}
	}
	t.peaks = sortedKeys(peaks)

	if !t.verifyPeaksCombineToRoot() {
		for b := range peaks {
			delete(t.nodes, b)
		}
		t.peaks = nil
		return ErrPeaksDoNotCombineToRoot
	}
	return nil
}

func sortedKeys(m map[bin.Bin]Hash) []bin.Bin {
	out := make([]bin.Bin, 0, len(m))
	for b := range m {
		out = append(out, b)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// verifyPeaksCombineToRoot walks each peak upward, combining with its
// sibling peak (if the sibling is itself a known peak at the same point in
// the walk) until a single hash remains, and checks it against the root.
func (t *Tree) verifyPeaksCombineToRoot() bool {
	if len(t.peaks) == 0 {
		return false
	}
	if len(t.peaks) == 1 {
		return t.nodes[t.peaks[0]].hash == t.root
	}
	cur := make([]bin.Bin, len(t.peaks))
	copy(cur, t.peaks)
	for len(cur) > 1 {
		next := make([]bin.Bin, 0, len(cur))
		i := 0
		for i < len(cur) {
			if i+1 < len(cur) && cur[i].Sibling() == cur[i+1] && cur[i].IsLeft() {
				parent := cur[i].Parent()
				combined := Combine(t.nodes[cur[i]].hash, t.nodes[cur[i+1]].hash)
				t.nodes[parent] = node{hash: combined, verified: true}
				next = append(next, parent)
				i += 2
			} else {
				parent := cur[i].Parent()
				t.nodes[parent] = node{hash: t.nodes[cur[i]].hash, verified: true}
				next = append(next, parent)
				i++
			}
		}
		cur = next
	}
	return t.nodes[cur[0]].hash == t.root
}

// PeakFor returns the peak whose subtree contains b, or bin.NONE.
func (t *Tree) PeakFor(b bin.Bin) bin.Bin {
	for _, p := range t.peaks {
		if p.Contains(b) {
			return p
		}
	}
	return bin.NONE
}

// OfferHash accepts a speculative (bin, hash) pair. It becomes part of the
// verified tree once a chain to the root or a verified peak exists.
func (t *Tree) OfferHash(b bin.Bin, h Hash) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHashTreeShape, err)
	}
	if b.BaseOffset() >= t.numChunks {
		return fmt.Errorf("%w: bin %s beyond tree size", ErrBadHashTreeShape, b)
	}
	if existing, ok := t.nodes[b]; ok && existing.verified {
		return nil // already settled; redundant offer is a no-op
	}
	t.nodes[b] = node{hash: h}
	t.tryVerifyChain(b)
	return nil
}

// OfferData accepts chunk bytes for a base bin, verifies them against the
// tree, and on success durably stores them via Storage and marks the chunk
// filled in ack-out.
func (t *Tree) OfferData(b bin.Bin, data []byte) (Verdict, error) {
	if !t.validBase(b) {
		return Rejected, fmt.Errorf("%w: %s is not a base bin in range", ErrBadHashTreeShape, b)
	}
	if t.ackOut.IsFilled(b) {
		return Verified, nil // duplicate: already have it
	}
	leaf := Leaf(data)
	if existing, ok := t.nodes[b]; ok && existing.verified && existing.hash != leaf {
		return Rejected, nil
	}
	t.nodes[b] = node{hash: leaf}
	t.tryVerifyChain(b)

	n, ok := t.nodes[b]
	if !ok {
		return Rejected, nil // chain found a mismatch and discarded b
	}
	if !n.verified {
		t.pending[b] = append([]byte(nil), data...)
		return Pending, nil
	}
	if err := t.finalizeChunk(b, data); err != nil {
		return Rejected, err
	}
	return Verified, nil
}

// finalizeChunk durably stores a now-verified chunk's bytes and marks it
// filled in ack-out.
func (t *Tree) finalizeChunk(b bin.Bin, data []byte) error {
	delete(t.pending, b)
	if err := t.ackOut.Set(b); err != nil {
		return err
	}
	if t.storage != nil {
		return t.storage.WriteChunk(b.BaseOffset(), t.chunkSize, data)
	}
	return nil
}

// tryVerifyChain attempts to walk b upward, combining with known siblings,
// until it reaches an already-verified ancestor. On success, every
// materialized node in the now-proven subtree, not just the path from b,
// is marked verified and any cached pending chunk data under it is
// finalized, since a combined hash one level up was built directly from
// its two children's hashes and so proves them as a side effect. Returns
// false if the chain could not be completed (missing hash) or a mismatch
// was found (in which case the offending speculative node b is discarded).
func (t *Tree) tryVerifyChain(b bin.Bin) bool {
	cur := b
	for {
		if n, ok := t.nodes[cur]; ok && n.verified {
			t.propagateVerified(cur)
			return true
		}
		if cur.Layer() >= 63 {
			return false
		}
		if !t.siblingExists(cur) {
			// No real sibling: this node's hash is promoted unchanged.
			parent := cur.Parent()
			promoted := t.nodes[cur].hash
			if existing, ok := t.nodes[parent]; ok && existing.verified {
				if existing.hash != promoted {
					delete(t.nodes, b)
					return false
				}
				t.propagateVerified(parent)
				return true
			}
			t.nodes[parent] = node{hash: promoted}
			cur = parent
			continue
		}
		sib := cur.Sibling()
		sibNode, ok := t.nodes[sib]
		if !ok {
			return false // missing uncle hash: pending
		}
		parent := cur.Parent()
		var combined Hash
		if cur.IsLeft() {
			combined = Combine(t.nodes[cur].hash, sibNode.hash)
		} else {
			combined = Combine(sibNode.hash, t.nodes[cur].hash)
		}
		if existing, ok := t.nodes[parent]; ok && existing.verified {
			if existing.hash != combined {
				delete(t.nodes, b)
				return false
			}
			t.propagateVerified(parent)
			return true
		}
		t.nodes[parent] = node{hash: combined}
		cur = parent
	}
}

// propagateVerified marks root (already known verified or about to be)
// verified, then recurses into any materialized children, verifying and
// finalizing them in turn. A child's hash was used to compute its parent's
// hash, so once the parent is proven every materialized descendant is
// proven too without re-checking combine arithmetic.
func (t *Tree) propagateVerified(root bin.Bin) {
	n, ok := t.nodes[root]
	if !ok {
		return
	}
	if !n.verified {
		n.verified = true
		t.nodes[root] = n
	}
	if data, ok := t.pending[root]; ok {
		t.finalizeChunk(root, data)
	}
	if root.IsBase() {
		return
	}
	if _, ok := t.nodes[root.Left()]; ok {
		t.propagateVerified(root.Left())
	}
	if _, ok := t.nodes[root.Right()]; ok {
		t.propagateVerified(root.Right())
	}
}


// SeqComplete returns the length, in bytes, of the verified prefix of the
// content starting at offset.
func (t *Tree) SeqComplete(offset uint64) uint64 {
	startChunk := offset / uint64(t.chunkSize)
	var n uint64
	for i := startChunk; i < t.numChunks; i++ {
		b := bin.New(0, i)
		if !t.ackOut.IsFilled(b) {
			break
		}
		if i == t.numChunks-1 {
			n += t.lastChunkSize()
		} else {
			n += uint64(t.chunkSize)
		}
	}
	if n == 0 {
		return 0
	}
	return n - (offset - startChunk*uint64(t.chunkSize))
}

// lastChunkSize returns the size of the final, possibly short, chunk. Falls
// back to a full chunk when contentSize is unknown (a growing/live swarm).
func (t *Tree) lastChunkSize() uint64 {
	if t.contentSize == 0 || t.numChunks == 0 {
		return uint64(t.chunkSize)
	}
	return t.contentSize - uint64(t.chunkSize)*(t.numChunks-1)
}

// IsComplete reports whether every chunk of the swarm is verified: true
// iff every base chunk the tree knows about is filled in ack-out.
func (t *Tree) IsComplete() bool {
	if t.numChunks == 0 {
		return false
	}
	for i := uint64(0); i < t.numChunks; i++ {
		if !t.ackOut.IsFilled(bin.New(0, i)) {
			return false
		}
	}
	return true
}
