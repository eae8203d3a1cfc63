// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package hashtree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/swift/bin"
)

type memStorage struct {
	chunks map[uint64][]byte
}

func newMemStorage() *memStorage { return &memStorage{chunks: make(map[uint64][]byte)} }

func (m *memStorage) WriteChunk(baseOffset uint64, chunkSize uint32, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	m.chunks[baseOffset] = buf
	return nil
}

// buildFourChunkTree builds a 4-chunk (power-of-two) tree and returns the
// tree, its root, and the chunk data, for tests that need real hashes.
func buildFourChunkTree(t *testing.T) (*Tree, []byte, *memStorage) {
	t.Helper()
	chunks := [][]byte{
		[]byte("chunk-zero-abcdefghijklmnop....."),
		[]byte("chunk-one-qrstuvwxyz01234567...."),
		[]byte("chunk-two-ABCDEFGHIJKLMNOPQR...."),
		[]byte("chunk-three-STUVWXYZ012345678.."),
	}
	leaves := make([]Hash, 4)
	for i, c := range chunks {
		leaves[i] = Leaf(c)
	}
	n01 := Combine(leaves[0], leaves[1])
	n23 := Combine(leaves[2], leaves[3])
	root := Combine(n01, n23)

	storage := newMemStorage()
	tr := New(root, 32, 4, 128, storage)
	require.NoError(t, tr.SetPeaks(map[bin.Bin]Hash{bin.New(2, 0): root}))

	var content []byte
	for _, c := range chunks {
		content = append(content, c...)
	}
	return tr, content, storage
}

func TestOfferDataVerifiesAgainstPeak(t *testing.T) {
	require := require.New(t)
	tr, content, storage := buildFourChunkTree(t)

	// With only the root peak known, each chunk waits for its sibling's
	// hash; chunk 3 completes the tree and verifies all four at once.
	for i := 0; i < 4; i++ {
		chunk := content[i*32 : (i+1)*32]
		v, err := tr.OfferData(bin.New(0, uint64(i)), chunk)
		require.NoError(err)
		want := Pending
		if i == 3 {
			want = Verified
		}
		require.Equal(want, v)
	}

	require.True(tr.IsComplete())
	require.Equal(uint64(128), tr.SeqComplete(0))
	for i := 0; i < 4; i++ {
		require.Equal(content[i*32:(i+1)*32], storage.chunks[uint64(i)])
	}
}

func TestOfferDataRejectsBadChunk(t *testing.T) {
	require := require.New(t)
	tr, content, _ := buildFourChunkTree(t)

	// supply enough uncle information that the chain to the root can
	// actually be completed (and so a mismatch is distinguishable from
	// merely-not-enough-information-yet).
	leaf1 := Leaf(content[32:64])
	leaf2 := Leaf(content[64:96])
	leaf3 := Leaf(content[96:128])
	require.NoError(tr.OfferHash(bin.New(0, 1), leaf1))
	require.NoError(tr.OfferHash(bin.New(1, 1), Combine(leaf2, leaf3)))

	v, err := tr.OfferData(bin.New(0, 0), []byte("this-is-not-the-right-chunk!!!!"))
	require.NoError(err)
	require.Equal(Rejected, v)
	require.False(tr.AckOut().IsFilled(bin.New(0, 0)))
}

func TestOfferDataPendingWithoutUncleHash(t *testing.T) {
	require := require.New(t)
	tr, content, _ := buildFourChunkTree(t)
	// no peaks installed at all: nothing can ever verify.
	tr2 := New(tr.Root(), 32, 4, 128, newMemStorage())

	v, err := tr2.OfferData(bin.New(0, 0), content[0:32])
	require.NoError(err)
	require.Equal(Pending, v)
	require.False(tr2.AckOut().IsFilled(bin.New(0, 0)))
}

func TestOfferHashThenDataCompletesChain(t *testing.T) {
	require := require.New(t)
	tr, content, _ := buildFourChunkTree(t)

	leaf1 := Leaf(content[32:64])
	leaf2 := Leaf(content[64:96])
	leaf3 := Leaf(content[96:128])
	n23 := Combine(leaf2, leaf3)

	require.NoError(tr.OfferHash(bin.New(0, 1), leaf1))
	require.NoError(tr.OfferHash(bin.New(1, 1), n23))

	v, err := tr.OfferData(bin.New(0, 0), content[0:32])
	require.NoError(err)
	require.Equal(Verified, v)
}

func TestDuplicateOfferDataIsIdempotent(t *testing.T) {
	require := require.New(t)
	tr, content, _ := buildFourChunkTree(t)

	leaf1 := Leaf(content[32:64])
	n23 := Combine(Leaf(content[64:96]), Leaf(content[96:128]))
	require.NoError(tr.OfferHash(bin.New(0, 1), leaf1))
	require.NoError(tr.OfferHash(bin.New(1, 1), n23))

	chunk := content[0:32]
	v1, err := tr.OfferData(bin.New(0, 0), chunk)
	require.NoError(err)
	require.Equal(Verified, v1)

	v2, err := tr.OfferData(bin.New(0, 0), chunk)
	require.NoError(err)
	require.Equal(Verified, v2)
}

func TestPeakForReturnsNoneOutsideTree(t *testing.T) {
	require := require.New(t)
	tr, _, _ := buildFourChunkTree(t)
	require.Equal(bin.New(2, 0), tr.PeakFor(bin.New(0, 1)))
	require.Equal(bin.NONE, tr.PeakFor(bin.New(2, 1)))
}

func TestSetPeaksRejectsBadCombination(t *testing.T) {
	require := require.New(t)
	var wrongRoot Hash
	wrongRoot[0] = 0xFF
	tr := New(wrongRoot, 32, 4, 128, newMemStorage())
	err := tr.SetPeaks(map[bin.Bin]Hash{bin.New(2, 0): Leaf([]byte("not the real combined peak"))})
	require.ErrorIs(err, ErrPeaksDoNotCombineToRoot)
}

// TestSeqCompleteReportsExactSizeWithShortFinalChunk pins down the exact
// trailing-chunk byte count once every chunk (including a short final one)
// verifies: seq-complete(0) must report the swarm's real content size, not
// numChunks*chunkSize rounded up.
func TestSeqCompleteReportsExactSizeWithShortFinalChunk(t *testing.T) {
	require := require.New(t)
	chunks := [][]byte{
		[]byte("chunk-zero-abcdefghijklmnop....."),
		[]byte("chunk-one-qrstuvwxyz01234567...."),
		[]byte("chunk-two-ABCDEFGHIJKLMNOPQR...."),
		[]byte("short-tail"),
	}
	leaves := make([]Hash, 4)
	for i, c := range chunks {
		leaves[i] = Leaf(c)
	}
	n01 := Combine(leaves[0], leaves[1])
	n23 := Combine(leaves[2], leaves[3])
	root := Combine(n01, n23)

	contentSize := uint64(32 + 32 + 32 + len(chunks[3]))
	storage := newMemStorage()
	tr := New(root, 32, 4, contentSize, storage)
	require.NoError(tr.SetPeaks(map[bin.Bin]Hash{bin.New(2, 0): root}))

	for i, c := range chunks {
		v, err := tr.OfferData(bin.New(0, uint64(i)), c)
		require.NoError(err)
		require.Equal(Verified, v)
	}

	require.True(tr.IsComplete())
	require.Equal(contentSize, tr.SeqComplete(0))
	require.Equal(contentSize, tr.ContentSize())
}
