// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sidecarstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
	"github.com/luxfi/swift/hashtree"
)

type stubContent struct{}

func (stubContent) ReadChunk(bin.Bin) ([]byte, error) { return nil, nil }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), stubContent{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInitAndLoadMeta(t *testing.T) {
	s := openTestStore(t)
	root := hashtree.Hash{1, 2, 3}
	require.NoError(t, s.Init(root, 1024, 8, 8000))
	require.Equal(t, root, s.Root())
	require.Equal(t, uint64(8), s.NumChunks())
	require.Equal(t, uint64(8000), s.ContentSize())
}

func TestWriteReadHash(t *testing.T) {
	s := openTestStore(t)
	b := bin.New(1, 2)
	h := hashtree.Hash{9, 9, 9}
	require.NoError(t, s.WriteHash(b, h))

	got, ok := s.ReadHash(b)
	require.True(t, ok)
	require.Equal(t, h, got)
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := openTestStore(t)

	bm := binmap.New()
	require.NoError(t, bm.Set(bin.New(0, 0)))
	require.NoError(t, bm.Set(bin.New(2, 1))) // non-zero-layer bin at a non-zero offset

	require.NoError(t, s.WriteCheckpoint(bm))

	restored, err := s.ReadCheckpoint()
	require.NoError(t, err)
	require.ElementsMatch(t, bm.FilledRanges(), restored.FilledRanges())
}

func TestReadCheckpointEmptyWhenNeverWritten(t *testing.T) {
	s := openTestStore(t)
	bm, err := s.ReadCheckpoint()
	require.NoError(t, err)
	require.Empty(t, bm.FilledRanges())
}

func TestEncodeDecodeBinRoundTripAcrossLayers(t *testing.T) {
	for layer := uint(0); layer < 5; layer++ {
		for offset := uint64(0); offset < 4; offset++ {
			b := bin.New(layer, offset)
			got := decodeBin(encodeBin(b))
			require.Equal(t, b, got, "layer=%d offset=%d", layer, offset)
		}
	}
}
