// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndLayer(t *testing.T) {
	require := require.New(t)

	for offset := uint64(0); offset < 8; offset++ {
		b := New(0, offset)
		require.Equal(uint(0), b.Layer())
		require.True(b.IsBase())
		require.Equal(offset, b.BaseOffset())
		require.Equal(uint64(1), b.BaseLength())
	}

	b := New(2, 3)
	require.Equal(uint(2), b.Layer())
	require.False(b.IsBase())
	require.Equal(uint64(12), b.BaseOffset())
	require.Equal(uint64(4), b.BaseLength())
}

func TestParentChildSibling(t *testing.T) {
	require := require.New(t)

	leaf0 := New(0, 0)
	leaf1 := New(0, 1)
	parent := leaf0.Parent()

	require.Equal(uint(1), parent.Layer())
	require.Equal(parent, leaf1.Parent())
	require.Equal(leaf1, leaf0.Sibling())
	require.Equal(leaf0, leaf1.Sibling())
	require.Equal(leaf0, parent.Left())
	require.Equal(leaf1, parent.Right())
	require.True(leaf0.IsLeft())
	require.False(leaf1.IsLeft())

	// base bins have no children
	require.Equal(NONE, leaf0.Left())
	require.Equal(NONE, leaf0.Right())
}

func TestContains(t *testing.T) {
	require := require.New(t)

	root := New(2, 0) // covers chunks 0..3
	require.True(root.Contains(New(0, 0)))
	require.True(root.Contains(New(0, 3)))
	require.True(root.Contains(New(1, 1))) // chunks 2,3
	require.False(root.Contains(New(0, 4)))
	require.False(root.Contains(New(2, 1)))
	require.True(root.Contains(root))
}

func TestValidateAndSentinels(t *testing.T) {
	require := require.New(t)

	require.True(NONE.IsNone())
	require.True(ALL.IsAll())
	require.Error(NONE.Validate())
	require.Error(ALL.Validate())
	require.NoError(New(0, 0).Validate())

	require.Equal(NONE, NONE.Parent())
	require.Equal(NONE, ALL.Left())
}

func TestTwistPreservesLayer(t *testing.T) {
	require := require.New(t)

	b := New(3, 5)
	for _, mask := range []uint64{0, 1, 0xdeadbeef, ^uint64(0)} {
		tw := b.Twist(mask)
		require.Equal(b.Layer(), tw.Layer(), "twist must not change layer")
	}

	// applying the same mask twice returns the original bin (XOR is its own inverse).
	mask := uint64(12345)
	require.Equal(b, b.Twist(mask).Twist(mask))
}

func TestString(t *testing.T) {
	require := require.New(t)
	require.Equal("NONE", NONE.String())
	require.Equal("ALL", ALL.String())
	require.Equal("0:0", New(0, 0).String())
	require.Equal("2:3", New(2, 3).String())
}
