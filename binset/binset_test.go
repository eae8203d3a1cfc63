// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package binset

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAddContainsRemove(t *testing.T) {
	s := Of("a", "b")
	require.True(t, s.Contains("a"))
	require.True(t, s.Contains("b"))
	require.False(t, s.Contains("c"))
	require.Equal(t, 2, s.Len())

	s.Add("c")
	require.True(t, s.Contains("c"))
	require.Equal(t, 3, s.Len())

	s.Remove("b")
	require.False(t, s.Contains("b"))
	require.Equal(t, 2, s.Len())
}

func TestSetList(t *testing.T) {
	s := Of(1, 2, 3)
	got := s.List()
	sort.Ints(got)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestSetClear(t *testing.T) {
	s := Of("x", "y")
	s.Clear()
	require.Equal(t, 0, s.Len())
	require.False(t, s.Contains("x"))
}
