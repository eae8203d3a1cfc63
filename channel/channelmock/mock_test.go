// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channelmock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/recip"
)

func TestMockStorageReadChunk(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewMockStorage(ctrl)

	b := bin.New(0, 3)
	s.EXPECT().ReadChunk(b).Return([]byte("payload"), nil)

	got, err := s.ReadChunk(b)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}

func TestMockPolicySendIntervalFor(t *testing.T) {
	ctrl := gomock.NewController(t)
	p := NewMockPolicy(ctrl)

	view := recip.PeerView{Endpoint: "peer:7777", PeerCount: 4}
	p.EXPECT().SendIntervalFor(view).Return(250 * time.Millisecond)
	p.EXPECT().OnPeerAdd("peer:7777", "swarm-a")

	require.Equal(t, 250*time.Millisecond, p.SendIntervalFor(view))
	p.OnPeerAdd("peer:7777", "swarm-a")
}
