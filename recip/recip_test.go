// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package recip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNeutralNeverOverrides(t *testing.T) {
	var p Policy = Neutral{}

	require.Equal(t, time.Duration(0), p.SendIntervalFor(PeerView{Endpoint: "x", PeerCount: 3}))

	// None of these should panic; Neutral ignores every notification.
	p.OnPeerAdd("peer:1", "swarm-a")
	p.OnPeerDel("peer:1", "swarm-a")
	p.ExternalCmd("whatever")
}
