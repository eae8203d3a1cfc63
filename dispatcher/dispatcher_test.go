// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dispatcher

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/swift/swarmid"
	"github.com/luxfi/swift/transfer"
	"github.com/luxfi/swift/wire"
)

func newLoopbackConn(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newTestTransfer(t *testing.T, swarm swarmid.ID) *transfer.Transfer {
	t.Helper()
	tr, err := transfer.Open(swarm, transfer.Options{
		ChunkSize:  1024,
		NumChunks:  4,
		StorageDir: t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestSlotZeroReservedAndAllocateAppends(t *testing.T) {
	d := New(newLoopbackConn(t), nil, nil, time.Second)
	require.Len(t, d.slots, 1)
	require.False(t, d.slots[0].free)

	var swarm swarmid.ID
	tr := newTestTransfer(t, swarm)

	idx1 := d.allocate(tr, wire.Scheme{Addr: wire.Bin32, ChunkSize: 1024})
	idx2 := d.allocate(tr, wire.Scheme{Addr: wire.Bin32, ChunkSize: 1024})
	require.Equal(t, uint32(1), idx1)
	require.Equal(t, uint32(2), idx2)
}

func TestFreedSlotNotReusedUntilNextGeneration(t *testing.T) {
	d := New(newLoopbackConn(t), nil, nil, time.Second)
	var swarm swarmid.ID
	tr := newTestTransfer(t, swarm)
	scheme := wire.Scheme{Addr: wire.Bin32, ChunkSize: 1024}

	idx := d.allocate(tr, scheme)
	d.free(idx)

	// Same generation: the freed slot must not be handed out again yet.
	again := d.allocate(tr, scheme)
	require.NotEqual(t, idx, again)

	// Advance the generation (as cleanup would) and the slot becomes
	// eligible for reuse.
	d.generation++
	reused := d.allocate(tr, scheme)
	require.Equal(t, idx, reused)
}

func TestScrambleUnscrambleRoundTrip(t *testing.T) {
	d := New(newLoopbackConn(t), nil, nil, time.Second)
	for _, idx := range []uint32{0, 1, 42, 0xFFFFFFFE} {
		require.Equal(t, idx, d.unscramble(d.scramble(idx)))
	}
}

func TestRouteHandshakeCreatesChannelForKnownSwarm(t *testing.T) {
	conn := newLoopbackConn(t)
	d := New(conn, nil, nil, time.Second)

	var swarm swarmid.ID
	swarm[0] = 0x42
	tr := newTestTransfer(t, swarm)
	d.AddTransfer(swarm, tr)

	peerConn := newLoopbackConn(t)
	hs := wire.Handshake{
		PeerChannelID: 7,
		Options: []wire.Option{
			{Key: wire.OptSwarmID, Value: swarm.Bytes()},
		},
	}
	raw, err := wire.Encode(defaultBootstrapScheme, wire.Datagram{ChannelID: 0, Messages: []wire.Message{hs}})
	require.NoError(t, err)

	d.routeHandshake(raw, peerConn.LocalAddr(), time.Now())

	require.Len(t, tr.Channels(), 1)
	require.Equal(t, peerConn.LocalAddr().String(), tr.Channels()[0].PeerEndpoint)
}

func TestRouteHandshakeIgnoresUnknownSwarm(t *testing.T) {
	conn := newLoopbackConn(t)
	d := New(conn, nil, nil, time.Second)

	var unknown swarmid.ID
	unknown[0] = 0x99
	hs := wire.Handshake{
		Options: []wire.Option{{Key: wire.OptSwarmID, Value: unknown.Bytes()}},
	}
	raw, err := wire.Encode(defaultBootstrapScheme, wire.Datagram{ChannelID: 0, Messages: []wire.Message{hs}})
	require.NoError(t, err)

	d.routeHandshake(raw, newLoopbackConn(t).LocalAddr(), time.Now())
	// No transfer registered: nothing should have been allocated.
	require.Len(t, d.slots, 1)
}

func encodeInitiatingHandshake(t *testing.T, swarm swarmid.ID) []byte {
	t.Helper()
	hs := wire.Handshake{Options: []wire.Option{{Key: wire.OptSwarmID, Value: swarm.Bytes()}}}
	raw, err := wire.Encode(defaultBootstrapScheme, wire.Datagram{ChannelID: 0, Messages: []wire.Message{hs}})
	require.NoError(t, err)
	return raw
}

// TestRouteHandshakeDuplicateLargerPortCloses pins down the S2 scenario: two
// peers simultaneously dial each other, so each already has its own
// self-dialed channel to the other's exact endpoint when the peer's
// initiating HANDSHAKE arrives. The side with the larger local port closes
// its own channel; the smaller-port side keeps its channel and ignores the
// duplicate.
func TestRouteHandshakeDuplicateLargerPortCloses(t *testing.T) {
	conn := newLoopbackConn(t)
	d := New(conn, nil, nil, time.Second)
	ourPort := conn.LocalAddr().(*net.UDPAddr).Port

	var swarm swarmid.ID
	swarm[0] = 0x7
	tr := newTestTransfer(t, swarm)
	d.AddTransfer(swarm, tr)

	// Our own port is the larger one: our existing channel must close when
	// the peer's initiating handshake arrives from its (smaller-port) endpoint.
	peerAddr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: ourPort - 1}
	if peerAddr.Port <= 0 {
		peerAddr.Port = ourPort + 1 // keep the larger/smaller relationship meaningful
	}
	existing := tr.NewChannel(d.scramble(1), peerAddr.String())
	d.slots = append(d.slots, slot{tr: tr, ch: existing, scheme: wire.Scheme{Addr: wire.Bin32, ChunkSize: 1024}})

	d.routeHandshake(encodeInitiatingHandshake(t, swarm), peerAddr, time.Now())

	if ourPort > peerAddr.Port {
		require.True(t, existing.IsClosed(), "larger-port side must close its own channel")
	} else {
		require.False(t, existing.IsClosed(), "smaller-port side keeps its channel")
	}
}

// TestRouteHandshakeDuplicateSmallerPortKeepsExisting mirrors the other side
// of S2: our port is the smaller one, so the duplicate handshake must be
// dropped and the existing channel left untouched.
func TestRouteHandshakeDuplicateSmallerPortKeepsExisting(t *testing.T) {
	conn := newLoopbackConn(t)
	d := New(conn, nil, nil, time.Second)
	ourPort := conn.LocalAddr().(*net.UDPAddr).Port

	var swarm swarmid.ID
	swarm[0] = 0x7
	tr := newTestTransfer(t, swarm)
	d.AddTransfer(swarm, tr)

	peerAddr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: ourPort + 1}
	existing := tr.NewChannel(d.scramble(1), peerAddr.String())
	d.slots = append(d.slots, slot{tr: tr, ch: existing, scheme: wire.Scheme{Addr: wire.Bin32, ChunkSize: 1024}})

	d.routeHandshake(encodeInitiatingHandshake(t, swarm), peerAddr, time.Now())

	require.False(t, existing.IsClosed(), "our port is smaller, so our existing channel must survive")
	require.Len(t, tr.Channels(), 1, "the duplicate must not have created a second channel")
}

func TestDialAllocatesChannel(t *testing.T) {
	conn := newLoopbackConn(t)
	d := New(conn, nil, nil, time.Second)
	var swarm swarmid.ID
	tr := newTestTransfer(t, swarm)

	ch := d.Dial(tr, "127.0.0.1:12345")
	require.NotNil(t, ch)
	require.Equal(t, "127.0.0.1:12345", ch.PeerEndpoint)
	require.Len(t, tr.Channels(), 1)
}
