// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package channel

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
	"github.com/luxfi/swift/config"
	"github.com/luxfi/swift/hashtree"
	"github.com/luxfi/swift/metrics"
	"github.com/luxfi/swift/picker"
	"github.com/luxfi/swift/recip"
	"github.com/luxfi/swift/wire"
)

func testutilCounterValue(c prometheus.Counter) float64 {
	return testutil.ToFloat64(c)
}

func wireDataFor(addr bin.Bin, payload []byte) wire.Datagram {
	return wire.Datagram{Messages: []wire.Message{
		wire.Data{Addr: addr, Payload: payload},
	}}
}

func handshakeWith(peerChannelID uint32) wire.Handshake {
	return wire.Handshake{PeerChannelID: peerChannelID}
}

type fakeTree struct {
	ack      *binmap.Binmap
	peaks    []bin.Bin
	hashes   map[bin.Bin]hashtree.Hash
	complete bool
	chunks   map[uint64][]byte
	numChunks   uint64
	contentSize uint64
}

func newFakeTree(n uint64) *fakeTree {
	return &fakeTree{ack: binmap.New(), hashes: make(map[bin.Bin]hashtree.Hash), chunks: make(map[uint64][]byte), numChunks: n}
}

func (f *fakeTree) OfferHash(bin.Bin, hashtree.Hash) error { return nil }
func (f *fakeTree) OfferData(b bin.Bin, data []byte) (hashtree.Verdict, error) {
	if f.ack.IsFilled(b) {
		return hashtree.Verified, nil
	}
	_ = f.ack.Set(b)
	f.chunks[b.BaseOffset()] = data
	return hashtree.Verified, nil
}
func (f *fakeTree) PeakFor(bin.Bin) bin.Bin                    { return bin.NONE }
func (f *fakeTree) IsComplete() bool                           { return f.complete }
func (f *fakeTree) SeqComplete(uint64) uint64                  { return 0 }
func (f *fakeTree) Root() hashtree.Hash                        { return hashtree.Hash{} }
func (f *fakeTree) NumChunks() uint64                          { return f.numChunks }
func (f *fakeTree) ContentSize() uint64                        { return f.contentSize }
func (f *fakeTree) ReadHash(b bin.Bin) (hashtree.Hash, bool)   { h, ok := f.hashes[b]; return h, ok }
func (f *fakeTree) Peaks() []bin.Bin                           { return f.peaks }
func (f *fakeTree) HaveFilled(b bin.Bin) bool                  { return f.ack.IsFilled(b) }

type fakeStorage struct{ chunks map[uint64][]byte }

func (s *fakeStorage) ReadChunk(b bin.Bin) ([]byte, error) {
	return s.chunks[b.BaseOffset()], nil
}

type fakeOwner struct {
	tree    *fakeTree
	storage *fakeStorage
	pick    picker.Capability
	cfg     *config.Parameters
	m       *metrics.Metrics
}

func (o *fakeOwner) HashTree() HashTree                                     { return o.tree }
func (o *fakeOwner) Storage() Storage                                       { return o.storage }
func (o *fakeOwner) Picker() picker.Capability                              { return o.pick }
func (o *fakeOwner) Policy() recip.Policy                                   { return recip.Neutral{} }
func (o *fakeOwner) Config() *config.Parameters                            { return o.cfg }
func (o *fakeOwner) Metrics() *metrics.Metrics                              { return o.m }
func (o *fakeOwner) SwarmID() string                                        { return "test" }
func (o *fakeOwner) MaxDownloadBytesPerSec() float64                        { return 0 }
func (o *fakeOwner) OutstandingHintChunksExcept(self *Channel) uint64       { return 0 }

func newTestChannel() (*Channel, *fakeOwner) {
	cfg := config.DefaultParameters()
	owner := &fakeOwner{
		tree:    newFakeTree(8),
		storage: &fakeStorage{chunks: make(map[uint64][]byte)},
		pick:    picker.NewSequential(binmap.New(), 8),
		cfg:     &cfg,
		m:       metrics.NewNoOp(),
	}
	return New(1, "peer:1", owner), owner
}

func TestOnAckUpdatesRTTAndMarksAckIn(t *testing.T) {
	require := require.New(t)
	c, _ := newTestChannel()
	now := time.Now()
	c.recordSent(bin.New(0, 0), now)

	c.onAck(bin.New(0, 0), 500, now.Add(50*time.Millisecond))
	require.True(c.ackIn.IsFilled(bin.New(0, 0)))
	require.True(c.rttAvg > 0)
}

func TestOnAckDuplicateIncrementsMetricWithoutDoubleRTT(t *testing.T) {
	require := require.New(t)
	c, owner := newTestChannel()
	now := time.Now()
	c.recordSent(bin.New(0, 0), now)
	c.onAck(bin.New(0, 0), 500, now.Add(10*time.Millisecond))
	rttAfterFirst := c.rttAvg

	c.onAck(bin.New(0, 0), 500, now.Add(500*time.Millisecond))
	require.Equal(rttAfterFirst, c.rttAvg)

	count := testutilCounterValue(owner.m.DuplicateAcks)
	require.Equal(float64(1), count)
}

func TestReorderingMarksEarlierUnackedLost(t *testing.T) {
	require := require.New(t)
	c, _ := newTestChannel()
	now := time.Now()
	for i := 0; i < 6; i++ {
		c.recordSent(bin.New(0, uint64(i)), now.Add(time.Duration(i)*time.Millisecond))
	}
	// Ack bin 5 (index 5); bin 0 is more than MaxReordering=4 positions
	// earlier and still unacked, so it should be declared lost.
	c.onAck(bin.New(0, 5), 0, now.Add(100*time.Millisecond))
	found := false
	for _, e := range c.dataOutTmo {
		if e.Addr == bin.New(0, 0) {
			found = true
		}
	}
	require.True(found)
}

func TestCancelSplitsHintIn(t *testing.T) {
	require := require.New(t)
	c, _ := newTestChannel()
	c.appendHintIn(bin.New(3, 0)) // [0..7]

	c.cancelHintIn(bin.New(2, 1)) // cancel [4..7]

	require.NotContains(c.hintIn, bin.New(3, 0))
	for _, b := range c.hintIn {
		require.False(bin.New(2, 1).Contains(b) || b == bin.New(2, 1))
	}
	// union of what remains should equal [0..3]
	var total uint64
	for _, b := range c.hintIn {
		total += b.BaseLength()
	}
	require.Equal(uint64(4), total)
}

func TestNextHintInServesOwnedAndSkipsUnowned(t *testing.T) {
	require := require.New(t)
	c, owner := newTestChannel()
	_ = owner.tree.ack.Set(bin.New(0, 0)) // we already have chunk 0
	c.appendHintIn(bin.New(0, 0))
	c.appendHintIn(bin.New(0, 1)) // we don't have chunk 1

	addr, ok := c.nextHintIn(owner.tree.HaveFilled)
	require.True(ok)
	require.Equal(bin.New(0, 0), addr)

	_, ok = c.nextHintIn(owner.tree.HaveFilled)
	require.False(ok) // chunk 1: we don't have it, can't serve
}

func TestDuplicateDataDoesNotDoubleCreditBytes(t *testing.T) {
	require := require.New(t)
	c, _ := newTestChannel()

	dg := wireDataFor(bin.New(0, 0), []byte("abcdefgh"))
	c.Receive(dg, time.Now())
	require.Equal(uint64(8), c.Stats.BytesDown)
	require.Len(c.pendingAcks, 1)

	// A repeat DATA for the same bin queues exactly one more (duplicate)
	// ack but must not credit BytesDown again.
	c.Receive(dg, time.Now().Add(time.Millisecond))
	require.Equal(uint64(8), c.Stats.BytesDown)
	require.Len(c.pendingAcks, 2)
}

func TestHandshakeEstablishesChannel(t *testing.T) {
	require := require.New(t)
	c, _ := newTestChannel()
	require.False(c.Established())

	// Receiving the peer's HANDSHAKE alone only records its channel-id;
	// establishment needs this side to have sent its own too.
	c.handleHandshake(handshakeWith(99), time.Now())
	require.Equal(uint32(99), c.PeerChannelID)
	require.False(c.Established())

	c.localHandshakeSent = true
	require.True(c.Established())
}

func TestServerReplyCarriesOwnHandshakeOnFirstResponse(t *testing.T) {
	require := require.New(t)
	c, _ := newTestChannel()

	c.handleHandshake(handshakeWith(99), time.Now())
	require.False(c.Established(), "not established until our own HANDSHAKE is sent")

	dg, ok := c.ComposeSend(wire.Scheme{Addr: wire.Bin32, ChunkSize: 1024}, time.Now(), 0, nil)
	require.True(ok)

	var sawHandshake bool
	for _, m := range dg.Messages {
		if hs, ok := m.(wire.Handshake); ok {
			sawHandshake = true
			require.Equal(c.ID, hs.PeerChannelID)
		}
	}
	require.True(sawHandshake, "the server's first reply must bear its own channel-id")
	require.True(c.Established())

	// A second send must not repeat the HANDSHAKE.
	dg2, ok := c.ComposeSend(wire.Scheme{Addr: wire.Bin32, ChunkSize: 1024}, time.Now(), 0, nil)
	require.True(ok)
	for _, m := range dg2.Messages {
		_, isHandshake := m.(wire.Handshake)
		require.False(isHandshake)
	}
}

func TestExplicitCloseSchedulesClose(t *testing.T) {
	require := require.New(t)
	c, _ := newTestChannel()
	c.handleHandshake(handshakeWith(0), time.Now())
	require.True(c.IsClosed())
	require.True(c.ScheduledForDelete())
}
