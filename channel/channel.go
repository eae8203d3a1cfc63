// Copyright (C) 2019-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package channel implements the per-(swarm, remote-endpoint) state machine:
// reliability, congestion control, request pipelining, Merkle-witness
// attachment, PEX and the close protocol. It follows the same shape as a
// stateful single-owner struct with zap logging and a metrics handle,
// adapted here to wire reliability/congestion bookkeeping.
package channel

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/log"

	"github.com/luxfi/swift/bin"
	"github.com/luxfi/swift/binmap"
	"github.com/luxfi/swift/binset"
	"github.com/luxfi/swift/config"
	"github.com/luxfi/swift/hashtree"
	"github.com/luxfi/swift/internal/xlog"
	"github.com/luxfi/swift/metrics"
	"github.com/luxfi/swift/picker"
	"github.com/luxfi/swift/recip"
)

var (
	// ErrMalformed mirrors wire.ErrMalformed at the channel layer: a
	// malformed message closes the channel silently, it never aborts the
	// transfer.
	ErrMalformed = errors.New("channel: malformed message")

	// ErrClosed is returned by any operation attempted on a channel already
	// in CLOSE state.
	ErrClosed = errors.New("channel: closed")

	// ErrWrongSwarm is returned when an inbound HANDSHAKE names a swarm-ID
	// this channel was not opened for.
	ErrWrongSwarm = errors.New("channel: swarm-id mismatch")
)

// CloseReason labels why a channel was closed, for the ChannelsClosed metric.
type CloseReason string

const (
	CloseExplicit  CloseReason = "explicit"
	CloseTimeout   CloseReason = "timeout"
	CloseDuplicate CloseReason = "duplicate"
	CloseMalformed CloseReason = "malformed"
	CloseStorage   CloseReason = "storage"
	CloseTransfer  CloseReason = "transfer"
)

// HashTree is the subset of hashtree.Tree (or hashtree.ZeroState) a channel
// needs; narrowed to an interface so a channel never cares which variant
// its transfer opened.
type HashTree interface {
	OfferHash(b bin.Bin, h hashtree.Hash) error
	OfferData(b bin.Bin, data []byte) (hashtree.Verdict, error)
	PeakFor(b bin.Bin) bin.Bin
	IsComplete() bool
	SeqComplete(offset uint64) uint64
	Root() hashtree.Hash
	NumChunks() uint64

	// ContentSize returns the swarm's exact byte length, accounting for a
	// short final chunk, or 0 if not yet known (a growing/live swarm).
	ContentSize() uint64

	// ReadHash and Peaks expose the peak hashes/uncle chain a channel must
	// attach to outgoing DATA. hashtree.Tree and hashtree.ZeroState
	// both satisfy this.
	ReadHash(b bin.Bin) (hashtree.Hash, bool)
	Peaks() []bin.Bin

	// HaveFilled reports whether b is fully ours to serve: verified and
	// written for a growing tree, always true for a zero-state seed.
	HaveFilled(b bin.Bin) bool
}

// Storage is where verified chunk bytes are read back from for the send
// path (AddData); the write path runs through HashTree.OfferData.
type Storage interface {
	ReadChunk(b bin.Bin) ([]byte, error)
}

// Owner is the narrow view of a channel's owning transfer/runtime a channel
// needs without importing the transfer package back (which would cycle):
// the swarm's component handles plus the cross-channel accounting the hint
// pipeline's rate_allowance needs.
type Owner interface {
	HashTree() HashTree
	Storage() Storage
	Picker() picker.Capability
	Policy() recip.Policy
	Config() *config.Parameters
	Metrics() *metrics.Metrics
	SwarmID() string
	MaxDownloadBytesPerSec() float64
	OutstandingHintChunksExcept(self *Channel) uint64
}

// Stats carries the per-channel counters original_source splits into raw
// vs. useful bytes. Only BytesUp and BytesDown are updated; RawBytesUp and
// RawBytesDown stay zero.
type Stats struct {
	BytesUp      uint64
	BytesDown    uint64
	RawBytesUp   uint64
	RawBytesDown uint64
}

// DataOutEntry is one outstanding (sent, not yet acked) DATA send.
type DataOutEntry struct {
	Addr   bin.Bin
	SentAt time.Time
	Acked  bool
}

// Channel is the per-peer state machine.
type Channel struct {
	ID            uint32
	PeerChannelID uint32
	PeerEndpoint  string

	owner Owner
	log   log.Logger

	localHandshakeSent bool
	state              sendState

	// reliability
	dataOut    []DataOutEntry
	dataOutTmo []DataOutEntry
	ackIn      *binmap.Binmap
	dataIn     *binmap.Binmap
	pendingAcks []pendingAck

	// request pipeline
	hintOut     []bin.Bin
	hintOutSize uint64
	hintIn      []bin.Bin
	hintInSize  uint64

	// congestion
	cwnd            float64
	sendInterval    time.Duration
	lastSend        time.Time
	lastRecv        time.Time
	rttAvg          time.Duration
	devAvg          time.Duration
	dipAvg          time.Duration
	owdBuckets      [4]time.Duration
	owdBucketIdx    int
	owdBucketStart  time.Time
	slowStartedAt   time.Time
	sentAnyDataYet  bool
	peerKnowsPeaks  bool

	// pex
	reversePexOut      binset.Set[string]
	pexRequested       bool
	pexReqPending      bool
	pexPeersIn         []peerInfo
	nextPexRequestTime time.Time
	uselessPexCount    int

	// flow control hints from the peer
	peerChoking bool

	// close
	scheduledForDelete bool
	closeReason        CloseReason
	sentCloseHandshake bool

	Stats Stats
}

type sendState int

const (
	statePingPong sendState = iota
	stateKeepAlive
	stateSlowStart
	stateLedbat
	stateClose
)

// New constructs a channel in PING_PONG state for a freshly dialled or
// freshly accepted peer.
func New(id uint32, peerEndpoint string, owner Owner) *Channel {
	cfg := owner.Config()
	now := time.Now()
	return &Channel{
		ID:           id,
		PeerEndpoint: peerEndpoint,
		owner:        owner,
		log:          xlog.Named(xlog.NewNoOp(), "channel"),
		state:        statePingPong,
		ackIn:        binmap.New(),
		dataIn:       binmap.New(),
		sendInterval: cfg.MinSendInterval,
		cwnd:         1,
		lastRecv:     now,
	}
}

// SetLogger replaces the channel's logger with l, named for this channel's
// id. Transfers call this right after New.
func (c *Channel) SetLogger(l log.Logger) {
	c.log = xlog.Named(l, fmt.Sprintf("channel-%d", c.ID))
}

// Established reports whether both sides have exchanged channel-ids: this
// side has sent its own HANDSHAKE and has learned the peer's channel-id from
// one in return.
func (c *Channel) Established() bool {
	return c.localHandshakeSent && c.PeerChannelID != 0
}

// IsClosed reports whether the channel has reached the terminal CLOSE state.
func (c *Channel) IsClosed() bool { return c.state == stateClose }

// IsComplete reports whether every peak bin the hash tree knows is filled
// in ackIn: the peer has, as far as we've observed, everything
// (original_source channel.cpp:155).
func (c *Channel) IsComplete() bool {
	for _, peak := range c.owner.HashTree().Peaks() {
		if !c.ackIn.IsFilled(peak) {
			return false
		}
	}
	return true
}

// scheduleClose transitions the channel to CLOSE, recording why. The
// dispatcher's cleanup tick is responsible for actually removing it from
// the routing table and freeing it.
func (c *Channel) scheduleClose(reason CloseReason) {
	if c.state == stateClose {
		return
	}
	c.state = stateClose
	c.closeReason = reason
	c.scheduledForDelete = true
	c.log.Info("channel closing", zap.String("reason", string(reason)), zap.Uint32("chid", c.ID))
	if m := c.owner.Metrics(); m != nil {
		m.ChannelsClosed.WithLabelValues(string(reason)).Inc()
	}
}

// Close is the explicit close entry point (control surface, transfer
// teardown, storage failure).
func (c *Channel) Close(reason CloseReason) {
	c.scheduleClose(reason)
}

// ScheduledForDelete reports whether the dispatcher's cleanup tick should
// remove this channel on its next pass.
func (c *Channel) ScheduledForDelete() bool { return c.scheduledForDelete }
